package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dMsg/cmd/client"
	"github.com/ValentinKolb/dMsg/cmd/serve"
	"github.com/ValentinKolb/dMsg/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dmsg",
		Short: "duplex message transport",
		Long: fmt.Sprintf(`dMsg (v%s)

A duplex message transport between a UI process and its backend.
Messages are buffered until the socket is open, dispatched to handlers
by type and correlated into request/reply transactions.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dMsg",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dMsg v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.SendCmd)
	RootCmd.AddCommand(client.ListenCmd)
	RootCmd.AddCommand(client.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "ws", util.WrapString("transport to use (ws, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
