package client

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dMsg/cmd/util"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/sender"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	ListenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Print inbound messages",
		Long: `Print every inbound message of the selected types as one json line, until
interrupted, the connection is lost or --count messages were printed.`,
		Args: cobra.NoArgs,
		RunE: runListen,
	}
)

func init() {
	key := "types"
	ListenCmd.Flags().String(key, "", util.WrapString("Comma separated message types to print, empty prints all types"))

	key = "count"
	ListenCmd.Flags().Int(key, 0, util.WrapString("Stop after this many messages, 0 listens until interrupted"))
}

func runListen(cmd *cobra.Command, _ []string) error {
	types, err := util.ParseMessageTypes(viper.GetString("types"))
	if err != nil {
		return err
	}
	if len(types) == 0 {
		types = common.MessageTypes()
	}

	limit := viper.GetInt("count")
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	var mu sync.Mutex
	printed := 0
	for _, t := range types {
		msgSender.Match(t, func(msg common.Message) {
			line, err := json.Marshal(msg)
			if err != nil {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if limit > 0 && printed >= limit {
				return
			}
			fmt.Println(string(line))
			printed++
			if limit > 0 && printed >= limit {
				stop()
			}
		})
	}

	cancel := msgSender.OnChange(func(state sender.State) {
		if state.Connection == transport.StateClosed {
			stop()
		}
	})
	defer cancel()
	if msgSender.State().Connection == transport.StateClosed {
		stop()
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}
