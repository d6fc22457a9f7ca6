package client

import (
	"context"
	"github.com/ValentinKolb/dMsg/cmd/util"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/sender"
	"github.com/ValentinKolb/dMsg/rpc/serializer"
	"github.com/spf13/cobra"
	"time"
)

// msgSender is the started sender shared by the client commands
var msgSender *sender.Sender

func init() {
	for _, cmd := range []*cobra.Command{SendCmd, ListenCmd, PerfCmd} {
		util.SetupClientFlags(cmd)
		cmd.PersistentPreRunE = setupSender
		cmd.PersistentPostRunE = closeSender
	}
}

// setupSender binds the flags, creates the sender and connects it
func setupSender(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return err
	}

	socket, err := util.GetClientSocket()
	if err != nil {
		return err
	}

	msgSender = sender.NewSender(*config, socket, serializer.NewTextFrameCodec())

	// every attempt may take the full timeout
	attempts := max(config.RetryCount, 1)
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(attempts*(config.TimeoutSecond+1))*time.Second)
	defer cancel()

	return msgSender.Start(ctx)
}

func closeSender(_ *cobra.Command, _ []string) error {
	if msgSender == nil {
		return nil
	}
	return msgSender.Close()
}
