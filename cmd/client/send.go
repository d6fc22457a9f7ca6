package client

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dMsg/cmd/util"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var (
	SendCmd = &cobra.Command{
		Use:   "send",
		Short: "Send a message to the backend",
		Long: `Send a single message to the backend. With --expect the message is sent as a
transaction and the reply of the given type is printed as json.

Example:
  dmsg send --type CheckNpmPackageRequest --payload '{"npmId":"react"}' --expect CheckNpmPackageResponse`,
		Args: cobra.NoArgs,
		RunE: runSend,
	}
)

func init() {
	key := "type"
	SendCmd.Flags().String(key, "", util.WrapString("Type of the message (e.g. Ping, CheckNpmPackageRequest)"))
	_ = SendCmd.MarkFlagRequired(key)

	key = "payload"
	SendCmd.Flags().String(key, "", util.WrapString("Json payload of the message"))

	key = "expect"
	SendCmd.Flags().String(key, "", util.WrapString("Type of the reply to wait for, sends the message as transaction"))

	key = "wait"
	SendCmd.Flags().Int(key, 10, util.WrapString("Seconds to wait for the reply, the transaction itself never times out"))
}

func runSend(_ *cobra.Command, _ []string) error {
	types, err := util.ParseMessageTypes(viper.GetString("type"))
	if err != nil {
		return err
	}
	if len(types) != 1 {
		return fmt.Errorf("exactly one message type is required")
	}

	var payload any
	if raw := viper.GetString("payload"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("payload is not valid json: %s", raw)
		}
		payload = json.RawMessage(raw)
	}

	msg, err := common.NewMessage(types[0], payload)
	if err != nil {
		return err
	}

	expect := viper.GetString("expect")
	if expect == "" {
		msgSender.Send(msg)
		fmt.Printf("sent %s %s\n", msg.Type, msg.ID)
		return nil
	}

	expected, err := util.ParseMessageTypes(expect)
	if err != nil {
		return err
	}
	if len(expected) != 1 {
		return fmt.Errorf("exactly one reply type is required")
	}

	f := msgSender.Transaction(msg, expected[0])

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(viper.GetInt("wait"))*time.Second)
	defer cancel()
	reply, err := f.Wait(ctx)
	if err != nil {
		return fmt.Errorf("no %s reply for transaction %s: %w", expected[0], f.TransactionID(), err)
	}

	out, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
