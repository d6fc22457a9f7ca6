package serve

import (
	"context"
	cmdUtil "github.com/ValentinKolb/dMsg/cmd/util"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/serializer"
	"github.com/ValentinKolb/dMsg/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dMsg backend",
		Long:    `Start the reference backend with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DMSG_<flag> (e.g. DMSG_RATE_LIMIT=100)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the backend will listen (e.g. localhost:8080, /tmp/dmsg.sock, ...)"))

	key = "ws-path"
	ServeCmd.PersistentFlags().String(key, "/", cmdUtil.WrapString("The http path the websocket transport is served on (only for ws)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for writes on a connection, 0 disables it"))

	key = "rate-limit"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Inbound frames per second allowed per connection, 0 disables rate limiting"))

	key = "rate-burst"
	ServeCmd.PersistentFlags().Int(key, 50, cmdUtil.WrapString("Burst of inbound frames allowed per connection when rate limiting is enabled"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to serve prometheus metrics on (e.g. localhost:9090), empty disables it"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the write buffer per connection (in KB)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the read buffer per connection (in KB)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time (in seconds, only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.RateLimit = viper.GetFloat64("rate-limit")
	serveCmdConfig.RateBurst = viper.GetInt("rate-burst")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the backend until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport(viper.GetString("ws-path"))
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		serializer.NewTextFrameCodec(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}
