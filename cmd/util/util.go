package util

import (
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/ValentinKolb/dMsg/rpc/transport/tcp"
	"github.com/ValentinKolb/dMsg/rpc/transport/unix"
	"github.com/ValentinKolb/dMsg/rpc/transport/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the sender connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "ws://localhost:8080/", WrapString("The address of the backend (ws://host:port/path for ws, host:port for tcp, a socket path for unix)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Timeout in seconds for a single connection attempt and for writes"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times opening the connection is attempted"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("The level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and makes viper read DMSG_ prefixed environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dmsg")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper.
// The sender of the CLI is always started explicitly.
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:      viper.GetString("endpoint"),
		Autostart:     false,
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("retries"),
		Transport: common.ClientTransportConfig{
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
		LogLevel: viper.GetString("log-level"),
	}
}

// GetClientSocket creates the client socket of the configured transport
func GetClientSocket() (transport.IClientSocket, error) {
	switch viper.GetString("transport") {
	case "ws":
		return ws.NewWebsocketClientSocket(), nil
	case "tcp":
		return tcp.NewTCPClientSocket(), nil
	case "unix":
		return unix.NewUnixClientSocket(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport of the configured transport
// The websocket transport serves on wsPath.
func GetServerTransport(wsPath string) (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "ws":
		return ws.NewWebsocketServerTransport(wsPath), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// ParseMessageTypes parses a comma separated list of message type tags
func ParseMessageTypes(list string) ([]common.MessageType, error) {
	var types []common.MessageType
	for _, tag := range strings.Split(list, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		t := common.ParseMessageType(tag)
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown message type %q (expected one of: %s)", tag, typeList())
		}
		types = append(types, t)
	}
	return types, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

func typeList() string {
	tags := make([]string, 0, len(common.MessageTypes()))
	for _, t := range common.MessageTypes() {
		tags = append(tags, t.String())
	}
	return strings.Join(tags, ", ")
}
