package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the backend server.
type ServerConfig struct {
	// Endpoint the server listens on (e.g. 0.0.0.0:8080, /tmp/dmsg.sock)
	Endpoint string

	// Timeout for reads and writes on a connection, 0 disables deadlines
	TimeoutSecond int64

	// Inbound frames per second and burst allowed per connection, 0 disables limiting
	RateLimit float64
	RateBurst int

	// Address of the prometheus metrics endpoint, empty disables it
	MetricsEndpoint string

	// Transport specific settings
	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// ServerTransportConfig contains socket settings for stream based server transports
type ServerTransportConfig struct {
	SocketConf
	TCPConf
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.RateLimit > 0 {
		addField("Rate Limit", fmt.Sprintf("%.1f/s (burst %d)", c.RateLimit, c.RateBurst))
	} else {
		addField("Rate Limit", "disabled")
	}

	addSection("Metrics")
	if c.MetricsEndpoint != "" {
		addField("Endpoint", c.MetricsEndpoint)
	} else {
		addField("Endpoint", "disabled")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a sender
type ClientConfig struct {
	// Endpoint is the address of the duplex socket (ws://..., host:port or a socket path)
	Endpoint string

	// Autostart connects while the sender is constructed
	Autostart bool

	// Timeout for a single dial attempt and for socket writes, 0 disables it
	TimeoutSecond int

	// How often opening the socket is attempted before Start gives up
	RetryCount int

	// Transport specific settings
	Transport ClientTransportConfig

	// Logging configuration
	LogLevel string
}

// ClientTransportConfig contains socket settings for stream based client transports
type ClientTransportConfig struct {
	SocketConf
	TCPConf
}

// SocketConf contains buffer settings shared by tcp and unix sockets
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf contains tcp only settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// DefaultClientConfig returns the configuration used when nothing else is specified
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:      endpoint,
		Autostart:     true,
		TimeoutSecond: 10,
		RetryCount:    3,
		Transport: ClientTransportConfig{
			TCPConf: TCPConf{TCPNoDelay: true},
		},
		LogLevel: "info",
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Autostart", strconv.FormatBool(c.Autostart))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	return sb.String()
}
