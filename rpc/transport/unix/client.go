package unix

import (
	"context"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/ValentinKolb/dMsg/rpc/transport/base"
	"net"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct {
	dialer net.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	return c.dialer.DialContext(ctx, "unix", endpoint)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeUnixConn(conn, config.Transport.SocketConf)
}

// --------------------------------------------------------------------------
// Client Socket Factory Method
// --------------------------------------------------------------------------

// NewUnixClientSocket creates a new Unix client socket
func NewUnixClientSocket() transport.IClientSocket {
	return base.NewBaseClientSocket(&clientConnector{})
}

// upgradeUnixConn applies the buffer settings to a unix connection
func upgradeUnixConn(conn net.Conn, conf common.SocketConf) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if conf.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(conf.WriteBufferSize); err != nil {
			return err
		}
	}
	if conf.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(conf.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}
