package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/socket")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Client Socket
// -----------------------------------------------------------

// clientSocket implements a length prefixed frame socket
// independent of the specific transport medium (unix, tcp, etc.)
type clientSocket struct {
	connector    IClientConnector
	state        atomic.Int32
	conn         net.Conn
	connMu       sync.Mutex // Protects conn
	writeMu      sync.Mutex // Serializes writes
	writeTimeout time.Duration
}

// NewBaseClientSocket creates a new client socket with the specified connector
func NewBaseClientSocket(connector IClientConnector) transport.IClientSocket {
	return &clientSocket{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientSocket)
// --------------------------------------------------------------------------

func (s *clientSocket) Open(ctx context.Context, config common.ClientConfig) error {
	switch s.State() {
	case transport.StateOpen:
		return nil
	case transport.StateClosed:
		return transport.ErrSocketClosed
	}

	if !s.state.CompareAndSwap(int32(transport.StateIdle), int32(transport.StateConnecting)) {
		return fmt.Errorf("%s socket is already connecting", s.connector.GetName())
	}

	if config.TimeoutSecond > 0 {
		s.writeTimeout = time.Duration(config.TimeoutSecond) * time.Second

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	conn, err := s.connector.Connect(ctx, config.Endpoint)
	if err != nil {
		s.state.CompareAndSwap(int32(transport.StateConnecting), int32(transport.StateIdle))
		return fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	if err := s.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		s.state.CompareAndSwap(int32(transport.StateConnecting), int32(transport.StateIdle))
		return fmt.Errorf("failed to upgrade connection to %s: %w", config.Endpoint, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	// Close may have been called while dialing
	if !s.state.CompareAndSwap(int32(transport.StateConnecting), int32(transport.StateOpen)) {
		conn.Close()
		return transport.ErrSocketClosed
	}

	Logger.Infof("Connected to %s using %s transport", config.Endpoint, s.connector.GetName())
	return nil
}

func (s *clientSocket) State() transport.SocketState {
	return transport.SocketState(s.state.Load())
}

func (s *clientSocket) Write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()

	switch s.State() {
	case transport.StateOpen:
	case transport.StateClosed:
		return transport.ErrSocketClosed
	default:
		return transport.ErrSocketNotOpen
	}

	if s.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}

	return writeFrame(conn, frame)
}

func (s *clientSocket) Read() ([]byte, error) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()

	if s.State() == transport.StateClosed {
		return nil, transport.ErrSocketClosed
	}
	if conn == nil {
		return nil, transport.ErrSocketNotOpen
	}

	data, err := readFrame(conn)
	if err != nil {
		// the connection is unusable after a failed read
		if s.closeConn() {
			return nil, fmt.Errorf("%s socket: %w", s.connector.GetName(), err)
		}
		return nil, transport.ErrSocketClosed
	}
	return data, nil
}

func (s *clientSocket) Close() error {
	s.closeConn()
	return nil
}

func (s *clientSocket) GetName() string {
	return s.connector.GetName()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// closeConn moves the socket to the closed state and closes the connection
// It reports whether this call performed the transition
func (s *clientSocket) closeConn() bool {
	prev := transport.SocketState(s.state.Swap(int32(transport.StateClosed)))
	if prev == transport.StateClosed {
		return false
	}

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			Logger.Debugf("Error closing %s connection: %v", s.connector.GetName(), err)
		}
	}
	return true
}
