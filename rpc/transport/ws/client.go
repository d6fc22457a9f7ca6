package ws

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/socket")

// closeGracePeriod is how long Close waits for the close frame to be written
const closeGracePeriod = time.Second

// NewWebsocketClientSocket creates a new websocket client socket
func NewWebsocketClientSocket() transport.IClientSocket {
	return &clientSocket{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		},
	}
}

// clientSocket implements transport.IClientSocket on top of a websocket connection
type clientSocket struct {
	dialer       *websocket.Dialer
	state        atomic.Int32
	conn         *websocket.Conn
	connMu       sync.Mutex // Protects conn
	writeMu      sync.Mutex // gorilla allows only one concurrent writer
	writeTimeout time.Duration
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
		return fmt.Errorf("websocket is already connecting")
	}

	if config.TimeoutSecond > 0 {
		s.writeTimeout = time.Duration(config.TimeoutSecond) * time.Second

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	if config.Transport.ReadBufferSize > 0 {
		s.dialer.ReadBufferSize = config.Transport.ReadBufferSize
	}
	if config.Transport.WriteBufferSize > 0 {
		s.dialer.WriteBufferSize = config.Transport.WriteBufferSize
	}

	conn, resp, err := s.dialer.DialContext(ctx, config.Endpoint, nil)
	if err != nil {
		s.state.CompareAndSwap(int32(transport.StateConnecting), int32(transport.StateIdle))
		if resp != nil {
			return fmt.Errorf("failed to connect to %s (status %s): %w", config.Endpoint, resp.Status, err)
		}
		return fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	// Close may have been called while dialing
	if !s.state.CompareAndSwap(int32(transport.StateConnecting), int32(transport.StateOpen)) {
		conn.Close()
		return transport.ErrSocketClosed
	}

	Logger.Infof("Connected to %s using websocket transport", config.Endpoint)
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
	return conn.WriteMessage(websocket.TextMessage, frame)
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

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if s.closeConn(false) {
				return nil, fmt.Errorf("websocket: %w", err)
			}
			return nil, transport.ErrSocketClosed
		}

		// frames are always text, anything else is not part of the protocol
		if messageType != websocket.TextMessage {
			Logger.Debugf("Ignoring websocket message of type %d", messageType)
			continue
		}
		return data, nil
	}
}

func (s *clientSocket) Close() error {
	s.closeConn(true)
	return nil
}

func (s *clientSocket) GetName() string {
	return "ws"
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// closeConn moves the socket to the closed state and closes the connection,
// sending a close frame first if graceful is set.
// It reports whether this call performed the transition
func (s *clientSocket) closeConn(graceful bool) bool {
	prev := transport.SocketState(s.state.Swap(int32(transport.StateClosed)))
	if prev == transport.StateClosed {
		return false
	}

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()

	if conn == nil {
		return true
	}

	if graceful && prev == transport.StateOpen {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil {
			Logger.Debugf("Failed to send close frame: %v", err)
		}
	}
	if err := conn.Close(); err != nil {
		Logger.Debugf("Error closing websocket: %v", err)
	}
	return true
}
