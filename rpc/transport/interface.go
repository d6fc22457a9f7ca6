package transport

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dMsg/rpc/common"
)

// ErrSocketClosed is returned by socket operations after the socket was closed
var ErrSocketClosed = errors.New("socket closed")

// ErrSocketNotOpen is returned by writes on a socket that is not open yet
var ErrSocketNotOpen = errors.New("socket not open")

// --------------------------------------------------------------------------
// Socket State
// --------------------------------------------------------------------------

// SocketState is the lifecycle state of a client socket
type SocketState int32

const (
	StateIdle SocketState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s SocketState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Client Socket
// --------------------------------------------------------------------------

// IClientSocket is a single duplex, frame oriented connection.
// A socket is used for exactly one connection, once closed it stays closed.
type IClientSocket interface {
	// Open connects the socket and blocks until it is open or ctx is done
	// A failed attempt returns the socket to StateIdle so Open can be retried
	Open(ctx context.Context, config common.ClientConfig) error
	// State returns the current lifecycle state, derived from the underlying connection
	State() SocketState
	// Write transmits one frame
	Write(frame []byte) error
	// Read blocks until one complete frame arrives
	// It returns ErrSocketClosed once the socket was closed locally
	Read() ([]byte, error)
	// Close closes the connection
	Close() error
	// GetName returns the name of the transport type (e.g., "ws", "tcp")
	GetName() string
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ReplyFunc sends a frame back on the connection a request arrived on
type ReplyFunc func(frame []byte) error

// ServerHandleFunc is called by a server transport for every received frame.
// Replies may be sent any number of times, also after the handler returned,
// until the connection is closed.
type ServerHandleFunc func(frame []byte, reply ReplyFunc)

// IRPCServerTransport is the interface for the server side of a duplex transport
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called sequentially for the frames of one connection
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until ctx is done or listening fails
	Listen(ctx context.Context, config common.ServerConfig) error
	// Addr returns the address the transport is listening on, empty before Listen
	Addr() string
}
