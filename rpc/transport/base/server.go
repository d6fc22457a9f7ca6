package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Server Transport
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	addr       atomic.Value // string
	conns      *xsync.MapOf[uint64, net.Conn]
	nextConnID atomic.Uint64
}

// NewBaseServerTransport creates a new base server transport with the specified connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[uint64, net.Conn](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered for %s server", t.connector.GetName())
	}
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.addr.Store(listener.Addr().String())

	Logger.Infof("Starting %s server on %s", t.connector.GetName(), listener.Addr().String())

	// Stop accepting and close all connections once the context is done
	go func() {
		<-ctx.Done()
		listener.Close()
		t.conns.Range(func(_ uint64, conn net.Conn) bool {
			conn.Close()
			return true
		})
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.handleConnection(ctx, conn)
		}()
	}
}

func (t *serverTransport) Addr() string {
	addr, _ := t.addr.Load().(string)
	return addr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads frames from one connection and hands them to the handler
func (t *serverTransport) handleConnection(ctx context.Context, conn net.Conn) {
	id := t.nextConnID.Add(1)
	t.conns.Store(id, conn)
	defer func() {
		t.conns.Delete(id)
		conn.Close()
	}()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	limiter := NewConnLimiter(t.config)

	// Replies may be written from other goroutines than the reader
	var writeMu sync.Mutex
	reply := func(frame []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return err
			}
		}
		return writeFrame(conn, frame)
	}

	for {
		frame, err := readFrame(conn)

		// Case EOF: Connection closed by client
		if errors.Is(err, io.EOF) {
			Logger.Infof("Connection %d closed by client", id)
			return
		}

		// Case error: log and close connection
		if err != nil {
			if ctx.Err() == nil {
				Logger.Errorf("Error reading from connection %d: %v", id, err)
			}
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		start := time.Now()
		t.handler(frame, reply)
		Logger.Debugf("Processed frame of %d bytes on connection %d in %s", len(frame), id, time.Since(start))
	}
}

// --------------------------------------------------------------------------
// Rate Limiting
// --------------------------------------------------------------------------

// ConnLimiter throttles the inbound frames of a single connection
// A nil ConnLimiter never blocks.
type ConnLimiter struct {
	limiter *rate.Limiter
}

// NewConnLimiter creates the limiter configured by config.RateLimit and config.RateBurst
// It returns nil if rate limiting is disabled
func NewConnLimiter(config common.ServerConfig) *ConnLimiter {
	if config.RateLimit <= 0 {
		return nil
	}
	burst := config.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &ConnLimiter{limiter: rate.NewLimiter(rate.Limit(config.RateLimit), burst)}
}

// Wait blocks until the next frame may be processed
func (l *ConnLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
