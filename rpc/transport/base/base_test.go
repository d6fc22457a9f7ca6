package base

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"testing"
	"time"
)

// pipeConnector hands out one end of an in memory pipe
type pipeConnector struct {
	conn net.Conn
	err  error
}

func (c *pipeConnector) Connect(context.Context, string) (net.Conn, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.conn, nil
}

func (c *pipeConnector) GetName() string {
	return "pipe"
}

func (c *pipeConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// TestFrameRoundTrip tests the length prefixed framing
func TestFrameRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	frames := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte("x"), 4096)}

	go func() {
		for _, f := range frames {
			if err := writeFrame(a, f); err != nil {
				t.Errorf("Failed to write frame: %v", err)
				return
			}
		}
	}()

	for i, expected := range frames {
		got, err := readFrame(b)
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if !bytes.Equal(got, expected) {
			t.Errorf("Frame %d: expected %d bytes, got %d", i, len(expected), len(got))
		}
	}
}

// TestFrameTooLarge tests that oversized length prefixes are rejected
func TestFrameTooLarge(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		var header [4]byte
		binary.BigEndian.PutUint32(header[:], maxFrameSize+1)
		a.Write(header[:])
	}()

	if _, err := readFrame(b); err == nil {
		t.Errorf("Expected error for oversized frame")
	}
}

// TestClientSocketLifecycle tests the state transitions of the client socket
func TestClientSocketLifecycle(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	connector := &pipeConnector{conn: a, err: errors.New("refused")}
	s := NewBaseClientSocket(connector)

	if s.State() != transport.StateIdle {
		t.Fatalf("Expected idle socket, got %s", s.State())
	}
	if err := s.Write([]byte("x")); !errors.Is(err, transport.ErrSocketNotOpen) {
		t.Errorf("Expected ErrSocketNotOpen, got %v", err)
	}

	// failed attempts return to idle
	if err := s.Open(context.Background(), common.ClientConfig{Endpoint: "pipe"}); err == nil {
		t.Fatalf("Expected open to fail")
	}
	if s.State() != transport.StateIdle {
		t.Fatalf("Expected idle socket after failed open, got %s", s.State())
	}

	connector.err = nil
	if err := s.Open(context.Background(), common.ClientConfig{Endpoint: "pipe"}); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if s.State() != transport.StateOpen {
		t.Fatalf("Expected open socket, got %s", s.State())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if s.State() != transport.StateClosed {
		t.Errorf("Expected closed socket, got %s", s.State())
	}
	if _, err := s.Read(); !errors.Is(err, transport.ErrSocketClosed) {
		t.Errorf("Expected ErrSocketClosed on read, got %v", err)
	}
	if err := s.Write([]byte("x")); !errors.Is(err, transport.ErrSocketClosed) {
		t.Errorf("Expected ErrSocketClosed on write, got %v", err)
	}
	if err := s.Open(context.Background(), common.ClientConfig{}); !errors.Is(err, transport.ErrSocketClosed) {
		t.Errorf("Expected ErrSocketClosed on open, got %v", err)
	}
}

// TestClientServerExchange tests a client socket against the server connection handler
func TestClientServerExchange(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()

	srv := &serverTransport{
		conns: xsync.NewMapOf[uint64, net.Conn](),
		config: common.ServerConfig{
			TimeoutSecond: 1,
		},
	}
	srv.RegisterHandler(func(frame []byte, reply transport.ReplyFunc) {
		// two replies for every frame
		reply(append([]byte("echo:"), frame...))
		reply([]byte("done"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handled := make(chan struct{})
	go func() {
		srv.handleConnection(ctx, serverEnd)
		close(handled)
	}()

	s := NewBaseClientSocket(&pipeConnector{conn: clientEnd})
	if err := s.Open(context.Background(), common.ClientConfig{Endpoint: "pipe", TimeoutSecond: 1}); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	go func() {
		if err := s.Write([]byte("hi")); err != nil {
			t.Errorf("Failed to write: %v", err)
		}
	}()

	for _, expected := range []string{"echo:hi", "done"} {
		got, err := s.Read()
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if string(got) != expected {
			t.Errorf("Expected %q, got %q", expected, got)
		}
	}

	if n := srv.conns.Size(); n != 1 {
		t.Errorf("Expected one tracked connection, got %d", n)
	}

	// closing the client ends the server side handler
	s.Close()
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatalf("Server handler did not return")
	}
	if n := srv.conns.Size(); n != 0 {
		t.Errorf("Expected no tracked connections, got %d", n)
	}
}

// TestReadAfterPeerClose tests that a lost connection closes the socket
func TestReadAfterPeerClose(t *testing.T) {
	a, b := net.Pipe()

	s := NewBaseClientSocket(&pipeConnector{conn: a})
	if err := s.Open(context.Background(), common.ClientConfig{Endpoint: "pipe"}); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	b.Close()

	_, err := s.Read()
	if err == nil || errors.Is(err, transport.ErrSocketClosed) {
		t.Errorf("Expected connection error, got %v", err)
	}
	if s.State() != transport.StateClosed {
		t.Errorf("Expected closed socket, got %s", s.State())
	}
}

// TestConnLimiter tests the disabled and enabled rate limiter
func TestConnLimiter(t *testing.T) {
	if l := NewConnLimiter(common.ServerConfig{}); l != nil {
		t.Fatalf("Expected nil limiter when disabled")
	}

	var disabled *ConnLimiter
	if err := disabled.Wait(context.Background()); err != nil {
		t.Errorf("Nil limiter should never block: %v", err)
	}

	l := NewConnLimiter(common.ServerConfig{RateLimit: 1, RateBurst: 1})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("First frame should pass: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Errorf("Expected second frame to be throttled")
	}
}
