package ws

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/ValentinKolb/dMsg/rpc/transport/base"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// NewWebsocketServerTransport creates a websocket server transport serving on path
func NewWebsocketServerTransport(path string) transport.IRPCServerTransport {
	if path == "" {
		path = "/"
	}
	return &serverTransport{
		path:  path,
		conns: xsync.NewMapOf[uint64, *websocket.Conn](),
		upgrader: websocket.Upgrader{
			// the backend is reached by the local UI process, which has no stable origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// serverTransport implements transport.IRPCServerTransport for websockets
type serverTransport struct {
	path       string
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	upgrader   websocket.Upgrader
	addr       atomic.Value // string
	conns      *xsync.MapOf[uint64, *websocket.Conn]
	nextConnID atomic.Uint64
	wg         sync.WaitGroup
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered for websocket server")
	}
	t.config = config

	if config.Transport.ReadBufferSize > 0 {
		t.upgrader.ReadBufferSize = config.Transport.ReadBufferSize
	}
	if config.Transport.WriteBufferSize > 0 {
		t.upgrader.WriteBufferSize = config.Transport.WriteBufferSize
	}

	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create websocket listener: %w", err)
	}
	t.addr.Store(listener.Addr().String())

	mux := http.NewServeMux()
	mux.HandleFunc(t.path, t.handleUpgrade(ctx))
	srv := &http.Server{Handler: mux}

	Logger.Infof("Starting websocket server on ws://%s%s", listener.Addr().String(), t.path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			Logger.Warningf("Failed to shut down websocket server: %v", err)
		}
		// hijacked connections are not closed by Shutdown
		t.conns.Range(func(_ uint64, conn *websocket.Conn) bool {
			conn.Close()
			return true
		})
	}()

	err = srv.Serve(listener)
	t.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *serverTransport) Addr() string {
	addr, _ := t.addr.Load().(string)
	return addr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleUpgrade upgrades a http request and serves the resulting connection
func (t *serverTransport) handleUpgrade(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an http error
			Logger.Warningf("Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
			return
		}

		t.wg.Add(1)
		defer t.wg.Done()
		t.handleConnection(ctx, conn)
	}
}

// handleConnection reads frames from one websocket and hands them to the handler
func (t *serverTransport) handleConnection(ctx context.Context, conn *websocket.Conn) {
	id := t.nextConnID.Add(1)
	t.conns.Store(id, conn)
	defer func() {
		t.conns.Delete(id)
		conn.Close()
	}()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	limiter := base.NewConnLimiter(t.config)

	var writeMu sync.Mutex
	reply := func(frame []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return err
			}
		}
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Logger.Infof("Connection %d closed by client", id)
			} else if ctx.Err() == nil {
				Logger.Errorf("Error reading from connection %d: %v", id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		start := time.Now()
		t.handler(frame, reply)
		Logger.Debugf("Processed frame of %d bytes on connection %d in %s", len(frame), id, time.Since(start))
	}
}
