package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/serializer"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("server")

var (
	requestsTotal   = metrics.GetOrCreateCounter(`dmsg_server_requests_total`)
	repliesTotal    = metrics.GetOrCreateCounter(`dmsg_server_replies_total`)
	errorFrames     = metrics.GetOrCreateCounter(`dmsg_server_error_frames_total`)
	replyFailures   = metrics.GetOrCreateCounter(`dmsg_server_reply_failures_total`)
	clientErrFrames = metrics.GetOrCreateCounter(`dmsg_server_client_error_frames_total`)
)

// RPCServer is the backend answering the messages of connected senders
type RPCServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	codec     serializer.IFrameCodec
	adapters  *xsync.MapOf[common.MessageType, IRPCServerAdapter]
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and codec as parameters.
// The system and npm adapters are registered by default.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		ws.NewWebsocketServerTransport("/"),
//		serializer.NewTextFrameCodec(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	codec serializer.IFrameCodec,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:    config,
		transport: transport,
		codec:     codec,
		adapters:  xsync.NewMapOf[common.MessageType, IRPCServerAdapter](),
	}
	s.RegisterAdapter(NewSystemServerAdapter())
	s.RegisterAdapter(NewNpmServerAdapter())

	Logger.Infof("Created RPC Server")
	return s
}

// RegisterAdapter routes all message types of the adapter to it,
// replacing previously registered adapters for these types
func (s *RPCServer) RegisterAdapter(adapter IRPCServerAdapter) {
	for _, t := range adapter.Types() {
		s.adapters.Store(t, adapter)
	}
}

// Serve starts the RPC server and blocks until ctx is done or the transport fails.
// If configured, the prometheus metrics endpoint is started alongside.
func (s *RPCServer) Serve(ctx context.Context) error {
	Logger.Infof(s.config.String())

	if s.config.MetricsEndpoint != "" {
		if err := s.serveMetrics(ctx); err != nil {
			return err
		}
	}

	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(ctx, s.config)
}

// Addr returns the address the transport listens on
func (s *RPCServer) Addr() string {
	return s.transport.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handle processes one inbound frame and writes the replies
func (s *RPCServer) handle(frame []byte, reply transport.ReplyFunc) {
	requestsTotal.Inc()

	header, err := s.codec.DecodeHeader(frame)
	if err != nil {
		s.replyError(reply, common.MsgTUnknown, err)
		return
	}

	if header.Status == serializer.StatusError {
		clientErrFrames.Inc()
		diagnostic, _ := s.codec.DecodeBody(frame)
		Logger.Warningf("Client reported error for %s: %s", header.Type, diagnostic)
		return
	}

	body, ok := s.codec.DecodeBody(frame)
	if !ok {
		s.replyError(reply, header.Type, errors.New("frame has no body"))
		return
	}

	req, err := s.codec.DecodeMessage(body)
	if err != nil {
		s.replyError(reply, header.Type, err)
		return
	}
	if err := common.ValidateMessage(req); err != nil {
		s.replyError(reply, header.Type, err)
		return
	}
	if req.Type != header.Type {
		s.replyError(reply, header.Type, fmt.Errorf("header type %s does not match message type %s", header.Type, req.Type))
		return
	}

	adapter, ok := s.adapters.Load(req.Type)
	if !ok {
		s.replyError(reply, req.Type, fmt.Errorf("unsupported message type: %s", req.Type))
		return
	}

	replies, err := adapter.Handle(req)
	if err != nil {
		s.replyError(reply, req.Type, err)
		return
	}

	for _, msg := range replies {
		env, err := s.codec.Encode(msg)
		if err != nil {
			s.replyError(reply, req.Type, err)
			return
		}
		if err := reply([]byte(env)); err != nil {
			replyFailures.Inc()
			Logger.Errorf("Failed to send %s reply: %v", msg.Type, err)
			return
		}
		repliesTotal.Inc()
	}
}

// replyError sends an error frame for message type t
func (s *RPCServer) replyError(reply transport.ReplyFunc, t common.MessageType, cause error) {
	errorFrames.Inc()
	Logger.Warningf("Rejecting %s frame: %v", t, cause)
	if err := reply([]byte(s.codec.EncodeError(t, cause.Error()))); err != nil {
		replyFailures.Inc()
		Logger.Errorf("Failed to send error frame: %v", err)
	}
}

// serveMetrics exposes all metrics in the prometheus text format until ctx is done
func (s *RPCServer) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", s.config.MetricsEndpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	// fail fast if the address is not usable
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve metrics: %w", err)
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}
