package sender

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/serializer"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/cenkalti/backoff/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("sender")

// initialRetryInterval is the first backoff interval between dial attempts
const initialRetryInterval = 50 * time.Millisecond

// Sender connects the application to the backend over one duplex socket.
// Messages sent before the socket is open are buffered and transmitted once it
// is, inbound messages are dispatched to the matchers registered for their type.
type Sender struct {
	config common.ClientConfig
	socket transport.IClientSocket
	codec  serializer.IFrameCodec

	// startMu serializes Start calls
	startMu sync.Mutex

	// mu guards the queue and attached. Checking readiness and enqueueing
	// happen under the same lock as draining, so nothing is left in the queue
	// once the sender is ready.
	mu       sync.Mutex
	queue    *outboundQueue
	attached bool // the queue was drained for the current connection

	matchers    *xsync.MapOf[common.MessageType, []matcherEntry]
	nextMatchID atomic.Uint64

	pending *xsync.MapOf[string, *Future]

	observers      *xsync.MapOf[uint64, func(State)]
	nextObserverID atomic.Uint64
}

// NewSender creates a sender for the given socket and codec.
// If config.Autostart is set the connection is started in the background,
// failures are logged.
//
// Usage:
//
//	s := sender.NewSender(
//		common.DefaultClientConfig("ws://localhost:8080/"),
//		ws.NewWebsocketClientSocket(),
//		serializer.NewTextFrameCodec(),
//	)
//	s.Match(common.MsgTProjectUpdate, func(msg common.Message) { ... })
//	s.Send(msg)
func NewSender(config common.ClientConfig, socket transport.IClientSocket, codec serializer.IFrameCodec) *Sender {
	s := &Sender{
		config:    config,
		socket:    socket,
		codec:     codec,
		queue:     newOutboundQueue(),
		matchers:  xsync.NewMapOf[common.MessageType, []matcherEntry](),
		pending:   xsync.NewMapOf[string, *Future](),
		observers: xsync.NewMapOf[uint64, func(State)](),
	}

	if config.Autostart {
		go func() {
			if err := s.Start(context.Background()); err != nil {
				Logger.Errorf("Failed to start connection to %s: %v", config.Endpoint, err)
			}
		}()
	}

	return s
}

// --------------------------------------------------------------------------
// Connection Management
// --------------------------------------------------------------------------

// Start opens the socket and blocks until it is open, ctx is done or all
// attempts failed. Once open, buffered envelopes are transmitted in the order
// they were queued. Start returns immediately if the sender is already ready.
func (s *Sender) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.Ready() {
		return nil
	}

	if s.socket.State() == transport.StateClosed {
		return transport.ErrSocketClosed
	}

	retries := s.config.RetryCount
	if retries < 1 {
		retries = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = initialRetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(retries-1)), ctx)

	attempt := 0
	open := func() error {
		attempt++
		s.notify()
		err := s.socket.Open(ctx, s.config)
		if errors.Is(err, transport.ErrSocketClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, wait time.Duration) {
		Logger.Warningf("Attempt %d/%d to open %s socket failed, retrying in %s: %v",
			attempt, retries, s.socket.GetName(), wait.Round(time.Millisecond), err)
	}

	if err := backoff.RetryNotify(open, policy, onRetry); err != nil {
		s.notify()
		return fmt.Errorf("failed to open %s socket to %s: %w", s.socket.GetName(), s.config.Endpoint, err)
	}

	s.mu.Lock()
	go s.readLoop()
	sent := s.queue.drain(s.Pass)
	s.attached = true
	s.mu.Unlock()

	Logger.Infof("Connection to %s is ready, transmitted %d buffered envelopes", s.config.Endpoint, sent)
	s.notify()
	return nil
}

// Ready reports whether messages are transmitted immediately.
// It is derived from the socket state on every call.
func (s *Sender) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyLocked()
}

// readyLocked is Ready for callers holding s.mu
func (s *Sender) readyLocked() bool {
	return s.attached && s.socket.State() == transport.StateOpen
}

// Pass transmits an envelope without any readiness check.
// Callers must have verified readiness, errors are logged.
func (s *Sender) Pass(env serializer.Envelope) {
	if err := s.socket.Write([]byte(env)); err != nil {
		frameErrors.Inc()
		Logger.Errorf("Failed to transmit envelope: %v", err)
		return
	}
	framesSent.Inc()
}

// Close closes the socket. A closed sender does not reconnect, messages sent
// afterwards are buffered.
func (s *Sender) Close() error {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()

	err := s.socket.Close()
	s.notify()
	return err
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send transmits a message. Invalid messages are logged and dropped. If the
// sender is not ready the encoded message is buffered, otherwise it is
// dispatched to the local matchers of its type first and then transmitted.
func (s *Sender) Send(msg common.Message) {
	if err := common.ValidateMessage(msg); err != nil {
		invalidSends.Inc()
		Logger.Errorf("Tried to send invalid message: %v", err)
		return
	}

	env, err := s.codec.Encode(msg)
	if err != nil {
		invalidSends.Inc()
		Logger.Errorf("Failed to encode message %s: %v", msg.ID, err)
		return
	}

	s.mu.Lock()
	if !s.readyLocked() {
		added := s.queue.add(env)
		s.mu.Unlock()

		if added {
			messagesQueued.Inc()
			Logger.Debugf("Buffered %s message %s until the connection is ready", msg.Type, msg.ID)
			s.notify()
		}
		return
	}
	s.mu.Unlock()

	s.dispatch(msg.Type, msg)
	s.Pass(env)
}

// --------------------------------------------------------------------------
// Receiving
// --------------------------------------------------------------------------

// readLoop receives frames until the socket is closed
func (s *Sender) readLoop() {
	for {
		raw, err := s.socket.Read()
		if err != nil {
			if !errors.Is(err, transport.ErrSocketClosed) {
				Logger.Errorf("Connection to %s lost: %v", s.config.Endpoint, err)
			}
			s.notify()
			return
		}
		s.receive(raw)
	}
}

// receive validates one inbound frame and dispatches the contained message
func (s *Sender) receive(raw []byte) {
	framesReceived.Inc()

	header, err := s.codec.DecodeHeader(raw)
	if err != nil {
		droppedMalformed.Inc()
		Logger.Warningf("Dropping frame: %v", err)
		return
	}

	if header.Status == serializer.StatusError {
		droppedErrorStatus.Inc()
		diagnostic, _ := s.codec.DecodeBody(raw)
		Logger.Errorf("Received error frame for %s: %s", header.Type, diagnostic)
		return
	}

	if !header.Type.IsValid() {
		droppedUnknownType.Inc()
		return
	}

	// nobody listens, no need to parse the body
	if s.Matchers(header.Type) == 0 {
		return
	}

	body, ok := s.codec.DecodeBody(raw)
	if !ok {
		droppedInvalidBody.Inc()
		return
	}

	msg, err := s.codec.DecodeMessage(body)
	if err != nil {
		droppedInvalidBody.Inc()
		return
	}

	if common.ValidateMessage(msg) != nil || msg.Type != header.Type {
		droppedInvalidBody.Inc()
		return
	}

	s.dispatch(header.Type, msg)
}
