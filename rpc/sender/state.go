package sender

import "github.com/ValentinKolb/dMsg/rpc/transport"

// State is a snapshot of the observable state of a sender
type State struct {
	Connection transport.SocketState
	Ready      bool
	Queued     int
	Pending    int
}

// State returns the current state
func (s *Sender) State() State {
	s.mu.Lock()
	ready := s.readyLocked()
	queued := s.queue.len()
	s.mu.Unlock()

	return State{
		Connection: s.socket.State(),
		Ready:      ready,
		Queued:     queued,
		Pending:    s.Pending(),
	}
}

// OnChange registers fn to be called with the new state after connection
// changes, buffering, draining and resolved transactions. Observers run on the
// goroutine causing the change, in no particular order relative to each other.
// The returned function removes the observer.
func (s *Sender) OnChange(fn func(State)) (cancel func()) {
	id := s.nextObserverID.Add(1)
	s.observers.Store(id, fn)
	return func() {
		s.observers.Delete(id)
	}
}

// notify calls all observers with the current state. Must not be called with s.mu held.
func (s *Sender) notify() {
	if s.observers.Size() == 0 {
		return
	}
	state := s.State()
	s.observers.Range(func(_ uint64, fn func(State)) bool {
		fn(state)
		return true
	})
}
