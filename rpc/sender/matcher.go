package sender

import "github.com/ValentinKolb/dMsg/rpc/common"

// Matcher is called for every message of the type it was registered for,
// both for locally sent and for received messages.
type Matcher func(msg common.Message)

// MatchID identifies one registration of a matcher
type MatchID uint64

type matcherEntry struct {
	id MatchID
	fn Matcher
}

// Match registers handler for messages of type t. Handlers of a type are
// invoked in registration order. The returned id is used to unregister.
func (s *Sender) Match(t common.MessageType, handler Matcher) MatchID {
	id := s.newMatchID()
	s.matchWithID(t, id, handler)
	return id
}

// Unmatch removes the registration id from type t.
// It is a no-op if the registration does not exist.
func (s *Sender) Unmatch(t common.MessageType, id MatchID) {
	s.matchers.Compute(t, func(old []matcherEntry, loaded bool) ([]matcherEntry, bool) {
		if !loaded {
			return old, true
		}

		idx := -1
		for i, e := range old {
			if e.id == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return old, false
		}

		// copy on write, dispatches in progress keep iterating the old slice
		next := make([]matcherEntry, 0, len(old)-1)
		next = append(next, old[:idx]...)
		next = append(next, old[idx+1:]...)
		return next, len(next) == 0
	})
}

// Matchers returns the number of handlers registered for type t
func (s *Sender) Matchers(t common.MessageType) int {
	entries, _ := s.matchers.Load(t)
	return len(entries)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Sender) newMatchID() MatchID {
	return MatchID(s.nextMatchID.Add(1))
}

// matchWithID appends a handler under an id allocated beforehand, so closures
// can refer to their own id before the first dispatch can happen
func (s *Sender) matchWithID(t common.MessageType, id MatchID, handler Matcher) {
	if !t.IsValid() {
		Logger.Warningf("Registered matcher for unknown message type %d, it will never be called", t)
	}

	s.matchers.Compute(t, func(old []matcherEntry, _ bool) ([]matcherEntry, bool) {
		next := make([]matcherEntry, len(old), len(old)+1)
		copy(next, old)
		return append(next, matcherEntry{id: id, fn: handler}), false
	})
}

// dispatch invokes the handlers currently registered for t in registration order
func (s *Sender) dispatch(t common.MessageType, msg common.Message) {
	entries, ok := s.matchers.Load(t)
	if !ok {
		return
	}
	for _, e := range entries {
		e.fn(msg)
	}
}
