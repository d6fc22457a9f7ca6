package sender

import "github.com/ValentinKolb/dMsg/rpc/serializer"

// outboundQueue holds envelopes that could not be sent yet.
// It behaves like an insertion ordered set: adding an envelope with the same
// content as a queued one is a no-op. Not safe for concurrent use, the sender
// guards it with its own mutex.
type outboundQueue struct {
	order   []serializer.Envelope
	members map[serializer.Envelope]struct{}
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{members: make(map[serializer.Envelope]struct{})}
}

// add queues env and reports whether it was not queued before
func (q *outboundQueue) add(env serializer.Envelope) bool {
	if _, ok := q.members[env]; ok {
		return false
	}
	q.members[env] = struct{}{}
	q.order = append(q.order, env)
	return true
}

// drain hands every queued envelope to fn in insertion order and removes it
func (q *outboundQueue) drain(fn func(env serializer.Envelope)) int {
	n := len(q.order)
	for _, env := range q.order {
		fn(env)
		delete(q.members, env)
	}
	q.order = nil
	return n
}

func (q *outboundQueue) len() int {
	return len(q.order)
}
