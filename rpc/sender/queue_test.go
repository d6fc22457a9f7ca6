package sender

import (
	"github.com/ValentinKolb/dMsg/rpc/serializer"
	"reflect"
	"testing"
)

// TestQueueSetSemantics tests that equal envelopes collapse and order is kept
func TestQueueSetSemantics(t *testing.T) {
	q := newOutboundQueue()

	inputs := []serializer.Envelope{"a", "b", "a", "c", "b"}
	added := 0
	for _, env := range inputs {
		if q.add(env) {
			added++
		}
	}

	if added != 3 || q.len() != 3 {
		t.Fatalf("Expected 3 distinct envelopes, added %d, len %d", added, q.len())
	}

	var drained []serializer.Envelope
	n := q.drain(func(env serializer.Envelope) {
		drained = append(drained, env)
	})

	expected := []serializer.Envelope{"a", "b", "c"}
	if n != 3 || !reflect.DeepEqual(drained, expected) {
		t.Errorf("Expected %v, drained %v (n=%d)", expected, drained, n)
	}
	if q.len() != 0 {
		t.Errorf("Queue should be empty after drain, has %d entries", q.len())
	}

	// drained content can be queued again
	if !q.add("a") {
		t.Errorf("Expected envelope to be accepted after drain")
	}
}

// TestQueueDrainEmpty tests that draining an empty queue does nothing
func TestQueueDrainEmpty(t *testing.T) {
	q := newOutboundQueue()
	calls := 0
	if n := q.drain(func(serializer.Envelope) { calls++ }); n != 0 || calls != 0 {
		t.Errorf("Expected no calls, got n=%d calls=%d", n, calls)
	}
}
