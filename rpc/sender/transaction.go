package sender

import (
	"context"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/google/uuid"
	"sync/atomic"
)

// Future is the pending result of a transaction. It resolves at most once.
type Future struct {
	transactionID string
	expected      common.MessageType
	done          chan struct{}
	msg           common.Message
}

// TransactionID returns the correlation id attached to the request
func (f *Future) TransactionID() string {
	return f.transactionID
}

// Expected returns the message type the reply must have
func (f *Future) Expected() common.MessageType {
	return f.expected
}

// Done is closed once the reply arrived
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the reply arrived or ctx is done. A done ctx only ends the
// wait, the transaction stays registered and may still resolve later.
func (f *Future) Wait(ctx context.Context) (common.Message, error) {
	select {
	case <-f.done:
		return f.msg, nil
	case <-ctx.Done():
		return common.Message{}, ctx.Err()
	}
}

// Result returns the reply without blocking, the second value is false while
// the transaction is unresolved
func (f *Future) Result() (common.Message, bool) {
	select {
	case <-f.done:
		return f.msg, true
	default:
		return common.Message{}, false
	}
}

func (f *Future) resolve(msg common.Message) {
	f.msg = msg
	close(f.done)
}

// Transaction sends request with a fresh transaction id and returns a future
// that resolves with the first valid message of type expected carrying the
// same id.
//
// There is no timeout. Without a reply the future never resolves and the
// matcher registered for it stays in place. Use Wait with a context to stop
// waiting.
func (s *Sender) Transaction(request common.Message, expected common.MessageType) *Future {
	f := &Future{
		transactionID: uuid.NewString(),
		expected:      expected,
		done:          make(chan struct{}),
	}
	s.pending.Store(f.transactionID, f)
	transactionsStarted.Inc()

	var resolved atomic.Bool
	id := s.newMatchID()
	s.matchWithID(expected, id, func(msg common.Message) {
		if common.ValidateMessage(msg) != nil {
			return
		}
		if msg.Transaction != f.transactionID {
			return
		}
		if !resolved.CompareAndSwap(false, true) {
			return
		}

		s.Unmatch(expected, id)
		s.pending.Delete(f.transactionID)
		transactionsResolved.Inc()
		f.resolve(msg)
		s.notify()
	})

	request.Transaction = f.transactionID
	s.Send(request)
	return f
}

// Pending returns the number of transactions without reply
func (s *Sender) Pending() int {
	return s.pending.Size()
}
