package sender

import "github.com/VictoriaMetrics/metrics"

// counters are shared by all senders of the process
var (
	framesSent     = metrics.GetOrCreateCounter(`dmsg_sender_frames_sent_total`)
	frameErrors    = metrics.GetOrCreateCounter(`dmsg_sender_frame_errors_total`)
	framesReceived = metrics.GetOrCreateCounter(`dmsg_sender_frames_received_total`)
	messagesQueued = metrics.GetOrCreateCounter(`dmsg_sender_messages_queued_total`)
	invalidSends   = metrics.GetOrCreateCounter(`dmsg_sender_invalid_messages_total`)

	droppedMalformed   = metrics.GetOrCreateCounter(`dmsg_sender_frames_dropped_total{reason="malformed"}`)
	droppedErrorStatus = metrics.GetOrCreateCounter(`dmsg_sender_frames_dropped_total{reason="error_status"}`)
	droppedUnknownType = metrics.GetOrCreateCounter(`dmsg_sender_frames_dropped_total{reason="unknown_type"}`)
	droppedInvalidBody = metrics.GetOrCreateCounter(`dmsg_sender_frames_dropped_total{reason="invalid_body"}`)

	transactionsStarted  = metrics.GetOrCreateCounter(`dmsg_sender_transactions_started_total`)
	transactionsResolved = metrics.GetOrCreateCounter(`dmsg_sender_transactions_resolved_total`)

	_ = metrics.GetOrCreateGauge(`dmsg_sender_transactions_pending`, func() float64 {
		return float64(transactionsStarted.Get()) - float64(transactionsResolved.Get())
	})
)
