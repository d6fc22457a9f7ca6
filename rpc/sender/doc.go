// Package sender implements the message transport client connecting the UI
// process to the backend over one persistent duplex socket.
//
// The package focuses on:
//   - Surviving a socket that is not open yet by buffering outbound messages
//   - Fanning out inbound messages to any number of subscribers per type
//   - Correlating asynchronous request/reply pairs
//
// Key Components:
//
//   - Connection management: Start opens the injected transport.IClientSocket
//     (with retries) and transmits everything buffered so far. Readiness is
//     derived from the socket state on every access.
//
//   - Outbound buffer: an insertion ordered set of encoded envelopes. Sending
//     the same content twice while disconnected results in a single
//     transmission.
//
//   - Matcher registry: Match/Unmatch per message type. Handlers are called in
//     registration order, for received messages and as a local echo for
//     messages sent while ready.
//
//   - Transactions: Transaction attaches a fresh id to a request and returns a
//     Future resolved by the first reply of the expected type with that id.
//     There is no timeout, an unanswered transaction keeps its matcher.
//
//   - Observable state: State and OnChange expose connection state, buffered
//     envelopes and pending transactions to the surrounding application.
//
// Error Handling:
//
//	Transport errors never reach callers of Send or Match. Malformed frames,
//	error frames, unknown types and invalid bodies are dropped (and counted in
//	the dmsg_sender_* metrics); invalid outbound messages are logged and
//	ignored.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Received frames are dispatched
//	sequentially on the read goroutine, the local echo of Send runs on the
//	calling goroutine. Handlers may call Send, Match and Unmatch.
package sender
