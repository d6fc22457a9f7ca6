// Package rpc provides the duplex message transport between a UI process and
// its backend. Messages travel in both directions over one socket and are
// routed to handlers by their type.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the system,
//     including the Message contract, configuration structures, and logging.
//
//   - serializer: The text frame codec turning messages into envelopes
//     (a json header line followed by the json message) and back.
//
//   - transport: Socket abstractions with pluggable implementations
//     (websocket, TCP, Unix sockets) for the client and the server side.
//
//   - sender: The client. It buffers messages until the socket is open,
//     dispatches inbound messages to matchers and correlates transactions.
//
//   - server: The reference backend answering the message contract, used by
//     the serve command and the integration tests.
package rpc
