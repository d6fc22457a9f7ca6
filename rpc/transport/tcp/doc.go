// Package tcp implements the TCP socket transport. It provides connectors for
// the base package, which implements framing, the client socket and the server
// loop.
//
// Key Components:
//
//   - clientConnector: dials the endpoint (host:port) and applies the
//     configured TCP options (no delay, keep-alive, linger, buffer sizes).
//
//   - serverConnector: listens on the endpoint and applies the same options to
//     accepted connections.
package tcp
