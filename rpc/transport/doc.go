// Package transport defines the socket abstractions the sender and the backend
// server are built on. The sender never selects a socket implementation itself,
// it receives an IClientSocket at construction.
//
// The package focuses on:
//   - A frame oriented, duplex client socket with an observable lifecycle
//   - A server transport that hands every frame to a handler with a reply path
//   - Multiple implementations (websocket, TCP, Unix sockets)
//
// Key Components:
//
//   - IClientSocket: one connection with the states idle, connecting, open
//     and closed. Readiness of the sender is derived from State() on every
//     access.
//
//   - IRPCServerTransport: accepts connections and routes frames to a
//     ServerHandleFunc. Replies go back over the same connection.
//
// Implementations:
//
//   - ws: websocket transport based on gorilla/websocket. Message boundaries
//     are provided by websocket framing.
//
//   - base: length prefixed framing for stream sockets, extended by the tcp
//     and unix packages with protocol specific connectors.
package transport
