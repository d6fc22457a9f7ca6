// Package base provides the foundation for stream socket transports (TCP, Unix
// sockets). Stream sockets have no message boundaries, so this package adds a
// length prefixed framing and implements both the client socket and the server
// transport on top of it. Protocol specific packages only provide a connector.
//
// Frame format:
//
//	- 4 bytes: data length (uint32, big endian)
//	- N bytes: data payload (one encoded header + body frame)
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientSocket: one connection implementing transport.IClientSocket. The
//     lifecycle state is kept in an atomic and moves to closed as soon as a read
//     fails, so readiness checks never see a dead connection as open.
//
//   - serverTransport: accepts connections and hands every frame to the
//     registered handler, sequentially per connection. Replies are written under
//     a per connection mutex and may be sent from any goroutine.
//
//   - ConnLimiter: optional token bucket per connection (golang.org/x/time/rate).
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes are serialized per connection,
//	reads are expected from a single goroutine.
package base
