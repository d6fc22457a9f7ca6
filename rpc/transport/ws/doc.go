// Package ws implements the websocket transport, the default transport between
// the UI process and the backend. It uses gorilla/websocket; every frame is
// sent as one text message, so no additional framing is needed.
//
// Key Components:
//
//   - clientSocket: transport.IClientSocket over a websocket connection. The
//     socket state follows the connection: it becomes closed as soon as a read
//     fails or Close is called. Close sends a normal closure frame first.
//
//   - serverTransport: http server upgrading requests on the configured path.
//     Frames of one connection are handled sequentially, replies are written
//     under a per connection mutex since gorilla/websocket supports only one
//     concurrent writer.
//
// Non text messages are ignored on both ends.
package ws
