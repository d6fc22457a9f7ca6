// Package server implements the reference backend senders talk to.
// It decodes the frames received by a server transport, routes the contained
// messages to adapters by type and writes their replies back on the connection
// the request arrived on.
//
// The package focuses on:
//   - Decoding and validating inbound frames with the same codec the senders use
//   - Adapter pattern to decouple message handling from transport and codec
//   - Answering undecodable or unsupported frames with error frames
//   - Exposing server and sender metrics in the prometheus text format
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters.
//     An adapter names the message types it handles and turns a request into
//     zero or more replies.
//
//   - NewSystemServerAdapter: Answers Ping with a Pong echoing the payload and
//     writes Log messages to the server log without replying.
//
//   - NewNpmServerAdapter: Answers CheckNpmPackageRequest and
//     ConnectNpmPatternLibraryRequest. Connecting a library additionally sends
//     a ProjectUpdate with all libraries of the project.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and codec, with both adapters registered.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint: "127.0.0.1:8080",
//	  TimeoutSecond: 5,
//	  RateLimit: 200,
//	  RateBurst: 50,
//	  MetricsEndpoint: "127.0.0.1:9090",
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  ws.NewWebsocketServerTransport("/"),
//	  serializer.NewTextFrameCodec(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Replies of one request are written in the order the adapter returned them,
// so a ConnectNpmPatternLibraryResponse always precedes its ProjectUpdate.
//
// Thread Safety:
//
//	Frames of one connection are handled sequentially, different connections
//	are handled concurrently. Adapters must therefore be safe for concurrent use.
//	RegisterAdapter may be called at any time, Serve should be called only once.
package server
