// Package common provides the message contract and configuration shared by the
// sender, the transports and the backend server.
//
// The package focuses on:
//   - Message definition and structural validation
//   - The closed MessageType enumeration and its wire tags
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Message: the unit exchanged over the duplex socket. The payload is kept
//     as raw json, the transport validates shape but never interprets it.
//
//   - MessageType: closed enumeration of all message tags known to both ends.
//     Unknown tags decode to MsgTUnknown so callers can drop them instead of
//     failing the whole frame.
//
//   - ClientConfig / ServerConfig: configuration with a readable String()
//     rendering used by the command line tools.
//
//   - Logger: named loggers in the form "LEVEL | name | message".
package common
