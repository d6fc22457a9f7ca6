package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
)

// ErrInvalidMessage is returned by ValidateMessage for messages that do not
// satisfy the message contract
var ErrInvalidMessage = errors.New("invalid message")

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the unit exchanged between the UI process and the backend.
// The payload is tag specific and treated as opaque by the transport.
type Message struct {
	// ID uniquely identifies one occurrence of a message
	ID string `json:"id"`

	// Type of message
	Type MessageType `json:"type"`

	// Transaction correlates a request with its reply (optional)
	Transaction string `json:"transaction,omitempty"`

	// Payload carries the tag specific content
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewMessage creates a message with a fresh id. The payload is json encoded,
// a nil payload results in a message without payload.
func NewMessage(t MessageType, payload any) (Message, error) {
	msg := Message{
		ID:   uuid.NewString(),
		Type: t,
	}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode payload for %s: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// NewReply creates a message answering req. The reply carries the transaction
// of the request so that the sender can correlate it.
func NewReply(req Message, t MessageType, payload any) (Message, error) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return Message{}, err
	}
	msg.Transaction = req.Transaction
	return msg, nil
}

// DecodePayload unmarshals the payload of the message into v
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s (%s) has no payload", m.ID, m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// ValidateMessage checks the structural contract of a message: an id must be
// present, the type must be part of the known enumeration and the payload, if
// any, must be valid json.
func ValidateMessage(m Message) error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	if len(m.Payload) > 0 && !json.Valid(m.Payload) {
		return fmt.Errorf("%w: payload of %s is not valid json", ErrInvalidMessage, m.ID)
	}
	return nil
}

// --------------------------------------------------------------------------
// Payload Definitions
// --------------------------------------------------------------------------

// NpmLibraryPayload is the payload of ConnectNpmPatternLibraryRequest
type NpmLibraryPayload struct {
	NpmID     string `json:"npmId"`
	ProjectID string `json:"projectId"`
}

// NpmLibraryResultPayload is the payload of ConnectNpmPatternLibraryResponse
type NpmLibraryResultPayload struct {
	NpmID     string `json:"npmId"`
	ProjectID string `json:"projectId"`
	LibraryID string `json:"libraryId,omitempty"`
	Err       string `json:"err,omitempty"`
}

// NpmPackagePayload is the payload of CheckNpmPackageRequest
type NpmPackagePayload struct {
	NpmID string `json:"npmId"`
}

// NpmPackageResultPayload is the payload of CheckNpmPackageResponse
type NpmPackageResultPayload struct {
	NpmID string `json:"npmId"`
	Valid bool   `json:"valid"`
}

// ProjectUpdatePayload is the payload of ProjectUpdate notifications
type ProjectUpdatePayload struct {
	ProjectID string   `json:"projectId"`
	Libraries []string `json:"libraries"`
}

// LogPayload is the payload of Log messages
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type tag of a message. The set of types is closed
// and shared with the remote peer.
type MessageType uint8

// String returns the wire tag of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTPing:
		return "Ping"
	case MsgTPong:
		return "Pong"
	case MsgTConnectNpmPatternLibraryRequest:
		return "ConnectNpmPatternLibraryRequest"
	case MsgTConnectNpmPatternLibraryResponse:
		return "ConnectNpmPatternLibraryResponse"
	case MsgTCheckNpmPackageRequest:
		return "CheckNpmPackageRequest"
	case MsgTCheckNpmPackageResponse:
		return "CheckNpmPackageResponse"
	case MsgTProjectUpdate:
		return "ProjectUpdate"
	case MsgTLog:
		return "Log"
	default:
		return "Unknown"
	}
}

// IsValid reports whether t is a member of the known enumeration
func (t MessageType) IsValid() bool {
	return t > MsgTUnknown && t <= msgTLast
}

// ParseMessageType converts a wire tag into a MessageType. Unknown tags
// result in MsgTUnknown.
func ParseMessageType(s string) MessageType {
	for t := MsgTPing; t <= msgTLast; t++ {
		if t.String() == s {
			return t
		}
	}
	return MsgTUnknown
}

// MessageTypes returns all known message types in declaration order
func MessageTypes() []MessageType {
	types := make([]MessageType, 0, int(msgTLast))
	for t := MsgTPing; t <= msgTLast; t++ {
		types = append(types, t)
	}
	return types
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as its tag in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// Tags that are not part of the enumeration decode to MsgTUnknown, only
// non string values are an error.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("message type must be a string: %w", err)
	}
	*t = ParseMessageType(s)
	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota

	// Connection health

	MsgTPing // Liveness probe, answered with MsgTPong
	MsgTPong // Reply to MsgTPing

	// Library store operations

	MsgTConnectNpmPatternLibraryRequest  // Connect an npm package as pattern library
	MsgTConnectNpmPatternLibraryResponse // Result of a connect request
	MsgTCheckNpmPackageRequest           // Ask the backend whether a package exists
	MsgTCheckNpmPackageResponse          // Result of a package check

	// Notifications

	MsgTProjectUpdate // Project state changed on the backend
	MsgTLog           // Diagnostic output of the remote peer

	msgTLast = MsgTLog
)
