package serializer

import (
	"errors"
	"github.com/ValentinKolb/dMsg/rpc/common"
)

// ErrMalformedHeader is returned when the header region of a frame can not be decoded
var ErrMalformedHeader = errors.New("malformed frame header")

// Envelope is one encoded frame waiting for transmission.
// Two envelopes are equal if their content is equal.
type Envelope string

// HeaderStatus tells whether the body of a frame carries a message or a diagnostic
type HeaderStatus string

const (
	StatusSuccess HeaderStatus = "success"
	StatusError   HeaderStatus = "error"
)

// Header is the independently decodable head of a frame
type Header struct {
	Status HeaderStatus       `json:"status"`
	Type   common.MessageType `json:"type"`
}

// IFrameCodec is the interface for all frame codecs
type IFrameCodec interface {
	// Encode serializes a message into a success frame.
	// The result is deterministic for equal messages.
	Encode(msg common.Message) (Envelope, error)
	// EncodeError creates an error frame carrying a diagnostic instead of a message
	EncodeError(t common.MessageType, diagnostic string) Envelope
	// DecodeHeader decodes only the header region of a raw frame
	// It returns ErrMalformedHeader if the header can not be parsed
	DecodeHeader(raw []byte) (Header, error)
	// DecodeBody returns the body region of a raw frame
	// The second return value is false if the frame has no body
	DecodeBody(raw []byte) (string, bool)
	// DecodeMessage deserializes the body of a success frame into a Message
	DecodeMessage(body string) (common.Message, error)
}
