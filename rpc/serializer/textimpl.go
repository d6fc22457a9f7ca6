package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
)

// separator between the header line and the body. JSON encoding escapes
// newlines inside strings, so the first raw newline always ends the header.
const separator = '\n'

// NewTextFrameCodec creates a codec writing a json header line followed by a json body
func NewTextFrameCodec() IFrameCodec {
	return &textFrameCodecImpl{}
}

// textFrameCodecImpl implements the IFrameCodec interface
type textFrameCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IFrameCodec)
// --------------------------------------------------------------------------

func (c *textFrameCodecImpl) Encode(msg common.Message) (Envelope, error) {
	header, err := json.Marshal(Header{Status: StatusSuccess, Type: msg.Type})
	if err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
	}

	return join(header, body), nil
}

func (c *textFrameCodecImpl) EncodeError(t common.MessageType, diagnostic string) Envelope {
	// a header of a status and a known type can always be marshalled
	header, _ := json.Marshal(Header{Status: StatusError, Type: t})
	if diagnostic == "" {
		return Envelope(header)
	}
	return join(header, []byte(diagnostic))
}

func (c *textFrameCodecImpl) DecodeHeader(raw []byte) (Header, error) {
	head := raw
	if i := bytes.IndexByte(raw, separator); i >= 0 {
		head = raw[:i]
	}

	var header Header
	if err := json.Unmarshal(head, &header); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	switch header.Status {
	case StatusSuccess, StatusError:
	default:
		return Header{}, fmt.Errorf("%w: unknown status %q", ErrMalformedHeader, header.Status)
	}

	return header, nil
}

func (c *textFrameCodecImpl) DecodeBody(raw []byte) (string, bool) {
	i := bytes.IndexByte(raw, separator)
	if i < 0 || i == len(raw)-1 {
		return "", false
	}
	return string(raw[i+1:]), true
}

func (c *textFrameCodecImpl) DecodeMessage(body string) (common.Message, error) {
	var msg common.Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return common.Message{}, fmt.Errorf("failed to decode message body: %w", err)
	}
	return msg, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// join concatenates header and body with the separator
func join(header, body []byte) Envelope {
	buf := make([]byte, 0, len(header)+1+len(body))
	buf = append(buf, header...)
	buf = append(buf, separator)
	buf = append(buf, body...)
	return Envelope(buf)
}
