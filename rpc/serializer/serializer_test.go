package serializer

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"reflect"
	"testing"
)

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just id and type
		{ID: "m1", Type: common.MsgTPing},

		// Message with empty object payload
		{ID: "x", Type: common.MsgTPong, Payload: json.RawMessage(`{}`)},

		// Transaction reply
		{
			ID:          "b",
			Type:        common.MsgTCheckNpmPackageResponse,
			Transaction: "2b1d3c1e-7a8a-4c55-9d4e-3b1f1e0f9a11",
			Payload:     json.RawMessage(`{"npmId":"react","valid":true}`),
		},

		// Payload containing a newline inside a string
		{ID: "log", Type: common.MsgTLog, Payload: json.RawMessage(`{"level":"info","message":"line1\nline2"}`)},
	}
}

// TestCodecRoundTrip tests that messages survive encode and decode unchanged
func TestCodecRoundTrip(t *testing.T) {
	codec := NewTextFrameCodec()

	for i, msg := range testMessages() {
		env, err := codec.Encode(msg)
		if err != nil {
			t.Errorf("Failed to encode message %d: %v", i, err)
			continue
		}

		header, err := codec.DecodeHeader([]byte(env))
		if err != nil {
			t.Errorf("Failed to decode header %d: %v", i, err)
			continue
		}
		if header.Status != StatusSuccess || header.Type != msg.Type {
			t.Errorf("Header %d mismatch: %+v", i, header)
		}

		body, ok := codec.DecodeBody([]byte(env))
		if !ok {
			t.Errorf("Message %d has no body", i)
			continue
		}

		result, err := codec.DecodeMessage(body)
		if err != nil {
			t.Errorf("Failed to decode message %d: %v", i, err)
			continue
		}

		if !reflect.DeepEqual(msg, result) {
			t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
		}
	}
}

// TestEncodeDeterministic tests that equal messages produce equal envelopes
func TestEncodeDeterministic(t *testing.T) {
	codec := NewTextFrameCodec()
	msg := common.Message{ID: "m1", Type: common.MsgTPing, Payload: json.RawMessage(`{}`)}

	a, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	b, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	if a != b {
		t.Errorf("Expected identical envelopes, got %q and %q", a, b)
	}

	expected := Envelope("{\"status\":\"success\",\"type\":\"Ping\"}\n{\"id\":\"m1\",\"type\":\"Ping\",\"payload\":{}}")
	if a != expected {
		t.Errorf("Unexpected wire format:\nexpected %q\ngot      %q", expected, a)
	}
}

// TestDecodeHeader tests header decoding of valid and invalid frames
func TestDecodeHeader(t *testing.T) {
	codec := NewTextFrameCodec()

	testCases := []struct {
		name        string
		data        string
		expected    Header
		expectError bool
	}{
		{
			name:     "Success header with body",
			data:     "{\"status\":\"success\",\"type\":\"Pong\"}\n{}",
			expected: Header{Status: StatusSuccess, Type: common.MsgTPong},
		},
		{
			name:     "Header only error frame",
			data:     `{"status":"error","type":"Ping"}`,
			expected: Header{Status: StatusError, Type: common.MsgTPing},
		},
		{
			name:     "Unknown type decodes to unknown",
			data:     "{\"status\":\"success\",\"type\":\"Req\"}\n{}",
			expected: Header{Status: StatusSuccess, Type: common.MsgTUnknown},
		},
		{
			name:        "Empty data",
			data:        "",
			expectError: true,
		},
		{
			name:        "Garbage header",
			data:        "not json\n{}",
			expectError: true,
		},
		{
			name:        "Unknown status",
			data:        `{"status":"maybe","type":"Ping"}`,
			expectError: true,
		},
		{
			name:        "Numeric type",
			data:        `{"status":"success","type":3}`,
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			header, err := codec.DecodeHeader([]byte(tc.data))

			if tc.expectError {
				if err == nil {
					t.Fatalf("Expected error but got header %+v", header)
				}
				if !errors.Is(err, ErrMalformedHeader) {
					t.Errorf("Expected ErrMalformedHeader, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Did not expect error but got: %v", err)
			}
			if header != tc.expected {
				t.Errorf("Expected header %+v, got %+v", tc.expected, header)
			}
		})
	}
}

// TestDecodeBody tests extraction of the body region
func TestDecodeBody(t *testing.T) {
	codec := NewTextFrameCodec()

	testCases := []struct {
		name     string
		data     string
		expected string
		ok       bool
	}{
		{name: "Header only", data: `{"status":"error","type":"Ping"}`, ok: false},
		{name: "Trailing separator", data: "{\"status\":\"error\",\"type\":\"Ping\"}\n", ok: false},
		{name: "Body", data: "{}\n{\"a\":1}", expected: `{"a":1}`, ok: true},
		{name: "Body with newline", data: "{}\nfirst\nsecond", expected: "first\nsecond", ok: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, ok := codec.DecodeBody([]byte(tc.data))
			if ok != tc.ok {
				t.Fatalf("Expected ok=%v, got %v", tc.ok, ok)
			}
			if body != tc.expected {
				t.Errorf("Expected body %q, got %q", tc.expected, body)
			}
		})
	}
}

// TestEncodeError tests that error frames are never decodable as success frames
func TestEncodeError(t *testing.T) {
	codec := NewTextFrameCodec()

	env := codec.EncodeError(common.MsgTPing, "failed to decode request")
	header, err := codec.DecodeHeader([]byte(env))
	if err != nil {
		t.Fatalf("Failed to decode header: %v", err)
	}
	if header.Status != StatusError {
		t.Errorf("Expected error status, got %s", header.Status)
	}

	body, ok := codec.DecodeBody([]byte(env))
	if !ok || body != "failed to decode request" {
		t.Errorf("Unexpected diagnostic: %q (ok=%v)", body, ok)
	}

	if _, ok := codec.DecodeBody([]byte(codec.EncodeError(common.MsgTPing, ""))); ok {
		t.Errorf("Expected header only frame for empty diagnostic")
	}
}
