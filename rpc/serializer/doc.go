// Package serializer implements the frame codec used on the duplex socket.
//
// Every frame consists of a header and a body that can be decoded
// independently of each other:
//
//	{"status":"success","type":"Ping"}
//	{"id":"...","type":"Ping","payload":{}}
//
// The header is a single json line. Its status is either "success", in which
// case the body is the json serialized Message, or "error", in which case the
// body (if present) is a diagnostic and must never be treated as a Message.
// A header only frame is valid.
//
// Key Components:
//
//   - IFrameCodec: interface that all codecs satisfy. The sender decodes the
//     header first, so a frame for a type nobody listens to is dropped without
//     parsing the body.
//
//   - textFrameCodecImpl: the newline separated json codec described above.
//
// Thread Safety:
//
//	Codecs are stateless and safe for concurrent use.
package serializer
