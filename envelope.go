package broker

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Envelope is a decoded request body: a one-byte command followed by a
// command-specific payload.
type Envelope struct {
	Command Command
	Payload []byte
}

// DecodeEnvelope splits buf into command and payload. The payload aliases buf.
func DecodeEnvelope(buf []byte) (Envelope, error) {
	if len(buf) == 0 {
		return Envelope{}, newError(ErrMalformedEnvelope, "empty request")
	}
	return Envelope{Command: Command(buf[0]), Payload: buf[1:]}, nil
}

// Encode returns the wire form of e.
func (e Envelope) Encode() []byte {
	buf := make([]byte, 0, 1+len(e.Payload))
	buf = append(buf, byte(e.Command))
	return append(buf, e.Payload...)
}

// UploadPayload is the payload of an upload command: a storage path and the
// bytes to store, separated on the wire by a single zero byte.
type UploadPayload struct {
	Path string
	Data []byte
}

// DecodeUploadPayload splits raw at its first zero byte. Invalid UTF-8 in the
// path is replaced with U+FFFD.
func DecodeUploadPayload(raw []byte) (UploadPayload, error) {
	i := bytes.IndexByte(raw, 0)
	if i < 0 {
		return UploadPayload{}, newError(ErrMalformedUpload, "invalid upload data")
	}
	path := strings.ToValidUTF8(string(raw[:i]), "\uFFFD")
	return UploadPayload{Path: path, Data: raw[i+1:]}, nil
}

// Encode returns the wire form of p. The path must not contain a zero byte.
func (p UploadPayload) Encode() []byte {
	buf := make([]byte, 0, len(p.Path)+1+len(p.Data))
	buf = append(buf, p.Path...)
	buf = append(buf, 0)
	return append(buf, p.Data...)
}

// DecodeStructuredPayload checks that raw is a single JSON value and returns
// it as raw text, so parameters reach the backend exactly as the client sent them.
func DecodeStructuredPayload(raw []byte) (json.RawMessage, error) {
	var v json.RawMessage
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, newError(ErrMalformedJSON, "invalid json payload: %v", err)
	}
	return v, nil
}
