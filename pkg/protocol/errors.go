// ABOUTME: Error kinds for frame decoding
// ABOUTME: Protocol errors (framing) and codec errors (payload)
package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHeader means the frame did not start with the magic bytes
	ErrMalformedHeader = errors.New("malformed frame header")

	// ErrTruncatedFrame means the stream ended inside a frame
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrFrameTooLarge means the declared payload length exceeds the limit
	ErrFrameTooLarge = errors.New("frame exceeds size limit")

	// ErrDecompression means the payload is not a valid gzip stream
	ErrDecompression = errors.New("payload decompression failed")

	// ErrPayloadTooLarge means the payload inflates past the limit
	ErrPayloadTooLarge = errors.New("decompressed payload exceeds size limit")
)

// ProtocolError is a framing failure. It ends the connection.
type ProtocolError struct {
	Err    error
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return "protocol error: " + e.Err.Error()
	}
	return fmt.Sprintf("protocol error: %v (%s)", e.Err, e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// CodecError is a payload failure. It ends the connection. Cause is the
// decompressor's own error; it is reported in the message but not exposed
// to errors.Is, so a gzip io.EOF never reads as a clean disconnect.
type CodecError struct {
	Err   error
	Cause error
}

func (e *CodecError) Error() string {
	if e.Cause == nil {
		return "codec error: " + e.Err.Error()
	}
	return fmt.Sprintf("codec error: %v: %v", e.Err, e.Cause)
}

func (e *CodecError) Unwrap() error { return e.Err }
