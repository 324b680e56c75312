// ABOUTME: Length-prefixed gzip frame codec
// ABOUTME: Encodes point batches to frames and decodes frames from a stream
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	// HeaderSize is magic (4 bytes) + big-endian payload length (4 bytes)
	HeaderSize = 8

	// DefaultMaxFrameSize bounds the compressed payload a receiver accepts
	DefaultMaxFrameSize = 16 << 20

	// DefaultMaxPayloadSize bounds the decompressed payload: four records
	// for every cell of the volume.
	DefaultMaxPayloadSize = 16 << 20
)

// Magic starts every frame.
var Magic = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

// Encoder turns point batches into frames. It reuses its buffers and is not
// safe for concurrent use.
type Encoder struct {
	zw  *gzip.Writer
	raw []byte
	out bytes.Buffer
}

// NewEncoder creates an encoder with the given gzip level
// (gzip.DefaultCompression, gzip.BestSpeed, ...).
func NewEncoder(level int) (*Encoder, error) {
	zw, err := gzip.NewWriterLevel(io.Discard, level)
	if err != nil {
		return nil, fmt.Errorf("invalid compression level %d: %w", level, err)
	}
	return &Encoder{zw: zw}, nil
}

// Encode returns the complete frame for points. The returned slice is
// reused by the next call.
func (e *Encoder) Encode(points []Point) ([]byte, error) {
	e.raw = AppendRecords(e.raw[:0], points)

	var hdr [HeaderSize]byte
	e.out.Reset()
	e.out.Write(hdr[:])

	e.zw.Reset(&e.out)
	if _, err := e.zw.Write(e.raw); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := e.zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}

	frame := e.out.Bytes()
	putHeader(frame[:HeaderSize], len(frame)-HeaderSize)
	return frame, nil
}

// WriteFrame encodes points and writes the frame to w.
func (e *Encoder) WriteFrame(w io.Writer, points []Point) (int, error) {
	frame, err := e.Encode(points)
	if err != nil {
		return 0, err
	}
	return w.Write(frame)
}

// Decoder reads frames from a stream. It reuses its buffers and is not safe
// for concurrent use.
type Decoder struct {
	// MaxFrameSize limits the declared payload length (default DefaultMaxFrameSize)
	MaxFrameSize int

	// MaxPayloadSize limits the decompressed length (default DefaultMaxPayloadSize)
	MaxPayloadSize int

	header  [HeaderSize]byte
	payload []byte
	zr      *gzip.Reader
	raw     bytes.Buffer
}

// NewDecoder creates a decoder with default limits.
func NewDecoder() *Decoder {
	return &Decoder{
		MaxFrameSize:   DefaultMaxFrameSize,
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

// ReadFrame reads and decodes the next frame from r.
//
// It returns io.EOF when r ends cleanly before a new frame, a
// *ProtocolError for bad magic, an oversized length or a stream that ends
// inside a frame, and a *CodecError when the payload does not decompress.
// Other read errors are returned as is.
func (d *Decoder) ReadFrame(r io.Reader) (Batch, error) {
	n, err := io.ReadFull(r, d.header[:])
	switch {
	case errors.Is(err, io.EOF):
		return Batch{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Batch{}, &ProtocolError{
			Err:    ErrTruncatedFrame,
			Detail: fmt.Sprintf("header: got %d of %d bytes", n, HeaderSize),
		}
	case err != nil:
		return Batch{}, err
	}

	if !bytes.Equal(d.header[:4], Magic[:]) {
		return Batch{}, &ProtocolError{
			Err:    ErrMalformedHeader,
			Detail: fmt.Sprintf("magic % x", d.header[:4]),
		}
	}

	length := int64(binary.BigEndian.Uint32(d.header[4:]))
	if length > int64(d.maxFrameSize()) {
		return Batch{}, &ProtocolError{
			Err:    ErrFrameTooLarge,
			Detail: fmt.Sprintf("declared %d bytes, limit %d", length, d.maxFrameSize()),
		}
	}

	if int64(cap(d.payload)) < length {
		d.payload = make([]byte, length)
	}
	payload := d.payload[:length]

	n, err = io.ReadFull(r, payload)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Batch{}, &ProtocolError{
			Err:    ErrTruncatedFrame,
			Detail: fmt.Sprintf("payload: got %d of %d bytes", n, length),
		}
	case err != nil:
		return Batch{}, err
	}

	return d.Decode(payload)
}

// Decode decompresses one frame payload into a batch.
func (d *Decoder) Decode(payload []byte) (Batch, error) {
	src := bytes.NewReader(payload)
	if d.zr == nil {
		zr, err := gzip.NewReader(src)
		if err != nil {
			return Batch{}, &CodecError{Err: ErrDecompression, Cause: err}
		}
		d.zr = zr
	} else if err := d.zr.Reset(src); err != nil {
		return Batch{}, &CodecError{Err: ErrDecompression, Cause: err}
	}

	limit := int64(d.maxPayloadSize())
	d.raw.Reset()
	n, err := d.raw.ReadFrom(io.LimitReader(d.zr, limit+1))
	if err != nil {
		return Batch{}, &CodecError{Err: ErrDecompression, Cause: err}
	}
	if n > limit {
		return Batch{}, &CodecError{Err: ErrPayloadTooLarge}
	}

	points, trailing := ParseRecords(d.raw.Bytes())
	return Batch{
		Points:   points,
		Trailing: trailing,
		WireSize: len(payload),
	}, nil
}

func (d *Decoder) maxFrameSize() int {
	if d.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return d.MaxFrameSize
}

func (d *Decoder) maxPayloadSize() int {
	if d.MaxPayloadSize <= 0 {
		return DefaultMaxPayloadSize
	}
	return d.MaxPayloadSize
}

// EncodeFrame encodes points with default compression into a new slice.
func EncodeFrame(points []Point) ([]byte, error) {
	enc, err := NewEncoder(gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	frame, err := enc.Encode(points)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(frame), nil
}

// WriteFrame encodes points with default compression and writes them to w.
func WriteFrame(w io.Writer, points []Point) error {
	frame, err := EncodeFrame(points)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// WriteRawFrame writes an already compressed payload with its header.
func WriteRawFrame(w io.Writer, payload []byte) error {
	var hdr [HeaderSize]byte
	putHeader(hdr[:], len(payload))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame from r with a fresh decoder.
func ReadFrame(r io.Reader) (Batch, error) {
	return NewDecoder().ReadFrame(r)
}

func putHeader(dst []byte, length int) {
	copy(dst[:4], Magic[:])
	binary.BigEndian.PutUint32(dst[4:HeaderSize], uint32(length))
}
