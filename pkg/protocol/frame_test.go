// ABOUTME: Tests for the frame codec
// ABOUTME: Round trips, framing errors and payload errors
package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multivox/vortexstream/pkg/voxel"
)

func gzipBytes(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	points := []Point{
		{X: 0, Y: 0, Z: 0, Color: 0xFF},
		{X: 127, Y: 127, Z: 63, Color: 0x00},
		{X: 12, Y: 99, Z: 40, Color: voxel.RGB(10, 200, 30)},
		{X: 12, Y: 99, Z: 40, Color: 0x01}, // duplicates survive the codec
	}

	frame, err := EncodeFrame(points)
	require.NoError(t, err)
	assert.Equal(t, Magic[:], frame[:4])

	batch, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)

	if diff := cmp.Diff(points, batch.Points); diff != "" {
		t.Errorf("decoded points mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, batch.Trailing)
	assert.Equal(t, len(frame)-HeaderSize, batch.WireSize)
}

func TestFrameRoundTripLarge(t *testing.T) {
	points := make([]Point, 0, 50000)
	for i := 0; i < cap(points); i++ {
		points = append(points, Point{
			X:     uint8(i % voxel.SizeX),
			Y:     uint8((i / voxel.SizeX) % voxel.SizeY),
			Z:     uint8(i % voxel.SizeZ),
			Color: voxel.Pixel(i),
		})
	}

	enc, err := NewEncoder(gzip.BestSpeed)
	require.NoError(t, err)

	var stream bytes.Buffer
	_, err = enc.WriteFrame(&stream, points)
	require.NoError(t, err)
	_, err = enc.WriteFrame(&stream, points[:10])
	require.NoError(t, err)

	dec := NewDecoder()
	first, err := dec.ReadFrame(&stream)
	require.NoError(t, err)
	assert.Equal(t, points, first.Points)

	second, err := dec.ReadFrame(&stream)
	require.NoError(t, err)
	assert.Equal(t, points[:10], second.Points)

	_, err = dec.ReadFrame(&stream)
	assert.Equal(t, io.EOF, err)
}

func TestEmptyBatch(t *testing.T) {
	frame, err := EncodeFrame(nil)
	require.NoError(t, err)

	batch, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Empty(t, batch.Points)
}

func TestDecodeErrors(t *testing.T) {
	valid, err := EncodeFrame([]Point{{X: 1, Y: 2, Z: 3, Color: 4}})
	require.NoError(t, err)

	badMagic := bytes.Clone(valid)
	badMagic[2] = 0x00

	var declared100 bytes.Buffer
	declared100.Write(Magic[:])
	declared100.Write([]byte{0, 0, 0, 100})
	declared100.Write(make([]byte, 50))

	var notGzip bytes.Buffer
	require.NoError(t, WriteRawFrame(&notGzip, []byte("definitely not gzip")))

	var huge bytes.Buffer
	huge.Write(Magic[:])
	huge.Write([]byte{0xFF, 0xFF, 0xFF, 0xF0})

	tests := []struct {
		name     string
		input    []byte
		sentinel error
		protocol bool
	}{
		{"bad magic", badMagic, ErrMalformedHeader, true},
		{"truncated header", valid[:5], ErrTruncatedFrame, true},
		{"truncated payload", valid[:len(valid)-3], ErrTruncatedFrame, true},
		{"declared 100 sent 50", declared100.Bytes(), ErrTruncatedFrame, true},
		{"oversized length", huge.Bytes(), ErrFrameTooLarge, true},
		{"payload not gzip", notGzip.Bytes(), ErrDecompression, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var pe *ProtocolError
			var ce *CodecError
			if tt.protocol {
				assert.ErrorAs(t, err, &pe)
			} else {
				assert.ErrorAs(t, err, &ce)
			}
		})
	}
}

func TestCorruptPayload(t *testing.T) {
	payload := gzipBytes(t, bytes.Repeat([]byte{1, 2, 3, 4}, 100))
	payload[len(payload)-6] ^= 0xFF // damage the CRC

	var buf bytes.Buffer
	require.NoError(t, WriteRawFrame(&buf, payload))

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrDecompression)
}

func TestEmptyPayloadIsCodecError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRawFrame(&buf, nil))

	dec := NewDecoder()
	_, err := dec.ReadFrame(&buf)

	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrDecompression)
	assert.NotErrorIs(t, err, io.EOF, "an empty gzip stream is not a clean end of stream")

	// Same after the decoder already holds a gzip reader
	require.NoError(t, WriteFrame(&buf, []Point{{X: 1, Y: 1, Z: 1, Color: 1}}))
	require.NoError(t, WriteRawFrame(&buf, nil))
	_, err = dec.ReadFrame(&buf)
	require.NoError(t, err)
	_, err = dec.ReadFrame(&buf)
	require.ErrorAs(t, err, &ce)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestPayloadLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRawFrame(&buf, gzipBytes(t, make([]byte, 4096))))

	dec := NewDecoder()
	dec.MaxPayloadSize = 1024
	_, err := dec.ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestTrailingBytesDiscarded(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	var buf bytes.Buffer
	require.NoError(t, WriteRawFrame(&buf, gzipBytes(t, raw)))

	batch, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []Point{{1, 2, 3, 4}, {5, 6, 7, 8}}, batch.Points)
	assert.Equal(t, 2, batch.Trailing)
}

func TestCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestDecoderRecoversAfterCodecError(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, WriteRawFrame(&stream, []byte("junk")))
	require.NoError(t, WriteFrame(&stream, []Point{{X: 9, Y: 9, Z: 9, Color: 9}}))

	dec := NewDecoder()
	_, err := dec.ReadFrame(&stream)
	require.ErrorIs(t, err, ErrDecompression)

	batch, err := dec.ReadFrame(&stream)
	require.NoError(t, err)
	assert.Len(t, batch.Points, 1)
}

func TestParseRecords(t *testing.T) {
	points := []Point{{1, 2, 3, 4}, {127, 127, 63, 255}}
	raw := AppendRecords(nil, points)
	assert.Equal(t, []byte{1, 2, 3, 4, 127, 127, 63, 255}, raw)

	got, trailing := ParseRecords(raw)
	assert.Equal(t, points, got)
	assert.Zero(t, trailing)

	assert.True(t, Point{X: 127, Y: 127, Z: 63}.InBounds())
	assert.False(t, Point{X: 128}.InBounds())
	assert.False(t, Point{Z: 64}.InBounds())
}
