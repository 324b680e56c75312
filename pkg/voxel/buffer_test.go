// ABOUTME: Tests for the voxel buffer
// ABOUTME: Covers bounds checks, page flips and header preservation
package voxel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	buf := NewBuffer()

	coords := [][3]int{
		{0, 0, 0},
		{SizeX - 1, SizeY - 1, SizeZ - 1},
		{64, 3, 17},
		{1, 127, 0},
	}

	for i, c := range coords {
		color := Pixel(i + 1)
		require.NoError(t, buf.Write(1, c[0], c[1], c[2], color))

		got, err := buf.At(1, c[0], c[1], c[2])
		require.NoError(t, err)
		assert.Equal(t, color, got, "cell %v", c)

		// The other page is untouched
		other, err := buf.At(0, c[0], c[1], c[2])
		require.NoError(t, err)
		assert.Equal(t, Off, other)
	}
}

func TestWriteOutOfRange(t *testing.T) {
	buf := NewBuffer()
	before := make([]byte, RegionSize)
	copy(before, buf.mem)

	tests := []struct {
		name    string
		x, y, z int
	}{
		{"x too large", SizeX, 0, 0},
		{"y too large", 0, SizeY, 0},
		{"z too large", 0, 0, SizeZ},
		{"negative x", -1, 0, 0},
		{"negative z", 5, 5, -1},
		{"z wraps into next column", 0, 0, SizeZ + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := buf.Write(0, tt.x, tt.y, tt.z, 0xFF)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOutOfRange))

			var rangeErr *RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.x, rangeErr.X)
		})
	}

	assert.Equal(t, before, buf.mem, "failed writes must not modify the buffer")
}

func TestInvalidPage(t *testing.T) {
	buf := NewBuffer()

	assert.ErrorIs(t, buf.Write(2, 0, 0, 0, 1), ErrInvalidPage)
	assert.ErrorIs(t, buf.Clear(-1), ErrInvalidPage)
	assert.ErrorIs(t, buf.Publish(3), ErrInvalidPage)
	assert.Equal(t, 0, buf.ActivePage())
}

func TestClear(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Write(0, 1, 2, 3, 0x80))
	require.NoError(t, buf.Write(1, 1, 2, 3, 0x40))

	require.NoError(t, buf.Clear(0))

	p0, err := buf.Page(0)
	require.NoError(t, err)
	assert.Equal(t, 0, p0.Count())

	p1, err := buf.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Count())
}

func TestPublishIdempotent(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Write(1, 10, 20, 30, 0x1C))

	require.NoError(t, buf.Publish(1))
	snap := buf.ReadActive().Snapshot()
	require.Equal(t, 1, buf.ActivePage())

	require.NoError(t, buf.Publish(1))
	assert.Equal(t, 1, buf.ActivePage())
	assert.Equal(t, snap, buf.ReadActive().Snapshot())
}

func TestPublishPreservesMetadata(t *testing.T) {
	buf := NewBuffer()
	meta := Metadata{
		BitsPerChannel:       2,
		Flags:                DisableTrails | BrightnessOverdrive,
		RevolutionsPerMinute: 1200,
		MicrosecondsPerFrame: 50000,
	}
	require.NoError(t, buf.SetMetadata(meta))

	for i := 0; i < 5; i++ {
		require.NoError(t, buf.Publish(i%2))
		assert.Equal(t, i%2, buf.ActivePage())
		assert.Equal(t, meta, buf.Metadata())
	}

	// And metadata writes leave the selector alone
	require.NoError(t, buf.Publish(1))
	require.NoError(t, buf.SetMetadata(Metadata{BitsPerChannel: 1}))
	assert.Equal(t, 1, buf.ActivePage())
}

func TestHeaderLayout(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Publish(1))
	require.NoError(t, buf.SetMetadata(Metadata{BitsPerChannel: 3}))

	assert.Equal(t, byte(1), buf.mem[HeaderOffset+offPage])
	assert.Equal(t, byte(3), buf.mem[HeaderOffset+offBitsPerChannel])
}

func TestReadActiveIsStableAcrossFlip(t *testing.T) {
	buf := NewBuffer()

	fill := func(page int, c Pixel) {
		require.NoError(t, buf.Clear(page))
		for y := 0; y < SizeY; y += 7 {
			for x := 0; x < SizeX; x += 5 {
				require.NoError(t, buf.Write(page, x, y, (x+y)%SizeZ, c))
			}
		}
	}

	fill(1, 0x11)
	require.NoError(t, buf.Publish(1))

	view := buf.ReadActive()
	require.Equal(t, 1, view.Number())

	// The writer builds the next frame in the inactive page and flips
	fill(0, 0x22)
	require.NoError(t, buf.Publish(0))

	// The earlier view still sees only the old frame
	seen := map[Pixel]int{}
	view.Each(func(x, y, z int, c Pixel) { seen[c]++ })
	assert.Len(t, seen, 1)
	assert.Contains(t, seen, Pixel(0x11))

	// A new read sees only the new frame
	seen = map[Pixel]int{}
	buf.ReadActive().Each(func(x, y, z int, c Pixel) { seen[c]++ })
	assert.Len(t, seen, 1)
	assert.Contains(t, seen, Pixel(0x22))
}

func TestIndexCoordsRoundTrip(t *testing.T) {
	for _, c := range [][3]int{{0, 0, 0}, {127, 127, 63}, {5, 9, 60}, {127, 0, 1}} {
		idx, err := Index(c[0], c[1], c[2])
		require.NoError(t, err)
		x, y, z := Coords(idx)
		assert.Equal(t, c, [3]int{x, y, z})
	}

	idx, err := Index(1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, StrideX, idx)

	idx, err = Index(0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, StrideY, idx)
}

func TestReadOnlyBuffer(t *testing.T) {
	mem := NewBuffer().mem
	ro, err := wrap(mem, true)
	require.NoError(t, err)

	assert.ErrorIs(t, ro.Write(0, 0, 0, 0, 1), ErrReadOnly)
	assert.ErrorIs(t, ro.Clear(0), ErrReadOnly)
	assert.ErrorIs(t, ro.Publish(1), ErrReadOnly)
	assert.ErrorIs(t, ro.SetMetadata(Metadata{}), ErrReadOnly)
	assert.Equal(t, 0, ro.ActivePage())
}

func TestFromBytesRejectsWrongSize(t *testing.T) {
	_, err := FromBytes(make([]byte, RegionSize-1))
	assert.Error(t, err)
}
