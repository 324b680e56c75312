// ABOUTME: Bounds-checked accessors over the double-buffered voxel region
// ABOUTME: Clear, write, read and atomic page publication
package voxel

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Flags are display hints stored in the header for the driver.
type Flags uint16

const (
	BrightnessUniform   Flags = 0x0000
	BrightnessOverdrive Flags = 0x0001
	BrightnessSaturate  Flags = 0x0002
	BrightnessMask      Flags = 0x0003
	DisablePanel0       Flags = 0x0004
	DisablePanel1       Flags = 0x0008
	DisableTrails       Flags = 0x0010
	StopAxisVertical    Flags = 0x0020
	Rotisserie          Flags = 0x0040
)

// Metadata is the display timing and format part of the header.
// The pipeline passes it through and only writes it when configured to.
type Metadata struct {
	BitsPerChannel       uint8
	Flags                Flags
	RevolutionsPerMinute uint16
	MicrosecondsPerFrame uint16
}

// Buffer is a view over a RegionSize byte region laid out as described in
// the package documentation.
type Buffer struct {
	mem      []byte
	readOnly bool

	// Header words. word0 holds page, bits_per_channel and flags;
	// word1 holds rpm and microseconds_per_frame.
	word0 *uint32
	word1 *uint32
}

// NewBuffer allocates a zeroed buffer on the heap. Page 0 is active.
func NewBuffer() *Buffer {
	words := make([]uint32, RegionSize/4)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), RegionSize)
	b, _ := FromBytes(mem)
	return b
}

// FromBytes wraps an existing region, typically a shared memory mapping.
// The region must be exactly RegionSize bytes and 4-byte aligned.
func FromBytes(mem []byte) (*Buffer, error) {
	return wrap(mem, false)
}

func wrap(mem []byte, readOnly bool) (*Buffer, error) {
	if len(mem) != RegionSize {
		return nil, fmt.Errorf("voxel: region is %d bytes, want %d", len(mem), RegionSize)
	}
	hdr := unsafe.Pointer(&mem[HeaderOffset])
	if uintptr(hdr)%4 != 0 {
		return nil, fmt.Errorf("voxel: header at %p is not 4-byte aligned", hdr)
	}
	return &Buffer{
		mem:      mem,
		readOnly: readOnly,
		word0:    (*uint32)(hdr),
		word1:    (*uint32)(unsafe.Pointer(&mem[HeaderOffset+4])),
	}, nil
}

// ReadOnly reports whether mutations are refused.
func (b *Buffer) ReadOnly() bool {
	return b.readOnly
}

func (b *Buffer) page(page int) ([]byte, error) {
	if page != 0 && page != 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	off := page * PageSize
	return b.mem[off : off+PageSize : off+PageSize], nil
}

// Clear zeroes every cell of page.
func (b *Buffer) Clear(page int) error {
	if b.readOnly {
		return ErrReadOnly
	}
	cells, err := b.page(page)
	if err != nil {
		return err
	}
	clear(cells)
	return nil
}

// Write sets one cell of page. Out of range coordinates return a
// *RangeError and leave the buffer untouched.
func (b *Buffer) Write(page, x, y, z int, color Pixel) error {
	if b.readOnly {
		return ErrReadOnly
	}
	cells, err := b.page(page)
	if err != nil {
		return err
	}
	idx, err := Index(x, y, z)
	if err != nil {
		return err
	}
	cells[idx] = byte(color)
	return nil
}

// At reads one cell of page.
func (b *Buffer) At(page, x, y, z int) (Pixel, error) {
	cells, err := b.page(page)
	if err != nil {
		return Off, err
	}
	idx, err := Index(x, y, z)
	if err != nil {
		return Off, err
	}
	return Pixel(cells[idx]), nil
}

// ActivePage returns the page readers should scan. Any non-zero selector
// value means page 1, as the driver reads it.
func (b *Buffer) ActivePage() int {
	if headerByte(atomic.LoadUint32(b.word0), offPage) != 0 {
		return 1
	}
	return 0
}

// Publish makes page the active page. It is a single atomic update of the
// header word holding the selector; the neighbouring header bytes are
// preserved. Publishing the active page again is a no-op.
func (b *Buffer) Publish(page int) error {
	if b.readOnly {
		return ErrReadOnly
	}
	if page != 0 && page != 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	b.updateWord0(func(h *[4]byte) { h[offPage] = byte(page) })
	return nil
}

// ReadActive returns a view of the page that is active at the moment of the
// call. The view keeps pointing at that page after later flips.
func (b *Buffer) ReadActive() Page {
	n := b.ActivePage()
	cells, _ := b.page(n)
	return Page{number: n, cells: cells}
}

// Page returns a view of page n.
func (b *Buffer) Page(n int) (Page, error) {
	cells, err := b.page(n)
	if err != nil {
		return Page{}, err
	}
	return Page{number: n, cells: cells}, nil
}

// Metadata reads the display header fields.
func (b *Buffer) Metadata() Metadata {
	var h0, h1 [4]byte
	binary.NativeEndian.PutUint32(h0[:], atomic.LoadUint32(b.word0))
	binary.NativeEndian.PutUint32(h1[:], atomic.LoadUint32(b.word1))
	return Metadata{
		BitsPerChannel:       h0[offBitsPerChannel],
		Flags:                Flags(binary.NativeEndian.Uint16(h0[offFlags:])),
		RevolutionsPerMinute: binary.NativeEndian.Uint16(h1[offRPM-4:]),
		MicrosecondsPerFrame: binary.NativeEndian.Uint16(h1[offUsPerFrame-4:]),
	}
}

// SetMetadata writes the display header fields without touching the page
// selector.
func (b *Buffer) SetMetadata(m Metadata) error {
	if b.readOnly {
		return ErrReadOnly
	}
	b.updateWord0(func(h *[4]byte) {
		h[offBitsPerChannel] = m.BitsPerChannel
		binary.NativeEndian.PutUint16(h[offFlags:], uint16(m.Flags))
	})
	var h1 [4]byte
	binary.NativeEndian.PutUint16(h1[offRPM-4:], m.RevolutionsPerMinute)
	binary.NativeEndian.PutUint16(h1[offUsPerFrame-4:], m.MicrosecondsPerFrame)
	atomic.StoreUint32(b.word1, binary.NativeEndian.Uint32(h1[:]))
	return nil
}

func (b *Buffer) updateWord0(fn func(h *[4]byte)) {
	for {
		old := atomic.LoadUint32(b.word0)
		var h [4]byte
		binary.NativeEndian.PutUint32(h[:], old)
		fn(&h)
		if atomic.CompareAndSwapUint32(b.word0, old, binary.NativeEndian.Uint32(h[:])) {
			return
		}
	}
}

func headerByte(word uint32, off int) byte {
	var h [4]byte
	binary.NativeEndian.PutUint32(h[:], word)
	return h[off]
}

// Page is a read view of one page of the buffer.
type Page struct {
	number int
	cells  []byte
}

// Number returns 0 or 1.
func (p Page) Number() int {
	return p.number
}

// At reads one cell.
func (p Page) At(x, y, z int) (Pixel, error) {
	idx, err := Index(x, y, z)
	if err != nil {
		return Off, err
	}
	return Pixel(p.cells[idx]), nil
}

// Count returns the number of lit (non-zero) cells.
func (p Page) Count() int {
	n := 0
	for _, c := range p.cells {
		if c != 0 {
			n++
		}
	}
	return n
}

// Snapshot copies the page cells.
func (p Page) Snapshot() []byte {
	out := make([]byte, len(p.cells))
	copy(out, p.cells)
	return out
}

// Each calls fn for every lit cell in index order.
func (p Page) Each(fn func(x, y, z int, c Pixel)) {
	for i, c := range p.cells {
		if c == 0 {
			continue
		}
		x, y, z := Coords(i)
		fn(x, y, z, Pixel(c))
	}
}
