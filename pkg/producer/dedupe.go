// ABOUTME: Per-frame duplicate removal for projected points
// ABOUTME: One point per cell, last colour wins, ordered by cell index
package producer

import (
	"slices"

	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

// Deduper collapses points that land on the same cell. It keeps page-sized
// scratch space between calls and is not safe for concurrent use.
type Deduper struct {
	seen    []uint64 // one bit per cell
	colors  []voxel.Pixel
	touched []int
}

// NewDeduper creates a deduper
func NewDeduper() *Deduper {
	return &Deduper{
		seen:   make([]uint64, voxel.PageSize/64),
		colors: make([]voxel.Pixel, voxel.PageSize),
	}
}

// Dedupe returns a new slice with one point per occupied cell, in cell
// index order. When several points share a cell the last one's colour is
// kept. Out of range points are dropped.
func (d *Deduper) Dedupe(points []protocol.Point) []protocol.Point {
	d.touched = d.touched[:0]

	for _, p := range points {
		idx, err := voxel.Index(int(p.X), int(p.Y), int(p.Z))
		if err != nil {
			continue
		}
		word, bit := idx/64, uint64(1)<<(idx%64)
		if d.seen[word]&bit == 0 {
			d.seen[word] |= bit
			d.touched = append(d.touched, idx)
		}
		d.colors[idx] = p.Color
	}

	slices.Sort(d.touched)

	out := make([]protocol.Point, len(d.touched))
	for i, idx := range d.touched {
		x, y, z := voxel.Coords(idx)
		out[i] = protocol.Point{X: uint8(x), Y: uint8(y), Z: uint8(z), Color: d.colors[idx]}
		d.seen[idx/64] &^= uint64(1) << (idx % 64)
	}
	return out
}
