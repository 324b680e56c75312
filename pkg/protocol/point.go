// ABOUTME: Point record and batch type definitions
// ABOUTME: Packs and unpacks the 4-byte wire record
package protocol

import (
	"github.com/multivox/vortexstream/pkg/voxel"
)

// RecordSize is the size of one packed point record
const RecordSize = 4

// Point is one coloured voxel coordinate.
type Point struct {
	X, Y, Z uint8
	Color   voxel.Pixel
}

// InBounds reports whether the point addresses a cell of the volume.
func (p Point) InBounds() bool {
	return voxel.InBounds(int(p.X), int(p.Y), int(p.Z))
}

// Batch is one decoded frame: a full snapshot of the cloud.
type Batch struct {
	// Seq is assigned by the receiver in arrival order
	Seq uint64

	Points []Point

	// Trailing counts decompressed bytes that did not form a whole record
	Trailing int

	// WireSize is the compressed payload length
	WireSize int
}

// AppendRecords appends the packed form of points to dst.
func AppendRecords(dst []byte, points []Point) []byte {
	for _, p := range points {
		dst = append(dst, p.X, p.Y, p.Z, byte(p.Color))
	}
	return dst
}

// ParseRecords unpacks whole records from raw and returns the number of
// trailing bytes that were left over.
func ParseRecords(raw []byte) ([]Point, int) {
	n := len(raw) / RecordSize
	points := make([]Point, n)
	for i := range points {
		r := raw[i*RecordSize : i*RecordSize+RecordSize]
		points[i] = Point{X: r[0], Y: r[1], Z: r[2], Color: voxel.Pixel(r[3])}
	}
	return points, len(raw) - n*RecordSize
}
