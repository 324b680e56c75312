// ABOUTME: Voxel volume dimensions and byte layout constants
// ABOUTME: Fixed deployment geometry shared by every producer and consumer
package voxel

const (
	// Volume dimensions
	SizeX = 128
	SizeY = 128
	SizeZ = 64

	// Cell strides inside one page
	StrideZ = 1
	StrideX = SizeZ
	StrideY = SizeZ * SizeX

	// PageSize is the number of single-byte cells in one page
	PageSize = SizeX * SizeY * SizeZ

	// PageCount is the number of pages in the double buffer
	PageCount = 2

	// HeaderOffset is where the metadata header starts
	HeaderOffset = PageCount * PageSize

	// HeaderSize is the size of the metadata header in bytes
	HeaderSize = 8

	// RegionSize is the full size of the shared region
	RegionSize = HeaderOffset + HeaderSize
)

// Header field offsets relative to HeaderOffset
const (
	offPage           = 0
	offBitsPerChannel = 1
	offFlags          = 2
	offRPM            = 4
	offUsPerFrame     = 6
)

// InBounds reports whether (x, y, z) addresses a cell of the volume.
func InBounds(x, y, z int) bool {
	return uint(x) < SizeX && uint(y) < SizeY && uint(z) < SizeZ
}

// Index returns the offset of (x, y, z) inside a page.
func Index(x, y, z int) (int, error) {
	if !InBounds(x, y, z) {
		return 0, &RangeError{X: x, Y: y, Z: z}
	}
	return y*StrideY + x*StrideX + z*StrideZ, nil
}

// Coords is the inverse of Index. It panics on an index outside a page.
func Coords(index int) (x, y, z int) {
	if uint(index) >= PageSize {
		panic("voxel: cell index out of range")
	}
	y = index / StrideY
	x = (index % StrideY) / StrideX
	z = index % StrideX
	return x, y, z
}
