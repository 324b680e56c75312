// ABOUTME: Error values for voxel buffer access
// ABOUTME: Range, page and read-only violations
package voxel

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is matched by every *RangeError
	ErrOutOfRange = errors.New("voxel: coordinate out of range")

	// ErrInvalidPage is returned for a page number other than 0 or 1
	ErrInvalidPage = errors.New("voxel: invalid page")

	// ErrReadOnly is returned when mutating a buffer attached read-only
	ErrReadOnly = errors.New("voxel: buffer is read-only")
)

// RangeError reports a cell coordinate outside the volume.
type RangeError struct {
	X, Y, Z int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("voxel: coordinate (%d,%d,%d) outside %dx%dx%d volume",
		e.X, e.Y, e.Z, SizeX, SizeY, SizeZ)
}

// Is lets errors.Is(err, ErrOutOfRange) match a *RangeError.
func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
