// ABOUTME: Static calibration and test patterns as point sources
// ABOUTME: Checkerboard grid, axis grid and colour wheel
package producer

import (
	"context"
	"math"

	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

// PatternSource repeats a fixed set of points every frame
type PatternSource struct {
	name   string
	points []protocol.Point
}

// NewPatternSource builds a pattern by evaluating fn for every cell and
// keeping the lit ones.
func NewPatternSource(name string, fn func(x, y, z int) voxel.Pixel) *PatternSource {
	var points []protocol.Point
	for y := 0; y < voxel.SizeY; y++ {
		for x := 0; x < voxel.SizeX; x++ {
			for z := 0; z < voxel.SizeZ; z++ {
				if c := fn(x, y, z); c != voxel.Off {
					points = append(points, protocol.Point{X: uint8(x), Y: uint8(y), Z: uint8(z), Color: c})
				}
			}
		}
	}
	return &PatternSource{name: name, points: points}
}

// ReadBatch returns a copy of the pattern points.
func (s *PatternSource) ReadBatch(ctx context.Context) ([]protocol.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]protocol.Point, len(s.points))
	copy(out, s.points)
	return out, nil
}

func (s *PatternSource) Name() string { return s.name }
func (s *PatternSource) Close() error { return nil }

// NewGridPattern is a layered checkerboard: three interleaved checkers on
// the floor, a solid red mid plane and a red/green checker on the ceiling.
func NewGridPattern() *PatternSource {
	return NewPatternSource("grid", func(x, y, z int) voxel.Pixel {
		var c voxel.Pixel
		switch z {
		case 0:
			if (x^y)&1 == 0 {
				c |= 0b00000010
			}
			if (x^y)&2 == 0 {
				c |= 0b00010000
			}
			if (x^y)&4 == 0 {
				c |= 0b10000000
			}
		case voxel.SizeZ / 2:
			c = 0b10000000
		case voxel.SizeZ - 1:
			if (x^y)&8 == 0 {
				c = 0b10000000
			} else {
				c = 0b00010000
			}
		}
		return c
	})
}

// NewAxesPattern draws grid lines on the floor, the mid plane and the
// ceiling with spacing that grows with height, plus the two centre axes
// near the floor.
func NewAxesPattern() *PatternSource {
	const (
		red   voxel.Pixel = 0b10000000
		green voxel.Pixel = 0b00010000
	)
	return NewPatternSource("axes", func(x, y, z int) voxel.Pixel {
		var c voxel.Pixel
		if z&31 == 0 || z == voxel.SizeZ-1 {
			g := uint((z+1)>>5) + 2
			mask := (1 << g) - 1
			if x&mask == 0 {
				c |= green
			} else if y&mask == 0 {
				c |= red
			}
		}
		if z < 16 {
			if (y+1)/2 == voxel.SizeY/4 {
				c |= red
			}
			if (x+1)/2 == voxel.SizeX/4 {
				c |= green
			}
		}
		return c
	})
}

// NewColourWheel puts an HSV wheel on a low plane and a channel ramp on a
// high plane.
func NewColourWheel() *PatternSource {
	return NewPatternSource("wheel", func(x, y, z int) voxel.Pixel {
		switch z {
		case 8:
			vx := float64(x) - (voxel.SizeX-1)*0.5
			vy := float64(y) - (voxel.SizeY-1)*0.5
			radius := math.Hypot(vx, vy)
			hue := math.Atan2(vy, vx)/(2*math.Pi) + 0.25
			value := math.Min(math.Max(0, (radius-16)/48), 1)
			return levelsPixel(hsvToRGB(hue, 1, value))
		case 56:
			r := uint8(x/4) & 7
			g := uint8(y/4) & 7
			b := uint8((x/64)&1)*2 | uint8((y/64)&1)
			return voxel.PackLevels(r, g, b)
		}
		return voxel.Off
	})
}

// hsvToRGB converts hue (turns), saturation and value to unit RGB.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	if s == 0 {
		return v, v, v
	}
	h = math.Mod(math.Mod(h, 1)+1, 1)

	i := int(h * 6)
	f := h*6 - float64(i)
	w := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch i {
	case 0:
		return v, t, w
	case 1:
		return q, v, w
	case 2:
		return w, v, t
	case 3:
		return w, q, v
	case 4:
		return t, w, v
	default:
		return v, w, q
	}
}

func levelsPixel(r, g, b float64) voxel.Pixel {
	return voxel.PackLevels(uint8(math.Min(r*8, 7)), uint8(math.Min(g*8, 7)), uint8(math.Min(b*4, 3)))
}
