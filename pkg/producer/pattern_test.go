// ABOUTME: Tests for the built-in pattern sources
// ABOUTME: Spot checks of the generated planes
package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

func byCell(points []protocol.Point) map[[3]int]voxel.Pixel {
	m := make(map[[3]int]voxel.Pixel, len(points))
	for _, p := range points {
		m[[3]int{int(p.X), int(p.Y), int(p.Z)}] = p.Color
	}
	return m
}

func TestNewSource(t *testing.T) {
	assert.Equal(t, []string{"axes", "grid", "synthetic", "wheel"}, SourceNames())

	_, err := NewSource("lava-lamp")
	assert.Error(t, err)
}

func TestGridPattern(t *testing.T) {
	points, err := NewGridPattern().ReadBatch(context.Background())
	require.NoError(t, err)
	cells := byCell(points)

	// Mid plane is solid red
	for _, xy := range [][2]int{{0, 0}, {127, 127}, {40, 90}} {
		assert.Equal(t, voxel.Pixel(0x80), cells[[3]int{xy[0], xy[1], voxel.SizeZ / 2}])
	}

	// Floor: x^y == 0 sets all three bits
	assert.Equal(t, voxel.Pixel(0x92), cells[[3]int{3, 3, 0}])
	// x^y == 7 sets none, so the cell is not emitted
	_, lit := cells[[3]int{7, 0, 0}]
	assert.False(t, lit)

	// Ceiling alternates red and green in blocks of 8
	assert.Equal(t, voxel.Pixel(0x80), cells[[3]int{0, 0, voxel.SizeZ - 1}])
	assert.Equal(t, voxel.Pixel(0x10), cells[[3]int{8, 0, voxel.SizeZ - 1}])

	for _, p := range points {
		assert.Contains(t, []uint8{0, voxel.SizeZ / 2, voxel.SizeZ - 1}, p.Z)
	}
}

func TestAxesPattern(t *testing.T) {
	points, err := NewAxesPattern().ReadBatch(context.Background())
	require.NoError(t, err)
	cells := byCell(points)

	// Floor grid every 4 cells, green on x lines
	assert.Equal(t, voxel.Pixel(0x10), cells[[3]int{4, 1, 0}])
	assert.Equal(t, voxel.Pixel(0x80), cells[[3]int{1, 4, 0}])

	// Centre axes near the floor
	assert.Equal(t, voxel.Pixel(0x10), cells[[3]int{63, 5, 10}])
	assert.Equal(t, voxel.Pixel(0x80), cells[[3]int{5, 64, 10}])
	assert.Equal(t, voxel.Pixel(0x90), cells[[3]int{63, 64, 10}])

	_, lit := cells[[3]int{5, 5, 20}]
	assert.False(t, lit)
}

func TestColourWheel(t *testing.T) {
	src := NewColourWheel()
	points, err := src.ReadBatch(context.Background())
	require.NoError(t, err)
	cells := byCell(points)

	for _, p := range points {
		assert.Contains(t, []uint8{8, 56}, p.Z)
	}

	// Centre of the wheel is dark
	_, lit := cells[[3]int{64, 64, 8}]
	assert.False(t, lit)

	// Ramp plane: r from x, g from y
	assert.Equal(t, voxel.PackLevels(1, 2, 0), cells[[3]int{4, 8, 56}])
	assert.Equal(t, voxel.PackLevels(7, 7, 3), cells[[3]int{127, 127, 56}])

	// Each read is an independent copy
	points[0].Color = 0
	again, err := src.ReadBatch(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, voxel.Pixel(0), again[0].Color)
}

func TestHSV(t *testing.T) {
	r, g, b := hsvToRGB(0, 1, 1)
	assert.Equal(t, [3]float64{1, 0, 0}, [3]float64{r, g, b})

	r, g, b = hsvToRGB(1.0/3, 0, 0.5)
	assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, [3]float64{r, g, b})
}
