// ABOUTME: Tests for RGB332 pixel packing
// ABOUTME: Verifies channel placement and expansion
package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRGBPacking(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    Pixel
	}{
		{"black", 0, 0, 0, 0x00},
		{"white", 255, 255, 255, 0xFF},
		{"red", 255, 0, 0, 0xE0},
		{"green", 0, 255, 0, 0x1C},
		{"blue", 0, 0, 255, 0x03},
		{"low bits dropped", 0x1F, 0x1F, 0x3F, 0x00},
		{"mid grey", 128, 128, 128, 0x92},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RGB(tt.r, tt.g, tt.b))
		})
	}
}

func TestPixelExpand(t *testing.T) {
	r, g, b := Pixel(0xFF).RGB()
	assert.Equal(t, [3]uint8{252, 252, 255}, [3]uint8{r, g, b})

	r, g, b = Pixel(0x00).RGB()
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{r, g, b})

	p := RGB(200, 100, 50)
	assert.Equal(t, uint8(200>>5), p.Red())
	assert.Equal(t, uint8(100>>5), p.Green())
	assert.Equal(t, uint8(50>>6), p.Blue())
}

func TestPackLevels(t *testing.T) {
	assert.Equal(t, Pixel(0x80), PackLevels(4, 0, 0))
	assert.Equal(t, Pixel(0x10), PackLevels(0, 4, 0))
	assert.Equal(t, Pixel(0x02), PackLevels(0, 0, 2))
	assert.Equal(t, Pixel(0xFF), PackLevels(9, 9, 9))
}
