// ABOUTME: Packed 8-bit pixel format stored in every voxel cell
// ABOUTME: RGB332 packing shared by producer, codec and display consumer
package voxel

// Pixel is one voxel colour packed as RRRGGGBB.
type Pixel uint8

// Off is the empty cell value.
const Off Pixel = 0

// RGB packs an 8-bit-per-channel colour by keeping the top 3/3/2 bits.
func RGB(r, g, b uint8) Pixel {
	return Pixel((r & 0xe0) | ((g >> 3) & 0x1c) | ((b >> 6) & 0x03))
}

// RGB expands the pixel back to 8 bits per channel.
func (p Pixel) RGB() (r, g, b uint8) {
	r = uint8((p>>5)&7) * 36
	g = uint8((p>>2)&7) * 36
	b = uint8(p&3) * 85
	return r, g, b
}

// Red, Green and Blue return the raw channel fields.
func (p Pixel) Red() uint8   { return uint8(p>>5) & 7 }
func (p Pixel) Green() uint8 { return uint8(p>>2) & 7 }
func (p Pixel) Blue() uint8  { return uint8(p) & 3 }

// PackLevels builds a pixel from channel levels (r, g in 0-7, b in 0-3).
// Levels above the channel range are clamped.
func PackLevels(r, g, b uint8) Pixel {
	r = min(r, 7)
	g = min(g, 7)
	b = min(b, 3)
	return Pixel(r<<5 | g<<2 | b)
}
