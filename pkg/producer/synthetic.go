// ABOUTME: Synthetic depth camera rendering a moving sphere in front of a wall
// ABOUTME: Exercises the projection path without capture hardware
package producer

import (
	"context"
	"math"
)

// SyntheticDepth ray-casts a small scene each frame. It is deterministic:
// frame n always renders the same image.
type SyntheticDepth struct {
	Width, Height int
	Intrinsics    Intrinsics

	// FramesPerOrbit is how many frames the sphere takes to circle once
	FramesPerOrbit int

	frame int
}

// NewSyntheticDepth creates a 256x192 camera with a 200px focal length.
func NewSyntheticDepth() *SyntheticDepth {
	return &SyntheticDepth{
		Width:          256,
		Height:         192,
		Intrinsics:     Intrinsics{Fx: 200, Fy: 200, Tx: 128, Ty: 96},
		FramesPerOrbit: 120,
	}
}

const (
	wallDepth    = 0.7
	sphereRadius = 0.08
	orbitDepth   = 0.45
	orbitRadius  = 0.12
)

// NextFrame renders the next frame.
func (s *SyntheticDepth) NextFrame(ctx context.Context) (*DepthFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phase := 2 * math.Pi * float64(s.frame) / float64(max(s.FramesPerOrbit, 1))
	s.frame++

	// Sphere centre in camera space (x right, y down, z forward)
	cx := orbitRadius * math.Cos(phase)
	cy := 0.03 * math.Sin(2*phase)
	cz := orbitDepth + orbitRadius*math.Sin(phase)

	frame := &DepthFrame{
		Width:      s.Width,
		Height:     s.Height,
		Depth:      make([]float32, s.Width*s.Height),
		Color:      make([]uint8, 3*s.Width*s.Height),
		Intrinsics: s.Intrinsics,
	}

	in := s.Intrinsics
	for v := 0; v < s.Height; v++ {
		for u := 0; u < s.Width; u++ {
			i := v*s.Width + u
			dx := (float64(u) - in.Tx) / in.Fx
			dy := (float64(v) - in.Ty) / in.Fy

			// Ray p(t) = t*(dx, dy, 1); t is the depth
			if t, ok := hitSphere(dx, dy, cx, cy, cz, sphereRadius); ok {
				frame.Depth[i] = float32(t)
				shade := 1 - 0.6*math.Min(math.Max((t-(cz-sphereRadius))/sphereRadius, 0), 1)
				frame.Color[3*i] = uint8(255 * shade)
				frame.Color[3*i+1] = uint8(120 * shade)
				frame.Color[3*i+2] = 0
				continue
			}

			// Dead sensor columns
			if u%32 == 0 {
				frame.Depth[i] = float32(math.NaN())
				continue
			}

			frame.Depth[i] = wallDepth
			r, g, b := hsvToRGB(float64(u)/float64(s.Width), 0.8, 0.6)
			frame.Color[3*i] = uint8(255 * r)
			frame.Color[3*i+1] = uint8(255 * g)
			frame.Color[3*i+2] = uint8(255 * b)
		}
	}
	return frame, nil
}

func (s *SyntheticDepth) Name() string { return "synthetic" }
func (s *SyntheticDepth) Close() error { return nil }

// hitSphere returns the nearest positive t where t*(dx, dy, 1) meets the
// sphere.
func hitSphere(dx, dy, cx, cy, cz, r float64) (float64, bool) {
	a := dx*dx + dy*dy + 1
	b := -2 * (dx*cx + dy*cy + cz)
	c := cx*cx + cy*cy + cz*cz - r*r
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t <= 0 {
		return 0, false
	}
	return t, true
}
