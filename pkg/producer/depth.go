// ABOUTME: Depth camera frames and their projection into the voxel grid
// ABOUTME: Pinhole back-projection through the inverse intrinsic matrix
package producer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

// Intrinsics are pinhole camera parameters in depth-image pixels
type Intrinsics struct {
	Fx, Fy float64 // focal lengths
	Tx, Ty float64 // principal point
}

// Matrix returns the 3x3 intrinsic matrix K.
func (in Intrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		in.Fx, 0, in.Tx,
		0, in.Fy, in.Ty,
		0, 0, 1,
	})
}

// DepthFrame is one captured depth image with its colour image.
type DepthFrame struct {
	Width, Height int

	// Depth in metres, row-major; NaN marks pixels without a reading
	Depth []float32

	// Color is packed RGB, 3 bytes per pixel at depth resolution. Nil
	// means white.
	Color []uint8

	Intrinsics Intrinsics
}

// DepthSource is a depth camera
type DepthSource interface {
	// NextFrame blocks until a new frame is captured
	NextFrame(ctx context.Context) (*DepthFrame, error)

	Name() string
	Close() error
}

// ProjectorConfig holds the mapping from camera space to voxels. Start from
// DefaultProjectorConfig; zero offsets and origins are used as given.
type ProjectorConfig struct {
	Downscale   int     // sample every Nth pixel, values below 1 mean 2
	Scale       float64 // voxels per metre, values <= 0 mean 256
	DepthOffset float64 // metres in front of the camera mapped to y=0
	OriginX     float64 // voxel x of the optical axis
	OriginZ     float64 // voxel z of the optical axis
}

// DefaultProjectorConfig returns the mapping used by the streaming tool:
// every second pixel, 256 voxels per metre, y=0 at 0.25m, optical axis
// through the middle of the x and z range.
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		Downscale:   2,
		Scale:       256,
		DepthOffset: 0.25,
		OriginX:     voxel.SizeX / 2,
		OriginZ:     voxel.SizeZ / 2,
	}
}

func (c *ProjectorConfig) setDefaults() {
	if c.Downscale <= 0 {
		c.Downscale = 2
	}
	if c.Scale <= 0 {
		c.Scale = 256
	}
}

// Projector turns depth frames into voxel points. Camera depth maps to
// voxel y, image columns to x and image rows (downwards) to falling z.
type Projector struct {
	config ProjectorConfig

	// Cached inverse for the last intrinsics seen
	intrinsics Intrinsics
	inv        mat.Dense
	haveInv    bool
}

// NewProjector creates a projector
func NewProjector(config ProjectorConfig) *Projector {
	config.setDefaults()
	return &Projector{config: config}
}

func (p *Projector) inverse(in Intrinsics) (*mat.Dense, error) {
	if p.haveInv && in == p.intrinsics {
		return &p.inv, nil
	}
	if err := p.inv.Inverse(in.Matrix()); err != nil {
		p.haveInv = false
		return nil, fmt.Errorf("intrinsics %+v are not invertible: %w", in, err)
	}
	p.intrinsics = in
	p.haveInv = true
	return &p.inv, nil
}

// Project appends the voxel points of frame to dst. Pixels with NaN depth
// and points outside the volume are dropped.
func (p *Projector) Project(dst []protocol.Point, frame *DepthFrame) ([]protocol.Point, error) {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Depth) < frame.Width*frame.Height {
		return dst, fmt.Errorf("depth frame %dx%d has %d samples", frame.Width, frame.Height, len(frame.Depth))
	}
	if frame.Color != nil && len(frame.Color) < 3*frame.Width*frame.Height {
		return dst, fmt.Errorf("colour frame has %d bytes, want %d", len(frame.Color), 3*frame.Width*frame.Height)
	}

	inv, err := p.inverse(frame.Intrinsics)
	if err != nil {
		return dst, err
	}
	a00, a01, a02 := inv.At(0, 0), inv.At(0, 1), inv.At(0, 2)
	a10, a11, a12 := inv.At(1, 0), inv.At(1, 1), inv.At(1, 2)

	cfg := p.config
	for v := 0; v < frame.Height; v += cfg.Downscale {
		for u := 0; u < frame.Width; u += cfg.Downscale {
			i := v*frame.Width + u
			d := float64(frame.Depth[i])
			if math.IsNaN(d) {
				continue
			}

			// Normalised image ray through (u, v)
			rx := a00*float64(u) + a01*float64(v) + a02
			ry := a10*float64(u) + a11*float64(v) + a12

			x := math.Round(cfg.OriginX + rx*d*cfg.Scale)
			y := math.Round((d - cfg.DepthOffset) * cfg.Scale)
			z := math.Round(cfg.OriginZ - ry*d*cfg.Scale)
			if x < 0 || x >= voxel.SizeX || y < 0 || y >= voxel.SizeY || z < 0 || z >= voxel.SizeZ {
				continue
			}

			color := voxel.Pixel(0xFF)
			if frame.Color != nil {
				color = voxel.RGB(frame.Color[3*i], frame.Color[3*i+1], frame.Color[3*i+2])
			}

			dst = append(dst, protocol.Point{X: uint8(x), Y: uint8(y), Z: uint8(z), Color: color})
		}
	}
	return dst, nil
}

// DepthStream adapts a depth camera into a point Source
type DepthStream struct {
	depth     DepthSource
	projector *Projector
	deduper   *Deduper
	scratch   []protocol.Point
}

// NewDepthStream creates a Source that projects and deduplicates every
// frame of depth.
func NewDepthStream(depth DepthSource, config ProjectorConfig) *DepthStream {
	return &DepthStream{
		depth:     depth,
		projector: NewProjector(config),
		deduper:   NewDeduper(),
	}
}

// ReadBatch captures, projects and deduplicates the next frame.
func (s *DepthStream) ReadBatch(ctx context.Context) ([]protocol.Point, error) {
	frame, err := s.depth.NextFrame(ctx)
	if err != nil {
		return nil, err
	}

	s.scratch, err = s.projector.Project(s.scratch[:0], frame)
	if err != nil {
		return nil, err
	}
	return s.deduper.Dedupe(s.scratch), nil
}

func (s *DepthStream) Name() string { return s.depth.Name() }
func (s *DepthStream) Close() error { return s.depth.Close() }
