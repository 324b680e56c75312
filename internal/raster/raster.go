// ABOUTME: Rasterizer that turns queued point batches into published voxel pages
// ABOUTME: Clears the inactive page, writes every valid point and flips
package raster

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"github.com/multivox/vortexstream/internal/handoff"
	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

// DefaultCheckEvery is how many points are written between cancellation checks.
const DefaultCheckEvery = 4096

// Config holds rasterizer configuration
type Config struct {
	CheckEvery int  // points between cancellation checks, default DefaultCheckEvery
	Debug      bool // log every published batch

	// OnPublish is called after each page flip from the rasterizer goroutine.
	OnPublish func(seq uint64, page int)
}

// Stats is a point-in-time copy of the rasterizer counters.
type Stats struct {
	Batches       uint64
	PointsWritten uint64
	PointsSkipped uint64
	Abandoned     uint64
	LastSeq       uint64
}

// Rasterizer owns all writes to the voxel buffer while it runs.
type Rasterizer struct {
	config Config
	buffer *voxel.Buffer
	queue  *handoff.Queue[protocol.Batch]

	batches   atomic.Uint64
	written   atomic.Uint64
	skipped   atomic.Uint64
	abandoned atomic.Uint64
	lastSeq   atomic.Uint64
}

// New creates a rasterizer draining queue into buffer.
func New(config Config, buffer *voxel.Buffer, queue *handoff.Queue[protocol.Batch]) *Rasterizer {
	if config.CheckEvery <= 0 {
		config.CheckEvery = DefaultCheckEvery
	}
	return &Rasterizer{
		config: config,
		buffer: buffer,
		queue:  queue,
	}
}

// Run rasterizes batches until ctx is cancelled or the queue is closed.
// Both are a normal shutdown and return nil.
func (r *Rasterizer) Run(ctx context.Context) error {
	log.Printf("Rasterizer starting")
	defer log.Printf("Rasterizer stopped")

	for {
		batch, err := r.queue.Get(ctx)
		if err != nil {
			if errors.Is(err, handoff.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := r.Render(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Render draws one batch into the inactive page and publishes it. A
// cancelled context abandons the page unpublished and returns ctx.Err().
func (r *Rasterizer) Render(ctx context.Context, batch protocol.Batch) error {
	target := 1 - r.buffer.ActivePage()
	if err := r.buffer.Clear(target); err != nil {
		return err
	}

	var written, skipped uint64
	for i, p := range batch.Points {
		if i%r.config.CheckEvery == 0 && ctx.Err() != nil {
			r.abandoned.Add(1)
			log.Printf("Abandoned batch %d after %d of %d points", batch.Seq, i, len(batch.Points))
			return ctx.Err()
		}

		err := r.buffer.Write(target, int(p.X), int(p.Y), int(p.Z), p.Color)
		switch {
		case err == nil:
			written++
		case errors.Is(err, voxel.ErrOutOfRange):
			skipped++
		default:
			return err
		}
	}

	if err := r.buffer.Publish(target); err != nil {
		return err
	}

	r.batches.Add(1)
	r.written.Add(written)
	r.skipped.Add(skipped)
	r.lastSeq.Store(batch.Seq)

	if r.config.Debug {
		log.Printf("[DEBUG] Published batch %d to page %d (%d points, %d skipped)",
			batch.Seq, target, written, skipped)
	}
	if r.config.OnPublish != nil {
		r.config.OnPublish(batch.Seq, target)
	}
	return nil
}

// Stats returns the current counters.
func (r *Rasterizer) Stats() Stats {
	return Stats{
		Batches:       r.batches.Load(),
		PointsWritten: r.written.Load(),
		PointsSkipped: r.skipped.Load(),
		Abandoned:     r.abandoned.Load(),
		LastSeq:       r.lastSeq.Load(),
	}
}
