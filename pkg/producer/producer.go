// ABOUTME: Producer loop streaming source batches to an ingestion server
// ABOUTME: Paces frames, reconnects on failure and tracks send stats
package producer

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/multivox/vortexstream/pkg/protocol"
)

// Config holds producer configuration
type Config struct {
	ServerAddr       string
	Transport        string        // "tcp" (default) or "ws"
	FPS              int           // frames per second, default 30
	CompressionLevel int           // gzip level, 0 means default
	ReconnectDelay   time.Duration // default 2s
	Debug            bool
}

// Stats is a point-in-time copy of the producer counters.
type Stats struct {
	FramesSent   uint64
	FramesFailed uint64
	PointsSent   uint64
	BytesSent    uint64
	Connects     uint64
	LastPoints   int
	Connected    bool
	Paused       bool
}

// Producer streams one Source to one server
type Producer struct {
	config Config
	source Source
	id     string

	framesSent   atomic.Uint64
	framesFailed atomic.Uint64
	pointsSent   atomic.Uint64
	bytesSent    atomic.Uint64
	connects     atomic.Uint64
	lastPoints   atomic.Int64
	connected    atomic.Bool
	paused       atomic.Bool
}

// New creates a producer
func New(config Config, source Source) *Producer {
	if config.Transport == "" {
		config.Transport = protocol.TransportTCP
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	return &Producer{
		config: config,
		source: source,
		id:     uuid.New().String(),
	}
}

// ID identifies this producer run in logs.
func (p *Producer) ID() string {
	return p.id
}

// SetPaused stops or resumes sending. The connection is kept open while
// paused.
func (p *Producer) SetPaused(paused bool) {
	if p.paused.Swap(paused) != paused {
		log.Printf("Producer paused: %v", paused)
	}
}

// Run streams until ctx is cancelled or the source ends. Both return nil;
// source failures are returned. Connection failures are retried.
func (p *Producer) Run(ctx context.Context) error {
	log.Printf("Producer %s streaming %s to %s over %s at %d fps",
		p.id, p.source.Name(), p.config.ServerAddr, p.config.Transport, p.config.FPS)

	ticker := time.NewTicker(time.Second / time.Duration(p.config.FPS))
	defer ticker.Stop()

	var client *protocol.Client
	defer func() {
		if client != nil {
			client.Close()
		}
		p.connected.Store(false)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if client == nil {
			c, err := p.dial(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("Connect to %s failed: %v", p.config.ServerAddr, err)
				if !sleepCtx(ctx, p.config.ReconnectDelay) {
					return nil
				}
				continue
			}
			client = c
			p.connected.Store(true)
		}

		if p.paused.Load() {
			continue
		}

		points, err := p.source.ReadBatch(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("Source %s finished", p.source.Name())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		n, err := client.Send(points)
		if err != nil {
			p.framesFailed.Add(1)
			log.Printf("Send failed, reconnecting: %v", err)
			client.Close()
			client = nil
			p.connected.Store(false)
			continue
		}

		p.framesSent.Add(1)
		p.pointsSent.Add(uint64(len(points)))
		p.bytesSent.Add(uint64(n))
		p.lastPoints.Store(int64(len(points)))

		if p.config.Debug {
			log.Printf("[DEBUG] Sent %d points in %d bytes", len(points), n)
		}
	}
}

func (p *Producer) dial(ctx context.Context) (*protocol.Client, error) {
	c, err := protocol.Dial(ctx, protocol.Config{
		ServerAddr:       p.config.ServerAddr,
		Transport:        p.config.Transport,
		CompressionLevel: p.config.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}
	p.connects.Add(1)
	return c, nil
}

// Stats returns the current counters.
func (p *Producer) Stats() Stats {
	return Stats{
		FramesSent:   p.framesSent.Load(),
		FramesFailed: p.framesFailed.Load(),
		PointsSent:   p.pointsSent.Load(),
		BytesSent:    p.bytesSent.Load(),
		Connects:     p.connects.Load(),
		LastPoints:   int(p.lastPoints.Load()),
		Connected:    p.connected.Load(),
		Paused:       p.paused.Load(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
