// ABOUTME: Server counters and periodic reporting
// ABOUTME: Snapshots ingestion and rasterizer stats for logs and the TUI
package server

import (
	"context"
	"log"
	"time"

	"github.com/multivox/vortexstream/internal/raster"
	"github.com/multivox/vortexstream/pkg/voxel"
)

// Stats is a point-in-time copy of the server counters.
type Stats struct {
	Connections    uint64
	Rejected       uint64
	FramesReceived uint64
	FramesDropped  uint64
	ProtocolErrors uint64
	CodecErrors    uint64
	BytesReceived  uint64
	QueueLen       int

	Raster raster.Stats

	ActivePage int
	Metadata   voxel.Metadata
}

// SessionInfo describes the connected producer
type SessionInfo struct {
	ID        string
	Remote    string
	Transport string
	Since     time.Time
	Frames    uint64
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections:    s.connections.Load(),
		Rejected:       s.rejected.Load(),
		FramesReceived: s.framesReceived.Load(),
		FramesDropped:  s.framesDropped.Load(),
		ProtocolErrors: s.protocolErrors.Load(),
		CodecErrors:    s.codecErrors.Load(),
		BytesReceived:  s.bytesReceived.Load(),
		QueueLen:       s.queue.Len(),
		Raster:         s.raster.Stats(),
		ActivePage:     s.buffer.ActivePage(),
		Metadata:       s.buffer.Metadata(),
	}
}

// Session returns the connected producer, or nil.
func (s *Server) Session() *SessionInfo {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session == nil {
		return nil
	}
	return &SessionInfo{
		ID:        s.session.id,
		Remote:    s.session.remote,
		Transport: s.session.transport,
		Since:     s.session.started,
		Frames:    s.session.frames.Load(),
	}
}

// statsLoop refreshes the TUI every second and logs stats every
// StatsInterval until ctx is done
func (s *Server) statsLoop(ctx context.Context) {
	tuiTicker := time.NewTicker(time.Second)
	defer tuiTicker.Stop()

	var logC <-chan time.Time
	if s.config.StatsInterval > 0 {
		logTicker := time.NewTicker(s.config.StatsInterval)
		defer logTicker.Stop()
		logC = logTicker.C
	}

	for {
		select {
		case <-tuiTicker.C:
			s.updateTUI()
		case <-logC:
			s.logStats()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) logStats() {
	st := s.Stats()
	log.Printf("Stats: frames=%d dropped=%d published=%d points=%d skipped=%d conns=%d rejected=%d protocol_errors=%d codec_errors=%d bytes=%d",
		st.FramesReceived, st.FramesDropped, st.Raster.Batches, st.Raster.PointsWritten, st.Raster.PointsSkipped,
		st.Connections, st.Rejected, st.ProtocolErrors, st.CodecErrors, st.BytesReceived)
}
