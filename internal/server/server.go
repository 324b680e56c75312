// ABOUTME: Ingestion server for the voxel streaming pipeline
// ABOUTME: Accepts one producer, decodes frames and hands batches to the rasterizer
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/multivox/vortexstream/internal/discovery"
	"github.com/multivox/vortexstream/internal/handoff"
	"github.com/multivox/vortexstream/internal/raster"
	"github.com/multivox/vortexstream/internal/version"
	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

// DefaultQueueCapacity is the number of decoded batches that may wait for
// the rasterizer.
const DefaultQueueCapacity = 2

// Config holds server configuration
type Config struct {
	Name string

	// Port is the TCP ingestion port. Addr, when set, overrides it with a
	// full listen address ("127.0.0.1:0" in tests).
	Port int
	Addr string

	EnableWebSocket bool
	WebSocketPort   int
	WebSocketAddr   string

	EnableMDNS bool

	QueueCapacity int           // default DefaultQueueCapacity
	ReadTimeout   time.Duration // idle limit per session, 0 disables
	MaxFrameSize  int           // default protocol.DefaultMaxFrameSize
	StatsInterval time.Duration // periodic stats log, default 10s, negative disables

	// Metadata is written to the buffer header at startup when set.
	Metadata *voxel.Metadata

	// OnPublish is called by the rasterizer after each page flip.
	OnPublish func(seq uint64, page int)

	Debug  bool
	UseTUI bool
}

// ResourceError is a startup failure to acquire a listener or the shared
// region. The server cannot run without it.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Server accepts producer sessions and feeds the rasterizer.
type Server struct {
	config   Config
	serverID string
	buffer   *voxel.Buffer

	queue  *handoff.Queue[protocol.Batch]
	raster *raster.Rasterizer

	listener   net.Listener
	wsListener net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader

	// Single producer slot shared by both transports
	sessionMu sync.Mutex
	session   *session

	seq atomic.Uint64

	connections    atomic.Uint64
	rejected       atomic.Uint64
	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	protocolErrors atomic.Uint64
	codecErrors    atomic.Uint64
	bytesReceived  atomic.Uint64

	mdnsManager *discovery.Manager

	tui       *ServerTUI
	startTime time.Time

	ready    chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	stopping atomic.Bool
	wg       sync.WaitGroup
}

// New creates a server writing into buffer
func New(config Config, buffer *voxel.Buffer) *Server {
	if config.Name == "" {
		config.Name = "vortex"
	}
	if config.Port == 0 {
		config.Port = protocol.DefaultPort
	}
	if config.WebSocketPort == 0 {
		config.WebSocketPort = protocol.DefaultWebSocketPort
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if config.StatsInterval == 0 {
		config.StatsInterval = 10 * time.Second
	}

	queue := handoff.New[protocol.Batch](config.QueueCapacity)

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		buffer:   buffer,
		queue:    queue,
		raster:   raster.New(raster.Config{Debug: config.Debug, OnPublish: config.OnPublish}, buffer, queue),
		upgrader: websocket.Upgrader{
			ReadBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Producers are not browsers
				return true
			},
		},
		startTime: time.Now(),
		ready:     make(chan struct{}),
		stopChan:  make(chan struct{}),
	}
}

// Start binds the listeners and runs until Stop is called, the TUI quits or
// a component fails. Bind failures are returned as *ResourceError.
func (s *Server) Start() error {
	if s.config.Metadata != nil {
		if err := s.buffer.SetMetadata(*s.config.Metadata); err != nil {
			return &ResourceError{Op: "write display metadata", Err: err}
		}
	}

	ln, err := net.Listen("tcp", s.listenAddr())
	if err != nil {
		return &ResourceError{Op: "listen", Err: err}
	}
	s.listener = ln

	if s.config.EnableWebSocket {
		wsln, err := net.Listen("tcp", s.webSocketListenAddr())
		if err != nil {
			ln.Close()
			return &ResourceError{Op: "listen websocket", Err: err}
		}
		s.wsListener = wsln

		mux := http.NewServeMux()
		mux.HandleFunc(protocol.WebSocketPath, s.handleWebSocket)
		s.httpServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.Addr().String()); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	log.Printf("Server starting: %s %s (ID: %s)", s.config.Name, version.Version, s.serverID)
	log.Printf("TCP ingestion listening on %s", ln.Addr())
	if s.wsListener != nil {
		log.Printf("WebSocket ingestion listening on %s%s", s.wsListener.Addr(), protocol.WebSocketPath)
	}

	if s.config.EnableMDNS {
		mdnsConfig := discovery.Config{
			ServiceName: s.config.Name,
			Port:        tcpPort(ln.Addr()),
			Version:     version.Version,
		}
		if s.wsListener != nil {
			mdnsConfig.WebSocketPort = tcpPort(s.wsListener.Addr())
		}
		s.mdnsManager = discovery.NewManager(mdnsConfig)

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	close(s.ready)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.raster.Run(gctx)
	})

	g.Go(s.acceptLoop)

	if s.httpServer != nil {
		g.Go(func() error {
			if err := s.httpServer.Serve(s.wsListener); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("websocket server failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		s.statsLoop(gctx)
		return nil
	})

	g.Go(func() error {
		var tuiQuitChan <-chan struct{}
		if s.tui != nil {
			tuiQuitChan = s.tui.QuitChan()
		}

		select {
		case <-s.stopChan:
			log.Printf("Server shutting down...")
		case <-tuiQuitChan:
			log.Printf("TUI quit requested, shutting down...")
		case <-gctx.Done():
		}

		s.shutdown()
		cancel()
		return nil
	})

	err = g.Wait()

	s.wg.Wait()
	s.logStats()
	log.Printf("Server stopped cleanly")
	return err
}

// shutdown closes the listeners and the active session, then the queue.
func (s *Server) shutdown() {
	s.stopping.Store(true)

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	s.listener.Close()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("WebSocket server shutdown error: %v", err)
		}
	}

	s.sessionMu.Lock()
	if s.session != nil {
		s.session.close()
	}
	s.sessionMu.Unlock()

	s.queue.Close()
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Ready is closed once the listeners are bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound TCP address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the bound WebSocket address, or nil when disabled.
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// acceptLoop accepts TCP producers until the listener is closed
func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("Accept error: %v", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.connections.Add(1)

		sess := newTCPSession(conn)
		if !s.acquire(sess) {
			s.rejected.Add(1)
			log.Printf("Rejecting %s: producer already connected", conn.RemoteAddr())
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(sess)
			s.serveSession(sess)
		}()
	}
}

// handleWebSocket upgrades a producer connection when the slot is free
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Hijacked connections are not tracked by http.Server.Shutdown
	s.wg.Add(1)
	defer s.wg.Done()

	s.connections.Add(1)

	// Reserve the slot before upgrading so a busy server answers with HTTP
	sess := &session{transport: protocol.TransportWebSocket, remote: r.RemoteAddr}
	if !s.acquire(sess) {
		s.rejected.Add(1)
		log.Printf("Rejecting WebSocket from %s: producer already connected", r.RemoteAddr)
		http.Error(w, "producer already connected", http.StatusServiceUnavailable)
		return
	}
	defer s.release(sess)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	s.sessionMu.Lock()
	attachWebSocket(sess, conn)
	closing := s.stopping.Load()
	s.sessionMu.Unlock()
	if closing {
		conn.Close()
		return
	}

	s.serveSession(sess)
}

// acquire claims the producer slot
func (s *Server) acquire(sess *session) bool {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session != nil || s.stopping.Load() {
		return false
	}
	sess.id = uuid.New().String()
	sess.started = time.Now()
	s.session = sess
	return true
}

// release frees the producer slot
func (s *Server) release(sess *session) {
	s.sessionMu.Lock()
	if s.session == sess {
		s.session = nil
	}
	s.sessionMu.Unlock()

	sess.close()
	s.updateTUI()
}

// serveSession decodes frames until the producer disconnects or a frame is
// bad. Errors end the session and never the server.
func (s *Server) serveSession(sess *session) {
	log.Printf("Producer connected: %s over %s (session %s)", sess.remote, sess.transport, sess.id)
	s.updateTUI()

	dec := protocol.NewDecoder()
	dec.MaxFrameSize = s.config.MaxFrameSize

	for {
		if s.config.ReadTimeout > 0 {
			sess.setReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		batch, err := dec.ReadFrame(sess.reader)
		if err != nil {
			s.endSession(sess, err)
			return
		}

		sess.frames.Add(1)
		s.framesReceived.Add(1)
		s.bytesReceived.Add(uint64(protocol.HeaderSize + batch.WireSize))
		batch.Seq = s.seq.Add(1)

		if batch.Trailing > 0 && s.config.Debug {
			log.Printf("[DEBUG] Frame %d: discarded %d trailing bytes", batch.Seq, batch.Trailing)
		}

		switch err := s.queue.TryPut(batch); {
		case err == nil:
			if s.config.Debug {
				log.Printf("[DEBUG] Frame %d: %d points queued", batch.Seq, len(batch.Points))
			}
		case errors.Is(err, handoff.ErrQueueFull):
			s.framesDropped.Add(1)
			if s.config.Debug {
				log.Printf("[DEBUG] Frame %d dropped: rasterizer busy", batch.Seq)
			}
		default:
			// Queue closed, server is stopping
			return
		}
	}
}

// endSession logs why a session ended and counts error kinds
func (s *Server) endSession(sess *session, err error) {
	var pe *protocol.ProtocolError
	var ce *protocol.CodecError

	switch {
	case errors.As(err, &pe):
		s.protocolErrors.Add(1)
		log.Printf("Closing %s: %v", sess.remote, err)
	case errors.As(err, &ce):
		s.codecErrors.Add(1)
		log.Printf("Closing %s: %v", sess.remote, err)
	case errors.Is(err, io.EOF), isClosedWebSocket(err):
		log.Printf("Producer disconnected: %s (%d frames)", sess.remote, sess.frames.Load())
	case s.stopping.Load():
	default:
		log.Printf("Session %s read error: %v", sess.remote, err)
	}
}

func (s *Server) listenAddr() string {
	if s.config.Addr != "" {
		return s.config.Addr
	}
	return fmt.Sprintf(":%d", s.config.Port)
}

func (s *Server) webSocketListenAddr() string {
	if s.config.WebSocketAddr != "" {
		return s.config.WebSocketAddr
	}
	return fmt.Sprintf(":%d", s.config.WebSocketPort)
}

func tcpPort(addr net.Addr) int {
	if a, ok := addr.(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
