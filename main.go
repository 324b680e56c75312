// ABOUTME: Entry point for the vortexstream producer
// ABOUTME: Streams a point source to a vortex ingestion server
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/multivox/vortexstream/internal/discovery"
	"github.com/multivox/vortexstream/internal/ui"
	"github.com/multivox/vortexstream/internal/version"
	"github.com/multivox/vortexstream/pkg/producer"
	"github.com/multivox/vortexstream/pkg/protocol"
)

var (
	serverAddr   = flag.String("server", "", "Server address host:port (default: $VORTEX_SERVER, then mDNS)")
	transport    = flag.String("transport", protocol.TransportTCP, "Transport: tcp or ws")
	source       = flag.String("source", "synthetic", "Point source: "+strings.Join(producer.SourceNames(), ", "))
	fps          = flag.Int("fps", 30, "Frames per second")
	compression  = flag.Int("compression", 0, "gzip level 1-9 (0: default)")
	discoverWait = flag.Duration("discover-timeout", 10*time.Second, "How long to browse mDNS for a server")
	logFile      = flag.String("log-file", "vortexstream.log", "Log file path")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	useTUI := !*noTUI
	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	address, err := resolveServer(ctx)
	if err != nil {
		log.Fatalf("No server: %v", err)
	}

	src, err := producer.NewSource(*source)
	if err != nil {
		log.Fatalf("Source error: %v", err)
	}
	defer src.Close()

	p := producer.New(producer.Config{
		ServerAddr:       address,
		Transport:        *transport,
		FPS:              *fps,
		CompressionLevel: *compression,
		Debug:            *debug,
	}, src)

	if useTUI {
		ctrl := ui.NewControl()
		prog, err := ui.Run(ctrl)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := prog.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			cancel()
		}()
		defer prog.Quit()

		prog.Send(ui.StatusMsg{ServerName: address, Transport: *transport, Source: src.Name(), TargetFPS: *fps})
		go handleControl(ctx, p, ctrl, cancel)
		go statsUpdateLoop(ctx, p, prog)
	}

	err = p.Run(ctx)

	st := p.Stats()
	log.Printf("Sent %d frames (%d points, %d bytes), %d failed, %d connections",
		st.FramesSent, st.PointsSent, st.BytesSent, st.FramesFailed, st.Connects)

	if err != nil {
		log.Fatalf("Producer error: %v", err)
	}
	log.Printf("Producer stopped")
}

// handleControl applies pause and quit requests from the TUI
func handleControl(ctx context.Context, p *producer.Producer, ctrl *ui.Control, quit context.CancelFunc) {
	for {
		select {
		case msg := <-ctrl.Pause:
			p.SetPaused(msg.Paused)
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
			quit()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically sends producer stats to the TUI
func statsUpdateLoop(ctx context.Context, p *producer.Producer, prog *tea.Program) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			st := p.Stats()
			connected := st.Connected
			prog.Send(ui.StatusMsg{
				Connected: &connected,
				At:        now,
				Stats: &ui.Stats{
					FramesSent:   st.FramesSent,
					FramesFailed: st.FramesFailed,
					PointsSent:   st.PointsSent,
					BytesSent:    st.BytesSent,
					Connects:     st.Connects,
					LastPoints:   st.LastPoints,
				},
			})
		case <-ctx.Done():
			return
		}
	}
}

// resolveServer picks the server from -server, $VORTEX_SERVER or mDNS.
func resolveServer(ctx context.Context) (string, error) {
	if *serverAddr != "" {
		return *serverAddr, nil
	}
	if env := os.Getenv("VORTEX_SERVER"); env != "" {
		return env, nil
	}

	log.Printf("Starting server discovery...")
	server, err := discovery.Discover(ctx, *discoverWait)
	if err != nil {
		return "", err
	}

	addr := server.Addr()
	if *transport == protocol.TransportWebSocket {
		addr = server.WebSocketAddr()
		if addr == "" {
			return "", fmt.Errorf("server %s does not accept WebSocket producers", server.Name)
		}
	}
	log.Printf("Discovered server %s at %s", server.Name, addr)
	return addr, nil
}
