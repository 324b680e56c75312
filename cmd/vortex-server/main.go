// ABOUTME: Entry point for the vortex ingestion server
// ABOUTME: Maps the shared voxel region and serves producers until stopped
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/multivox/vortexstream/internal/server"
	"github.com/multivox/vortexstream/internal/version"
	"github.com/multivox/vortexstream/pkg/protocol"
	"github.com/multivox/vortexstream/pkg/voxel"
)

var (
	port          = flag.Int("port", protocol.DefaultPort, "TCP ingestion port")
	wsPort        = flag.Int("ws-port", protocol.DefaultWebSocketPort, "WebSocket ingestion port")
	enableWS      = flag.Bool("ws", false, "Also accept producers over WebSocket")
	name          = flag.String("name", "", "Server friendly name (default: hostname-vortex)")
	shmName       = flag.String("shm-name", voxel.DefaultRegionName, "Shared memory region name")
	createShm     = flag.Bool("create-shm", false, "Create and own the shared region instead of attaching")
	queueCap      = flag.Int("queue", server.DefaultQueueCapacity, "Decoded frames waiting for the rasterizer")
	readTimeout   = flag.Duration("read-timeout", 0, "Close a producer idle for this long (0 disables)")
	statsInterval = flag.Duration("stats-interval", 10*time.Second, "Interval between stats log lines")
	logFile       = flag.String("log-file", "vortex-server.log", "Log file path")
	debug         = flag.Bool("debug", false, "Enable debug logging")
	noMDNS        = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	useTUI        = flag.Bool("tui", false, "Show the status TUI (logs go only to the file)")

	// Display header fields, -1 leaves the current value
	bpc   = flag.Int("bpc", -1, "Bits per channel written to the display header")
	flags = flag.Int("flags", -1, "Display flags written to the header (see voxel.Flags)")
	rpm   = flag.Int("rpm", -1, "Revolutions per minute written to the header")
	uspf  = flag.Int("uspf", -1, "Microseconds per frame written to the header")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-vortex", hostname)
	}

	log.Printf("Starting %s: %s on port %d", version.String(), serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	region, err := server.OpenRegion(*shmName, *createShm)
	if err != nil {
		log.Fatalf("Server error: %v", err)
	}
	defer region.Close()

	config := server.Config{
		Name:            serverName,
		Port:            *port,
		EnableWebSocket: *enableWS,
		WebSocketPort:   *wsPort,
		EnableMDNS:      !*noMDNS,
		QueueCapacity:   *queueCap,
		ReadTimeout:     *readTimeout,
		StatsInterval:   *statsInterval,
		Debug:           *debug,
		UseTUI:          *useTUI,
	}

	meta, changed, err := metadataFromFlags(region.Buffer().Metadata())
	if err != nil {
		log.Fatalf("Invalid display settings: %v", err)
	}
	if changed {
		config.Metadata = &meta
		log.Printf("Display header: %d bpc, flags 0x%02x, %d rpm, %d us/frame",
			meta.BitsPerChannel, uint16(meta.Flags), meta.RevolutionsPerMinute, meta.MicrosecondsPerFrame)
	}

	srv := server.New(config, region.Buffer())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		region.Close()
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}

// metadataFromFlags overlays the header flags that were set on current.
func metadataFromFlags(current voxel.Metadata) (voxel.Metadata, bool, error) {
	changed := false
	set := func(v, limit int, what string, apply func(int)) error {
		if v < 0 {
			return nil
		}
		if v > limit {
			return fmt.Errorf("%s %d out of range 0-%d", what, v, limit)
		}
		apply(v)
		changed = true
		return nil
	}

	m := current
	for _, err := range []error{
		set(*bpc, 8, "bits per channel", func(v int) { m.BitsPerChannel = uint8(v) }),
		set(*flags, 0xFFFF, "flags", func(v int) { m.Flags = voxel.Flags(v) }),
		set(*rpm, 0xFFFF, "rpm", func(v int) { m.RevolutionsPerMinute = uint16(v) }),
		set(*uspf, 0xFFFF, "microseconds per frame", func(v int) { m.MicrosecondsPerFrame = uint16(v) }),
	} {
		if err != nil {
			return current, false, err
		}
	}
	return m, changed, nil
}
