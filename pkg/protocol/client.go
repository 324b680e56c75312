// ABOUTME: Producer-side connection to a vortex ingestion server
// ABOUTME: Dials TCP or WebSocket and sends encoded point frames
package protocol

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
)

const (
	// DefaultPort is the ingestion port (0x5658, "VX")
	DefaultPort = 0x5658

	// DefaultWebSocketPort serves the same stream over WebSocket
	DefaultWebSocketPort = DefaultPort + 1

	// WebSocketPath is the ingestion endpoint path
	WebSocketPath = "/vortex"

	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Config holds client configuration
type Config struct {
	ServerAddr       string
	Transport        string        // "tcp" (default) or "ws"
	CompressionLevel int           // gzip level, 0 means gzip.DefaultCompression
	DialTimeout      time.Duration // default 5s
	WriteTimeout     time.Duration // per frame, default 2s
}

// Client sends point batches to one server.
type Client struct {
	config Config

	mu      sync.Mutex
	encoder *Encoder
	tcp     net.Conn
	bw      *bufio.Writer
	ws      *websocket.Conn
	closed  bool
}

// Dial connects to the server named in config.
func Dial(ctx context.Context, config Config) (*Client, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.Transport == "" {
		config.Transport = TransportTCP
	}
	if config.CompressionLevel == 0 {
		config.CompressionLevel = gzip.DefaultCompression
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 2 * time.Second
	}

	encoder, err := NewEncoder(config.CompressionLevel)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  config,
		encoder: encoder,
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	switch config.Transport {
	case TransportTCP:
		var d net.Dialer
		conn, err := d.DialContext(dialCtx, "tcp", config.ServerAddr)
		if err != nil {
			return nil, fmt.Errorf("dial failed: %w", err)
		}
		c.tcp = conn
		c.bw = bufio.NewWriterSize(conn, 64*1024)

	case TransportWebSocket:
		u := url.URL{Scheme: "ws", Host: config.ServerAddr, Path: WebSocketPath}
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("dial failed: %w", err)
		}
		c.ws = conn

	default:
		return nil, fmt.Errorf("unknown transport %q", config.Transport)
	}

	log.Printf("Connected to %s over %s", config.ServerAddr, config.Transport)
	return c, nil
}

// Send encodes points as one frame and writes it. It blocks until the
// frame is handed to the transport or the write deadline passes.
func (c *Client) Send(points []Point) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, fmt.Errorf("not connected")
	}

	frame, err := c.encoder.Encode(points)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(c.config.WriteTimeout)

	if c.ws != nil {
		c.ws.SetWriteDeadline(deadline)
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return 0, fmt.Errorf("write failed: %w", err)
		}
		return len(frame), nil
	}

	c.tcp.SetWriteDeadline(deadline)
	if _, err := c.bw.Write(frame); err != nil {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	if err := c.bw.Flush(); err != nil {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	return len(frame), nil
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() string {
	return c.config.ServerAddr
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.ws != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return c.ws.Close()
	}
	return c.tcp.Close()
}
