// ABOUTME: Producer session state and transports
// ABOUTME: Presents TCP and WebSocket connections as one frame byte stream
package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/multivox/vortexstream/pkg/protocol"
)

// session is the one connected producer
type session struct {
	id        string
	transport string
	remote    string
	started   time.Time
	frames    atomic.Uint64

	reader   io.Reader
	deadline interface{ SetReadDeadline(time.Time) error }
	closer   io.Closer

	closeOnce sync.Once
}

func newTCPSession(conn net.Conn) *session {
	return &session{
		transport: protocol.TransportTCP,
		remote:    conn.RemoteAddr().String(),
		reader:    conn,
		deadline:  conn,
		closer:    conn,
	}
}

// attachWebSocket binds an upgraded connection to a reserved session.
// Caller holds sessionMu.
func attachWebSocket(sess *session, conn *websocket.Conn) {
	sess.reader = &wsReader{conn: conn}
	sess.deadline = conn
	sess.closer = conn
}

func (sess *session) setReadDeadline(t time.Time) {
	if sess.deadline != nil {
		sess.deadline.SetReadDeadline(t)
	}
}

// close unblocks a pending read. Safe before the transport is attached.
func (sess *session) close() {
	if sess.closer == nil {
		return
	}
	sess.closeOnce.Do(func() {
		sess.closer.Close()
	})
}

// wsReader concatenates binary messages into one stream. Frames may span
// messages or share one.
type wsReader struct {
	conn *websocket.Conn
	cur  io.Reader
}

func (r *wsReader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			mt, next, err := r.conn.NextReader()
			if err != nil {
				if isClosedWebSocket(err) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			r.cur = next
		}

		n, err := r.cur.Read(p)
		if errors.Is(err, io.EOF) {
			r.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func isClosedWebSocket(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
