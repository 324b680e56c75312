// ABOUTME: Server TUI for displaying the producer session and pipeline stats
// ABOUTME: Real-time server status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/multivox/vortexstream/internal/version"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	mu       sync.Mutex
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server
	stopOnce sync.Once
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name          string
	Addr          string
	WebSocketAddr string
	Uptime        time.Duration
	Stats         Stats
	Session       *SessionInfo
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{} // Channel to signal server stop
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("203"))

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(headerStyle.Render(label + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("Vortex Server %s", version.Version)))
	b.WriteString("\n\n")

	st := m.status.Stats
	row("Server", m.status.Name)
	row("TCP", m.status.Addr)
	if m.status.WebSocketAddr != "" {
		row("WebSocket", m.status.WebSocketAddr)
	}
	row("Uptime", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Producer"))
	b.WriteString("\n\n")
	if sess := m.status.Session; sess == nil {
		b.WriteString(valueStyle.Render("  Waiting for producer"))
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("  • %s", sess.Remote))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, %d frames, %s)",
			sess.Transport, sess.Frames, time.Since(sess.Since).Round(time.Second))))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Pipeline"))
	b.WriteString("\n\n")
	row("  Frames received", fmt.Sprintf("%d (%s)", st.FramesReceived, formatBytes(st.BytesReceived)))
	row("  Frames published", fmt.Sprintf("%d (last seq %d)", st.Raster.Batches, st.Raster.LastSeq))
	row("  Points written", fmt.Sprintf("%d", st.Raster.PointsWritten))
	row("  Queue", fmt.Sprintf("%d", st.QueueLen))
	row("  Active page", fmt.Sprintf("%d", st.ActivePage))
	row("  Display", fmt.Sprintf("%d bpc, flags 0x%02x, %d rpm, %d us/frame",
		st.Metadata.BitsPerChannel, uint16(st.Metadata.Flags),
		st.Metadata.RevolutionsPerMinute, st.Metadata.MicrosecondsPerFrame))

	if st.FramesDropped+st.Raster.PointsSkipped+st.ProtocolErrors+st.CodecErrors+st.Rejected > 0 {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"  dropped %d  skipped %d  protocol errors %d  codec errors %d  rejected %d",
			st.FramesDropped, st.Raster.PointsSkipped, st.ProtocolErrors, st.CodecErrors, st.Rejected)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(serverName, addr string) error {
	m := tuiModel{
		status: ServerStatus{
			Name: serverName,
			Addr: addr,
		},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	program := tea.NewProgram(m, tea.WithAltScreen())
	t.mu.Lock()
	t.program = program
	updates := t.updates
	t.mu.Unlock()
	if updates == nil {
		return nil
	}

	go func() {
		for status := range updates {
			program.Send(statusMsg(status))
		}
	}()

	_, err := program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// nil after Stop, which makes the send fall through to default
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.program != nil {
			t.program.Quit()
		}
		close(t.updates)
		t.updates = nil
	})
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
