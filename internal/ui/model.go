// ABOUTME: Bubbletea model for the producer TUI
// ABOUTME: Defines streaming state, key handling and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string
	transport  string

	// Stream
	source    string
	targetFPS int
	paused    bool

	// Stats
	framesSent   uint64
	framesFailed uint64
	pointsSent   uint64
	bytesSent    uint64
	connects     uint64
	lastPoints   int

	// Measured rate between the last two stat updates
	rate       float64
	lastFrames uint64
	lastUpdate time.Time

	showDebug bool
	control   *Control

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStream())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s (%s)", m.serverName, m.transport)
	}

	return fmt.Sprintf(`┌─ Vortex Producer ────────────────────────────────────┐
│ Status: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 44))
}

// renderStream renders the source and frame rate
func (m Model) renderStream() string {
	state := "Streaming"
	if m.paused {
		state = "Paused"
	}

	return fmt.Sprintf("│ Source: %-44s │\n"+
		"│ State:  %-44s │\n"+
		"│ Rate:   [%s] %5.1f / %d fps%-13s │\n",
		truncate(m.source, 44), state,
		renderBar(int(m.rate), m.targetFPS, 10), m.rate, m.targetFPS, "")
}

// renderStats renders send statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Frames: %-10d Failed: %-8d Points/frame: %-6d │
│ Sent:   %-44s │
`, m.framesSent, m.framesFailed, m.lastPoints, formatBytes(m.bytesSent))
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Connections: %-37d │
│   Points total: %-36d │
`, m.connects, m.pointsSent)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ p:Pause  d:Debug  q:Quit                             │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "p", " ":
		m.paused = !m.paused
		if m.control != nil {
			select {
			case m.control.Pause <- PauseMsg{Paused: m.paused}:
			default:
			}
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Transport != "" {
		m.transport = msg.Transport
	}
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.TargetFPS != 0 {
		m.targetFPS = msg.TargetFPS
	}
	if msg.Stats != nil {
		st := msg.Stats
		if !msg.At.IsZero() && !m.lastUpdate.IsZero() && msg.At.After(m.lastUpdate) {
			m.rate = float64(st.FramesSent-m.lastFrames) / msg.At.Sub(m.lastUpdate).Seconds()
		}
		if !msg.At.IsZero() {
			m.lastUpdate = msg.At
			m.lastFrames = st.FramesSent
		}

		m.framesSent = st.FramesSent
		m.framesFailed = st.FramesFailed
		m.pointsSent = st.PointsSent
		m.bytesSent = st.BytesSent
		m.connects = st.Connects
		m.lastPoints = st.LastPoints
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Transport  string
	Source     string
	TargetFPS  int

	Stats *Stats
	At    time.Time // when Stats was sampled
}

// Stats are the producer counters shown by the TUI
type Stats struct {
	FramesSent   uint64
	FramesFailed uint64
	PointsSent   uint64
	BytesSent    uint64
	Connects     uint64
	LastPoints   int
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := min((value*width)/max, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
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
