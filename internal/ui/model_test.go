// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil)

	assert.False(t, model.connected)
	assert.False(t, model.paused)
	assert.False(t, model.showDebug)
}

func TestStatusMsgConnected(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{Connected: &connected, ServerName: "vortex.local:22104", Transport: "tcp"})
	assert.True(t, model.connected)
	assert.Equal(t, "vortex.local:22104", model.serverName)

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})
	assert.False(t, model.connected)
	assert.Equal(t, "vortex.local:22104", model.serverName, "empty fields keep previous values")
}

func TestStatusMsgStatsRate(t *testing.T) {
	model := NewModel(nil)
	start := time.Now()

	model.applyStatus(StatusMsg{Stats: &Stats{FramesSent: 10}, At: start})
	assert.Zero(t, model.rate)

	model.applyStatus(StatusMsg{Stats: &Stats{FramesSent: 40, LastPoints: 1234}, At: start.Add(time.Second)})
	assert.InDelta(t, 30.0, model.rate, 0.001)
	assert.Equal(t, uint64(40), model.framesSent)
	assert.Equal(t, 1234, model.lastPoints)
}

func TestPauseKey(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m := updated.(Model)
	assert.True(t, m.paused)

	select {
	case msg := <-ctrl.Pause:
		assert.True(t, msg.Paused)
	default:
		t.Fatal("expected pause message")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.False(t, updated.(Model).paused)
	assert.False(t, (<-ctrl.Pause).Paused)
}

func TestQuitKey(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)

	select {
	case <-ctrl.Quit:
	default:
		t.Fatal("expected quit message")
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.True(t, updated.(Model).showDebug)
}

func TestView(t *testing.T) {
	model := NewModel(nil)
	assert.Equal(t, "Loading...", model.View())

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m := updated.(Model)

	connected := true
	m.applyStatus(StatusMsg{Connected: &connected, ServerName: "10.0.0.5:22104", Transport: "ws", Source: "grid", TargetFPS: 30})

	view := m.View()
	assert.True(t, strings.Contains(view, "Connected to 10.0.0.5:22104 (ws)"))
	assert.True(t, strings.Contains(view, "grid"))
	assert.True(t, strings.Contains(view, "Streaming"))
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", renderBar(15, 30, 10))
	assert.Equal(t, "██████████", renderBar(90, 30, 10))
	assert.Equal(t, "░░░░░░░░░░", renderBar(0, 0, 10))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2<<20))
}
