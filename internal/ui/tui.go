// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the producer UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// PauseMsg asks the producer to stop or resume sending
type PauseMsg struct {
	Paused bool
}

// QuitMsg asks the producer to exit
type QuitMsg struct{}

// Control holds channels from the TUI back to the producer
type Control struct {
	Pause chan PauseMsg
	Quit  chan QuitMsg
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Pause: make(chan PauseMsg, 10),
		Quit:  make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{
		control: ctrl,
	}
}

// Run creates the TUI program. The caller runs it.
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
