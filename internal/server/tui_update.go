// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send server state updates to TUI
package server

import "time"

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	status := ServerStatus{
		Name:    s.config.Name,
		Addr:    s.Addr().String(),
		Uptime:  time.Since(s.startTime),
		Stats:   s.Stats(),
		Session: s.Session(),
	}
	if ws := s.WebSocketAddr(); ws != nil {
		status.WebSocketAddr = ws.String()
	}

	s.tui.Update(status)
}
