// Package tui is a terminal display surface built on bubbletea.
package tui

import (
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cjeanneret/RecPause/internal/display"
)

// Msg types
type (
	stateMsg    struct{}
	advisoryMsg display.Advisory
	logMsg      string
)

// Surface bridges the controller to a running bubbletea program. It also
// implements io.Writer so debug output can be shown in the log pane.
type Surface struct {
	mu       sync.Mutex
	latest   display.State
	hasState bool

	dirty  chan struct{} // state changed; capacity 1
	events chan tea.Msg  // advisories and log lines
}

// NewSurface creates a surface with no state yet.
func NewSurface() *Surface {
	return &Surface{
		dirty:  make(chan struct{}, 1),
		events: make(chan tea.Msg, 256),
	}
}

// Render stores s; the model picks up the latest state on its next wake-up.
func (s *Surface) Render(st display.State) {
	s.mu.Lock()
	s.latest, s.hasState = st, true
	s.mu.Unlock()
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Advise queues a for display.
func (s *Surface) Advise(a display.Advisory) {
	s.post(advisoryMsg(a))
}

func (s *Surface) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s.post(logMsg(line))
		}
	}
	return len(p), nil
}

// Latest returns the most recently rendered state.
func (s *Surface) Latest() (display.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasState
}

func (s *Surface) post(m tea.Msg) {
	select {
	case s.events <- m:
	default:
		// full, drop
	}
}

// listen waits for the next update.
func (s *Surface) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.dirty:
			return stateMsg{}
		case m := <-s.events:
			return m
		}
	}
}
