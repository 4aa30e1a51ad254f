package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

const maxLogs = 1000

type tickMsg time.Time

// Model holds the terminal view of the capture session.
type Model struct {
	surface *Surface
	intents display.Intents

	width       int
	height      int
	currentTime time.Time
	status      string

	state    display.State
	hasState bool
	advisory *display.Advisory

	logViewport viewport.Model
	logs        []string
}

// New returns a Model sending user actions to intents.
func New(surface *Surface, intents display.Intents) Model {
	vp := viewport.New(0, 10)
	vp.MouseWheelEnabled = true
	return Model{
		surface:     surface,
		intents:     intents,
		currentTime: time.Now(),
		status:      "Starting up...",
		logViewport: vp,
	}
}

// Init starts the clock and the surface listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(timeTickCmd(), m.surface.listen())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width
		m.logViewport.Height = max(3, msg.Height-18)

	case tickMsg:
		m.currentTime = time.Time(msg)
		return m, timeTickCmd()

	case stateMsg:
		if s, ok := m.surface.Latest(); ok {
			m.state, m.hasState = s, true
			m.status = "Session " + s.Session
		}
		return m, m.surface.listen()

	case advisoryMsg:
		a := display.Advisory(msg)
		m.advisory = &a
		m.addLog("ADVISORY", a.Message)
		return m, m.surface.listen()

	case logMsg:
		m.addLog("", string(msg))
		return m, m.surface.listen()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.advisory = nil
	case "m":
		next := display.ModeMovie
		if m.state.Mode == display.ModeMovie {
			next = display.ModePhoto
		}
		m.intents.SetCaptureMode(next)
		m.status = fmt.Sprintf("Switching to %s...", next)
	case "c":
		m.intents.ChangeCamera()
		m.status = "Changing camera..."
	case " ", "space":
		m.intents.CapturePhoto()
	case "r":
		m.intents.ToggleRecording()
	case "l":
		m.intents.ToggleLivePhoto()
	case "d":
		m.intents.ToggleDepth()
	case "p":
		m.intents.ToggleMatte()
	case "u":
		m.intents.ResumeInterruptedSession()
	case "f":
		// the terminal has no preview; focus on the centre
		m.intents.FocusAndExposeTap(geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 1, Height: 1})
	}
	return m, nil
}

func (m *Model) addLog(level, message string) {
	entry := message
	if level != "" {
		entry = fmt.Sprintf("[%s] %s", level, message)
	}
	m.logs = append(m.logs, entry)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[1:]
	}
	m.logViewport.SetContent(strings.Join(m.logs, "\n"))
	m.logViewport.GotoBottom()
}

func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
