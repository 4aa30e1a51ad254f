package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cjeanneret/RecPause/internal/display"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	labelStyle    = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("245"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	recordStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	advisoryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
)

const keyHelp = "m mode | c camera | space photo | r record | l live | d depth | p matte | u resume | f focus | q quit"

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")
	header := headerStyle.Width(m.width).Render(
		lipgloss.JoinHorizontal(lipgloss.Center,
			"RecPause",
			lipgloss.NewStyle().Width(max(0, m.width-12)).Align(lipgloss.Right).Render(timeStr),
		),
	)

	sections := []string{header, mainContentStyle.Render(m.renderSession())}
	if m.advisory != nil {
		sections = append(sections, renderAdvisory(*m.advisory))
	}
	sections = append(sections,
		m.logViewport.View(),
		statusBarStyle.Width(m.width).Render(fmt.Sprintf("Status: %s | %s", m.status, keyHelp)),
	)
	return strings.Join(sections, "\n")
}

func (m Model) renderSession() string {
	if !m.hasState {
		return "Waiting for the capture session..."
	}
	s := m.state
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Session", s.Session)
	row("Mode", string(s.Mode))
	row("Camera", s.Camera)
	row("Orientation", s.Orientation.String())
	if s.Recording {
		row("Recording", recordStyle.Render("● REC"))
	} else {
		row("Recording", "no")
	}

	controls := []struct {
		name string
		c    display.Control
		on   *bool
	}{
		{"camera", s.Controls.Camera, nil},
		{"record", s.Controls.Record, nil},
		{"photo", s.Controls.Photo, nil},
		{"live", s.Controls.LivePhoto, &s.Icons.LivePhoto},
		{"depth", s.Controls.Depth, &s.Icons.Depth},
		{"matte", s.Controls.Matte, &s.Icons.Matte},
		{"mode", s.Controls.CaptureMode, nil},
	}
	var parts []string
	for _, c := range controls {
		if c.c.Hidden {
			continue
		}
		label := c.name
		if c.on != nil {
			if *c.on {
				label += ":on"
			} else {
				label += ":off"
			}
		}
		if c.c.Enabled {
			parts = append(parts, enabledStyle.Render("["+label+"]"))
		} else {
			parts = append(parts, disabledStyle.Render("("+label+")"))
		}
	}
	row("Controls", strings.Join(parts, " "))

	var flags []string
	if s.Indicators.CapturingLivePhoto {
		flags = append(flags, "LIVE")
	}
	if s.Indicators.ResumeVisible {
		flags = append(flags, "tap u to resume")
	}
	if s.Indicators.CameraUnavailable {
		flags = append(flags, "camera unavailable")
	}
	if len(flags) > 0 {
		row("Indicators", strings.Join(flags, ", "))
	}
	row("Photos", fmt.Sprintf("%d", s.Indicators.PreviewFlash))
	return b.String()
}

func renderAdvisory(a display.Advisory) string {
	body := a.Title + "\n" + a.Message
	if a.SettingsLink {
		body += "\n(open the system privacy settings to grant access)"
	}
	return advisoryStyle.Render(body + "\n[esc] dismiss")
}
