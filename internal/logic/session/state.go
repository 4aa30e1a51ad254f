package session

import "fmt"

// State is the controller lifecycle state.
type State int

const (
	Uninitialized State = iota
	Authorizing
	Configuring
	// Ready means configured and waiting to be shown.
	Ready
	NotAuthorized
	ConfigurationFailed
	Running
	Stopped
	Interrupted
)

var stateNames = map[State]string{
	Uninitialized:       "uninitialized",
	Authorizing:         "authorizing",
	Configuring:         "configuring",
	Ready:               "ready",
	NotAuthorized:       "not_authorized",
	ConfigurationFailed: "configuration_failed",
	Running:             "running",
	Stopped:             "stopped",
	Interrupted:         "interrupted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SetupResult is the outcome of authorization and configuration.
type SetupResult int

const (
	SetupSuccess SetupResult = iota
	SetupNotAuthorized
	SetupConfigurationFailed
)

func (r SetupResult) String() string {
	switch r {
	case SetupSuccess:
		return "success"
	case SetupNotAuthorized:
		return "not_authorized"
	case SetupConfigurationFailed:
		return "configuration_failed"
	default:
		return fmt.Sprintf("setup(%d)", int(r))
	}
}

func (r SetupResult) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Modes are the user's still capture preferences. They are requests: a
// capture only gets what the photo output also has enabled.
type Modes struct {
	LivePhoto bool `json:"live_photo"`
	Depth     bool `json:"depth"`
	Matte     bool `json:"matte"`
}

// NormalizeModes applies the dependencies between modes: the portrait
// matte needs depth data.
func NormalizeModes(m Modes) Modes {
	if !m.Depth {
		m.Matte = false
	}
	return m
}

// toggleMatte turns the matte off when on, and on only when depth is on.
func toggleMatte(m Modes) Modes {
	m.Matte = !m.Matte && m.Depth
	return NormalizeModes(m)
}

func toggleDepth(m Modes) Modes {
	m.Depth = !m.Depth
	return NormalizeModes(m)
}
