// Package display defines what the controller publishes to display surfaces
// and the intents surfaces send back.
//
// All Surface methods are called on the controller's UI context, one call at
// a time, with values the surface may keep.
package display

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

// Mode is the capture mode.
type Mode string

const (
	ModePhoto Mode = "photo"
	ModeMovie Mode = "movie"
)

// ParseMode parses "photo" or "movie".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePhoto, ModeMovie:
		return m, nil
	default:
		return "", fmt.Errorf("unknown capture mode %q", s)
	}
}

// Control is the visibility of one button.
type Control struct {
	Enabled bool `json:"enabled"`
	Hidden  bool `json:"hidden"`
}

// Controls are the user-facing controls.
type Controls struct {
	Camera      Control `json:"camera"`
	Record      Control `json:"record"`
	Photo       Control `json:"photo"`
	LivePhoto   Control `json:"live_photo"`
	Depth       Control `json:"depth"`
	Matte       Control `json:"matte"`
	CaptureMode Control `json:"capture_mode"`
}

// RecordIcon is the glyph on the record button.
type RecordIcon string

const (
	RecordIconVideo RecordIcon = "video"
	RecordIconStop  RecordIcon = "stop"
)

// Icons are the toggled button faces.
type Icons struct {
	Record    RecordIcon `json:"record"`
	LivePhoto bool       `json:"live_photo_on"`
	Depth     bool       `json:"depth_on"`
	Matte     bool       `json:"matte_on"`
}

// Indicators are the non-interactive overlays.
type Indicators struct {
	CapturingLivePhoto bool `json:"capturing_live_photo"`
	ResumeVisible      bool `json:"resume_visible"`
	CameraUnavailable  bool `json:"camera_unavailable"`
	// PreviewFlash increments each time a still is about to be taken.
	PreviewFlash int `json:"preview_flash"`
}

// State is a full snapshot of what a surface should show.
type State struct {
	Session     string                    `json:"session"`
	Mode        Mode                      `json:"mode"`
	Orientation geometry.VideoOrientation `json:"orientation"`
	Camera      string                    `json:"camera,omitempty"`
	Recording   bool                      `json:"recording"`
	Controls    Controls                  `json:"controls"`
	Icons       Icons                     `json:"icons"`
	Indicators  Indicators                `json:"indicators"`
}

// AdvisoryKind identifies a blocking message.
type AdvisoryKind string

const (
	AdvisoryNotAuthorized       AdvisoryKind = "not_authorized"
	AdvisoryConfigurationFailed AdvisoryKind = "configuration_failed"
	AdvisoryUnableToResume      AdvisoryKind = "unable_to_resume"
)

// Advisory is a message the user must acknowledge. SettingsLink asks the
// surface to offer a way to the system privacy settings.
type Advisory struct {
	Kind         AdvisoryKind `json:"kind"`
	Title        string       `json:"title"`
	Message      string       `json:"message"`
	SettingsLink bool         `json:"settings_link,omitempty"`
}

// Surface receives display updates.
type Surface interface {
	Render(s State)
	Advise(a Advisory)
}

// Multi fans updates out to several surfaces in order.
type Multi []Surface

func (m Multi) Render(s State) {
	for _, sf := range m {
		sf.Render(s)
	}
}

func (m Multi) Advise(a Advisory) {
	for _, sf := range m {
		sf.Advise(a)
	}
}

// Intents are the user actions a surface can send. Implementations return
// immediately; effects show up as later Render calls.
type Intents interface {
	SetCaptureMode(m Mode)
	ChangeCamera()
	// FocusAndExposeTap focuses at a tap on a preview of the given size.
	FocusAndExposeTap(tap geometry.Point, layer geometry.Size)
	CapturePhoto()
	ToggleRecording()
	ResumeInterruptedSession()
	ToggleLivePhoto()
	ToggleDepth()
	ToggleMatte()
	DeviceRotated(o geometry.DeviceOrientation)
}
