package camera

import (
	"fmt"
	"strings"
)

// EventKind identifies a session or device notification.
type EventKind string

const (
	EventRunningChanged     EventKind = "running_changed"
	EventRuntimeError       EventKind = "runtime_error"
	EventInterrupted        EventKind = "interrupted"
	EventInterruptionEnded  EventKind = "interruption_ended"
	EventSubjectAreaChanged EventKind = "subject_area_changed"
	EventSystemPressure     EventKind = "system_pressure"
)

// ErrorCode classifies runtime errors.
type ErrorCode string

const (
	// ErrorMediaServicesReset is a transient reset of the media services; the
	// session can simply be started again.
	ErrorMediaServicesReset ErrorCode = "media_services_reset"
	ErrorUnknown            ErrorCode = "unknown"
)

// InterruptionReason says why the platform suspended the session.
type InterruptionReason string

const (
	ReasonVideoDeviceNotAvailableInBackground        InterruptionReason = "video_device_not_available_in_background"
	ReasonAudioDeviceInUseByAnotherClient            InterruptionReason = "audio_device_in_use_by_another_client"
	ReasonVideoDeviceInUseByAnotherClient            InterruptionReason = "video_device_in_use_by_another_client"
	ReasonVideoDeviceNotAvailableWithMultipleApps    InterruptionReason = "video_device_not_available_with_multiple_foreground_apps"
	ReasonVideoDeviceNotAvailableDueToSystemPressure InterruptionReason = "video_device_not_available_due_to_system_pressure"
)

// PressureLevel is the device's system pressure (thermal, power, peak power).
type PressureLevel string

const (
	PressureNominal  PressureLevel = "nominal"
	PressureFair     PressureLevel = "fair"
	PressureSerious  PressureLevel = "serious"
	PressureCritical PressureLevel = "critical"
	PressureShutdown PressureLevel = "shutdown"
)

// Elevated reports whether the level calls for throttling.
func (l PressureLevel) Elevated() bool {
	return l == PressureSerious || l == PressureCritical
}

// Event is a notification delivered to Session subscribers. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind     EventKind          `json:"kind"`
	Running  bool               `json:"running,omitempty"`
	Code     ErrorCode          `json:"code,omitempty"`
	Reason   InterruptionReason `json:"reason,omitempty"`
	DeviceID string             `json:"device_id,omitempty"`
	Pressure PressureLevel      `json:"pressure,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case EventRunningChanged:
		return fmt.Sprintf("%s(running=%v)", e.Kind, e.Running)
	case EventRuntimeError:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Code)
	case EventInterrupted:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Reason)
	case EventSubjectAreaChanged:
		return fmt.Sprintf("%s(%s)", e.Kind, e.DeviceID)
	case EventSystemPressure:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Pressure)
	default:
		return string(e.Kind)
	}
}

// Validate checks an externally supplied event (e.g. injected over HTTP).
func (e Event) Validate() error {
	switch e.Kind {
	case EventRunningChanged, EventInterruptionEnded:
		return nil
	case EventRuntimeError:
		if e.Code == "" {
			return fmt.Errorf("runtime_error requires code")
		}
		return nil
	case EventInterrupted:
		switch e.Reason {
		case ReasonVideoDeviceNotAvailableInBackground,
			ReasonAudioDeviceInUseByAnotherClient,
			ReasonVideoDeviceInUseByAnotherClient,
			ReasonVideoDeviceNotAvailableWithMultipleApps,
			ReasonVideoDeviceNotAvailableDueToSystemPressure:
			return nil
		}
		return fmt.Errorf("unknown interruption reason %q", e.Reason)
	case EventSubjectAreaChanged:
		if strings.TrimSpace(e.DeviceID) == "" {
			return fmt.Errorf("subject_area_changed requires device_id")
		}
		return nil
	case EventSystemPressure:
		switch e.Pressure {
		case PressureNominal, PressureFair, PressureSerious, PressureCritical, PressureShutdown:
			return nil
		}
		return fmt.Errorf("unknown pressure level %q", e.Pressure)
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}
