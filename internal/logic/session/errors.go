package session

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/RecPause/internal/hw/camera"
)

var (
	// ErrPermissionDenied means camera access was refused. Terminal until
	// the user changes the system settings.
	ErrPermissionDenied = errors.New("session: camera access denied")

	// ErrDeviceUnavailable means no usable capture device was found.
	ErrDeviceUnavailable = errors.New("session: device unavailable")

	// ErrConfigurationFailed means the session could not be configured.
	ErrConfigurationFailed = errors.New("session: configuration failed")

	// ErrCaptureFailed wraps a failed still or movie capture.
	ErrCaptureFailed = errors.New("session: capture failed")

	// ErrPersistenceFailed wraps a failed save to the media library.
	ErrPersistenceFailed = errors.New("session: persistence failed")
)

// InterruptionError describes why the running session stopped.
// Recoverable interruptions can be resumed, automatically or by the user.
type InterruptionError struct {
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"`
}

func (e *InterruptionError) Error() string {
	if e.Recoverable {
		return fmt.Sprintf("session interrupted: %s (recoverable)", e.Reason)
	}
	return fmt.Sprintf("session interrupted: %s", e.Reason)
}

func interruptionFor(e camera.Event) *InterruptionError {
	switch e.Kind {
	case camera.EventRuntimeError:
		return &InterruptionError{
			Reason:      "runtime_error: " + string(e.Code),
			Recoverable: e.Code == camera.ErrorMediaServicesReset,
		}
	case camera.EventInterrupted:
		return &InterruptionError{
			Reason:      string(e.Reason),
			Recoverable: resumable(e.Reason),
		}
	default:
		return nil
	}
}

// resumable reports whether the user may try to resume after reason.
func resumable(reason camera.InterruptionReason) bool {
	return reason == camera.ReasonAudioDeviceInUseByAnotherClient ||
		reason == camera.ReasonVideoDeviceInUseByAnotherClient
}
