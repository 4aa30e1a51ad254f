package geometry

import (
	"fmt"
	"strings"
)

// VideoOrientation is the orientation applied to a capture connection.
type VideoOrientation int

const (
	Portrait VideoOrientation = iota
	PortraitUpsideDown
	LandscapeRight // home button on the right; native sensor orientation
	LandscapeLeft
)

func (o VideoOrientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case PortraitUpsideDown:
		return "portrait_upside_down"
	case LandscapeRight:
		return "landscape_right"
	case LandscapeLeft:
		return "landscape_left"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// ParseOrientation parses the names produced by VideoOrientation.String.
func ParseOrientation(s string) (VideoOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "portrait":
		return Portrait, nil
	case "portrait_upside_down":
		return PortraitUpsideDown, nil
	case "landscape_right":
		return LandscapeRight, nil
	case "landscape_left":
		return LandscapeLeft, nil
	default:
		return Portrait, fmt.Errorf("unknown orientation %q", s)
	}
}

func (o VideoOrientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *VideoOrientation) UnmarshalText(b []byte) error {
	v, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// DeviceOrientation is the physical orientation reported by the host.
type DeviceOrientation int

const (
	DeviceUnknown DeviceOrientation = iota
	DevicePortrait
	DevicePortraitUpsideDown
	DeviceLandscapeLeft
	DeviceLandscapeRight
	DeviceFaceUp
	DeviceFaceDown
)

// ParseDeviceOrientation parses a physical orientation name such as
// "landscape_left" or "face_up".
func ParseDeviceOrientation(s string) (DeviceOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "portrait":
		return DevicePortrait, nil
	case "portrait_upside_down":
		return DevicePortraitUpsideDown, nil
	case "landscape_left":
		return DeviceLandscapeLeft, nil
	case "landscape_right":
		return DeviceLandscapeRight, nil
	case "face_up":
		return DeviceFaceUp, nil
	case "face_down":
		return DeviceFaceDown, nil
	case "unknown":
		return DeviceUnknown, nil
	default:
		return DeviceUnknown, fmt.Errorf("unknown device orientation %q", s)
	}
}

// InterfaceOrientation is the orientation of the display layout.
type InterfaceOrientation int

const (
	InterfaceUnknown InterfaceOrientation = iota
	InterfacePortrait
	InterfacePortraitUpsideDown
	InterfaceLandscapeLeft
	InterfaceLandscapeRight
)

// ParseInterfaceOrientation parses a layout orientation; "" and "unknown"
// give InterfaceUnknown.
func ParseInterfaceOrientation(s string) (InterfaceOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return InterfaceUnknown, nil
	case "portrait":
		return InterfacePortrait, nil
	case "portrait_upside_down":
		return InterfacePortraitUpsideDown, nil
	case "landscape_left":
		return InterfaceLandscapeLeft, nil
	case "landscape_right":
		return InterfaceLandscapeRight, nil
	default:
		return InterfaceUnknown, fmt.Errorf("unknown interface orientation %q", s)
	}
}

// FromDeviceOrientation maps a physical orientation to a video orientation.
// Device landscape is mirrored relative to video landscape. Face up/down and
// unknown have no video orientation.
func FromDeviceOrientation(d DeviceOrientation) (VideoOrientation, bool) {
	switch d {
	case DevicePortrait:
		return Portrait, true
	case DevicePortraitUpsideDown:
		return PortraitUpsideDown, true
	case DeviceLandscapeLeft:
		return LandscapeRight, true
	case DeviceLandscapeRight:
		return LandscapeLeft, true
	default:
		return Portrait, false
	}
}

// FromInterfaceOrientation maps a layout orientation to a video orientation.
func FromInterfaceOrientation(i InterfaceOrientation) (VideoOrientation, bool) {
	switch i {
	case InterfacePortrait:
		return Portrait, true
	case InterfacePortraitUpsideDown:
		return PortraitUpsideDown, true
	case InterfaceLandscapeLeft:
		return LandscapeLeft, true
	case InterfaceLandscapeRight:
		return LandscapeRight, true
	default:
		return Portrait, false
	}
}

// InitialOrientation picks the first video orientation from the layout,
// falling back to portrait when the layout is unknown.
func InitialOrientation(i InterfaceOrientation) VideoOrientation {
	if o, ok := FromInterfaceOrientation(i); ok {
		return o
	}
	return Portrait
}
