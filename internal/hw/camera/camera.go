// Package camera abstracts the platform capture framework: device discovery,
// the capture session pipeline and its delegate callbacks.
//
// The session controller drives a Session through this interface and only
// branches on the capability flags it is handed. Concrete backends are the
// in-process Simulated backend and, with the gocv build tag, an OpenCV one.
package camera

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

var (
	// ErrNoDevice is returned when a device lookup finds nothing.
	ErrNoDevice = errors.New("camera: no such device")

	// ErrInputConflict is returned when a second video input is added.
	ErrInputConflict = errors.New("camera: session already has a video input")

	// ErrOutputExists is returned when an output kind is added twice.
	ErrOutputExists = errors.New("camera: output already attached")

	// ErrNotRunning is returned when capture is requested on a stopped session.
	ErrNotRunning = errors.New("camera: session not running")

	// ErrLocked is returned when a device is already locked for configuration.
	ErrLocked = errors.New("camera: device locked for configuration")
)

// Position is where a device faces.
type Position int

const (
	PositionUnspecified Position = iota
	PositionBack
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unspecified"
	}
}

// ParsePosition parses "back", "front" or "unspecified".
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back":
		return PositionBack, nil
	case "front":
		return PositionFront, nil
	case "", "unspecified":
		return PositionUnspecified, nil
	default:
		return PositionUnspecified, fmt.Errorf("unknown position %q", s)
	}
}

// DeviceType is the hardware kind of a capture device.
type DeviceType string

const (
	DeviceDualCamera      DeviceType = "dual"
	DeviceWideAngleCamera DeviceType = "wide_angle"
	DeviceTrueDepthCamera DeviceType = "true_depth"
	DeviceMicrophone      DeviceType = "microphone"
)

// ParseDeviceType validates a configured device type.
func ParseDeviceType(s string) (DeviceType, error) {
	switch t := DeviceType(strings.ToLower(strings.TrimSpace(s))); t {
	case DeviceDualCamera, DeviceWideAngleCamera, DeviceTrueDepthCamera, DeviceMicrophone:
		return t, nil
	default:
		return "", fmt.Errorf("unknown device type %q", s)
	}
}

// FocusMode is a device focus behaviour.
type FocusMode string

const (
	FocusLocked         FocusMode = "locked"
	FocusAuto           FocusMode = "auto"
	FocusContinuousAuto FocusMode = "continuous_auto"
)

// ExposureMode is a device exposure behaviour.
type ExposureMode string

const (
	ExposureLocked         ExposureMode = "locked"
	ExposureAuto           ExposureMode = "auto"
	ExposureContinuousAuto ExposureMode = "continuous_auto"
)

// Caps are the per-device support flags reported by the platform.
type Caps struct {
	FocusPointOfInterest    bool
	ExposurePointOfInterest bool
	FocusModes              []FocusMode
	ExposureModes           []ExposureMode
	Flash                   bool
	Stabilization           bool
	LivePhoto               bool
	DepthDelivery           bool
	PortraitMatte           bool
}

// SupportsFocus reports whether the device can focus at a point in mode m.
func (c Caps) SupportsFocus(m FocusMode) bool {
	if !c.FocusPointOfInterest {
		return false
	}
	for _, fm := range c.FocusModes {
		if fm == m {
			return true
		}
	}
	return false
}

// SupportsExposure reports whether the device can expose at a point in mode m.
func (c Caps) SupportsExposure(m ExposureMode) bool {
	if !c.ExposurePointOfInterest {
		return false
	}
	for _, em := range c.ExposureModes {
		if em == m {
			return true
		}
	}
	return false
}

// Device is one capture device.
type Device struct {
	ID       string
	Name     string
	Position Position
	Type     DeviceType
	Caps     Caps
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.ID, d.Type, d.Position)
}

// Codec is an encoding for stills or movies.
type Codec string

const (
	CodecHEVC Codec = "hevc"
	CodecH264 Codec = "h264"
	CodecJPEG Codec = "jpeg"
	CodecMJPG Codec = "mjpg"
)

// Extension returns a file extension for assets encoded with c.
func (c Codec) Extension(movie bool) string {
	switch {
	case movie && c == CodecMJPG:
		return "avi"
	case movie:
		return "mov"
	case c == CodecHEVC:
		return "heic"
	default:
		return "jpg"
	}
}

// ContainsCodec reports whether list contains c.
func ContainsCodec(list []Codec, c Codec) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

// Preset is the session quality preset.
type Preset string

const (
	PresetPhoto Preset = "photo"
	PresetHigh  Preset = "high"
)

// OutputKind names a session output.
type OutputKind int

const (
	OutputPhoto OutputKind = iota
	OutputMovie
)

func (k OutputKind) String() string {
	if k == OutputMovie {
		return "movie"
	}
	return "photo"
}

// FlashMode is the flash behaviour of a still capture.
type FlashMode string

const (
	FlashOff  FlashMode = "off"
	FlashOn   FlashMode = "on"
	FlashAuto FlashMode = "auto"
)

// StabilizationMode is the video stabilization behaviour of a connection.
type StabilizationMode string

const (
	StabilizationOff  StabilizationMode = "off"
	StabilizationAuto StabilizationMode = "auto"
)

// PhotoSupport is what the photo output can do with the current input and outputs.
type PhotoSupport struct {
	LivePhoto     bool
	DepthDelivery bool
	PortraitMatte bool
	Codecs        []Codec
}

// PhotoDelivery is what the photo output has enabled.
type PhotoDelivery struct {
	HighResolution bool
	LivePhoto      bool
	DepthDelivery  bool
	PortraitMatte  bool
}

// PhotoSettings describe one still capture. ID is unique per settings object.
type PhotoSettings struct {
	ID                 uuid.UUID
	Codec              Codec
	Flash              FlashMode
	HighResolution     bool
	LivePhotoMoviePath string // empty when no live photo companion is requested
	DepthDelivery      bool
	MatteDelivery      bool
	Orientation        geometry.VideoOrientation
}

// NewPhotoSettings returns settings with a fresh unique ID.
func NewPhotoSettings(codec Codec) PhotoSettings {
	return PhotoSettings{
		ID:    uuid.New(),
		Codec: codec,
		Flash: FlashOff,
	}
}

// ResolvedPhotoSettings are the settings the platform actually applied.
type ResolvedPhotoSettings struct {
	ID                   uuid.UUID
	LivePhotoMovieWidth  int
	LivePhotoMovieHeight int
}

// HasLivePhotoMovie reports whether a live photo companion will be produced.
func (r ResolvedPhotoSettings) HasLivePhotoMovie() bool {
	return r.LivePhotoMovieWidth > 0 && r.LivePhotoMovieHeight > 0
}

// Photo is a processed still. Matte is nil when no portrait matte was generated.
type Photo struct {
	Data  []byte
	Matte []byte
}

// PhotoDelegate receives the checkpoints of a single still capture. Calls for
// one capture may arrive on any goroutine but never concurrently, and
// DidFinishCapture is always last.
type PhotoDelegate interface {
	WillBeginCapture(resolved ResolvedPhotoSettings)
	WillCapturePhoto(resolved ResolvedPhotoSettings)
	DidFinishProcessingPhoto(photo Photo, err error)
	DidFinishRecordingLivePhotoMovie(path string, resolved ResolvedPhotoSettings)
	DidFinishProcessingLivePhotoMovie(path string, duration time.Duration, err error)
	DidFinishCapture(resolved ResolvedPhotoSettings, err error)
}

// RecordingDelegate receives movie recording checkpoints.
type RecordingDelegate interface {
	DidStartRecording(path string)
	DidFinishRecording(path string, err error)
}

// RecordingError reports a recording that ended with an error. The file may
// still be complete, in which case SuccessfullyFinished is set.
type RecordingError struct {
	Err                  error
	SuccessfullyFinished bool
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording: %v (finished=%v)", e.Err, e.SuccessfullyFinished)
}

func (e *RecordingError) Unwrap() error { return e.Err }

// RecordingFinishedSuccessfully reports whether a recording that ended with err
// produced a usable file.
func RecordingFinishedSuccessfully(err error) bool {
	if err == nil {
		return true
	}
	var re *RecordingError
	if errors.As(err, &re) {
		return re.SuccessfullyFinished
	}
	return false
}

// PhotoCapturer starts still captures.
type PhotoCapturer interface {
	CapturePhoto(settings PhotoSettings, delegate PhotoDelegate)
}

// DeviceConfig is exclusive configuration access to one device, obtained by
// Session.LockDevice and released with Unlock.
type DeviceConfig interface {
	SetFocus(point geometry.Point, mode FocusMode)
	SetExposure(point geometry.Point, mode ExposureMode)
	SetSubjectAreaMonitoring(enabled bool)
	// SetFrameRateRange bounds the active frame rate in frames per second.
	SetFrameRateRange(minFPS, maxFPS int)
	Unlock()
}

// Discovery reports the capture devices available to the session.
type Discovery interface {
	Devices() []Device
	Default(t DeviceType, p Position) (Device, bool)
	DefaultAudio() (Device, bool)
	UniquePositions() int
}

// Session is the platform capture pipeline. It is not safe for concurrent
// mutation; callers serialize all calls except Subscribe, IsRunning and
// delegate callbacks.
type Session interface {
	PhotoCapturer

	BeginConfiguration()
	CommitConfiguration()
	SetPreset(p Preset)
	Preset() Preset

	CanAddInput(d Device) bool
	AddInput(d Device) error
	RemoveInput(d Device)
	Inputs() []Device

	CanAddOutput(k OutputKind) bool
	AddOutput(k OutputKind) error
	RemoveOutput(k OutputKind)
	HasOutput(k OutputKind) bool

	StartRunning()
	StopRunning()
	IsRunning() bool

	// Subscribe registers for session and device notifications. The returned
	// function unregisters and closes the channel; it must be called exactly once.
	Subscribe() (<-chan Event, func())

	PhotoSupport() PhotoSupport
	PhotoDelivery() PhotoDelivery
	SetPhotoDelivery(d PhotoDelivery)

	SetVideoOrientation(k OutputKind, o geometry.VideoOrientation)
	// SetStabilization applies mode to the movie connection when supported
	// and reports whether it was applied.
	SetStabilization(mode StabilizationMode) bool
	MovieCodecs() []Codec

	StartRecording(path string, codec Codec, delegate RecordingDelegate)
	StopRecording()
	IsRecording() bool

	LockDevice(d Device) (DeviceConfig, error)
}
