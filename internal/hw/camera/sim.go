package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

// FrameSource supplies encoded frames for a device. When set on SimOptions
// it replaces the generated test pattern.
type FrameSource interface {
	Frame(deviceID string) ([]byte, error)
	Close() error
}

// SimOptions configure the simulated backend.
type SimOptions struct {
	Frames        FrameSource
	PhotoCodecs   []Codec
	MovieCodecs   []Codec
	FrameInterval time.Duration // recording frame cadence
	FrameWidth    int
	FrameHeight   int
}

// DeviceState is what a simulated device was last configured to.
type DeviceState struct {
	FocusPoint        geometry.Point
	FocusMode         FocusMode
	ExposurePoint     geometry.Point
	ExposureMode      ExposureMode
	SubjectMonitoring bool
	MinFPS, MaxFPS    int
	Locks             int
}

// Simulated is an in-process Session. Stills are generated JPEG frames; live
// photo companions and recordings are written to the paths the caller picks.
type Simulated struct {
	opts SimOptions

	mu            sync.Mutex
	configDepth   int
	preset        Preset
	inputs        []Device
	outputs       map[OutputKind]bool
	orientation   map[OutputKind]geometry.VideoOrientation
	stabilization StabilizationMode
	delivery      PhotoDelivery
	running       bool
	interrupted   bool
	wasRunning    bool
	recording     bool
	stopRec       chan struct{}
	subscribers   map[chan Event]struct{}
	locked        map[string]bool
	devices       map[string]*DeviceState
	failNext      error
	frame         int
}

// NewSimulated creates a stopped, unconfigured simulated session.
func NewSimulated(opts SimOptions) *Simulated {
	if len(opts.PhotoCodecs) == 0 {
		opts.PhotoCodecs = []Codec{CodecJPEG}
	}
	if len(opts.MovieCodecs) == 0 {
		opts.MovieCodecs = []Codec{CodecH264}
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 100 * time.Millisecond
	}
	if opts.FrameWidth <= 0 || opts.FrameHeight <= 0 {
		opts.FrameWidth, opts.FrameHeight = 320, 240
	}
	return &Simulated{
		opts:        opts,
		preset:      PresetHigh,
		outputs:     make(map[OutputKind]bool),
		orientation: make(map[OutputKind]geometry.VideoOrientation),
		subscribers: make(map[chan Event]struct{}),
		locked:      make(map[string]bool),
		devices:     make(map[string]*DeviceState),
	}
}

func (s *Simulated) BeginConfiguration() {
	s.mu.Lock()
	s.configDepth++
	s.mu.Unlock()
}

func (s *Simulated) CommitConfiguration() {
	s.mu.Lock()
	if s.configDepth > 0 {
		s.configDepth--
	}
	s.mu.Unlock()
}

// Configuring reports whether a Begin/Commit bracket is open.
func (s *Simulated) Configuring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configDepth > 0
}

func (s *Simulated) SetPreset(p Preset) {
	s.mu.Lock()
	s.preset = p
	s.mu.Unlock()
}

func (s *Simulated) Preset() Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preset
}

func (s *Simulated) CanAddInput(d Device) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAddInputLocked(d)
}

func (s *Simulated) canAddInputLocked(d Device) bool {
	for _, in := range s.inputs {
		if in.ID == d.ID {
			return false
		}
		if d.Type != DeviceMicrophone && in.Type != DeviceMicrophone {
			return false
		}
	}
	return true
}

func (s *Simulated) AddInput(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canAddInputLocked(d) {
		return fmt.Errorf("add %s: %w", d, ErrInputConflict)
	}
	s.inputs = append(s.inputs, d)
	debug.Trace("sim: input added %s", d)
	return nil
}

func (s *Simulated) RemoveInput(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, in := range s.inputs {
		if in.ID == d.ID {
			s.inputs = append(s.inputs[:i], s.inputs[i+1:]...)
			if d.Type != DeviceMicrophone {
				// The platform drops these when the video input goes away.
				s.delivery.LivePhoto = false
				s.delivery.DepthDelivery = false
				s.delivery.PortraitMatte = false
			}
			debug.Trace("sim: input removed %s", d)
			return
		}
	}
}

func (s *Simulated) Inputs() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Device, len(s.inputs))
	copy(out, s.inputs)
	return out
}

func (s *Simulated) videoInputLocked() (Device, bool) {
	for _, in := range s.inputs {
		if in.Type != DeviceMicrophone {
			return in, true
		}
	}
	return Device{}, false
}

func (s *Simulated) CanAddOutput(k OutputKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.outputs[k]
}

func (s *Simulated) AddOutput(k OutputKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputs[k] {
		return fmt.Errorf("add %s output: %w", k, ErrOutputExists)
	}
	s.outputs[k] = true
	if k == OutputMovie {
		s.delivery.LivePhoto = false
	}
	return nil
}

func (s *Simulated) RemoveOutput(k OutputKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outputs, k)
	if k == OutputMovie {
		s.stabilization = StabilizationOff
	}
}

func (s *Simulated) HasOutput(k OutputKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs[k]
}

func (s *Simulated) StartRunning() {
	s.mu.Lock()
	if s.running || s.interrupted {
		s.mu.Unlock()
		return
	}
	if _, ok := s.videoInputLocked(); !ok {
		s.mu.Unlock()
		debug.Trace("sim: start ignored, no video input")
		return
	}
	s.running = true
	s.broadcastLocked(Event{Kind: EventRunningChanged, Running: true})
	s.mu.Unlock()
}

func (s *Simulated) StopRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Simulated) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	if s.stopRec != nil {
		close(s.stopRec)
		s.stopRec = nil
	}
	s.broadcastLocked(Event{Kind: EventRunningChanged, Running: false})
}

func (s *Simulated) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulated) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of registered observers.
func (s *Simulated) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// broadcastLocked delivers e to every subscriber; slow subscribers miss events.
func (s *Simulated) broadcastLocked(e Event) {
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			debug.Trace("sim: subscriber full, dropped %s", e)
		}
	}
}

// Inject applies an external event (interruption, pressure, runtime error)
// to the simulated session and notifies subscribers.
func (s *Simulated) Inject(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Trace("sim: inject %s", e)

	switch e.Kind {
	case EventRunningChanged:
		if e.Running {
			if _, ok := s.videoInputLocked(); ok && !s.interrupted && !s.running {
				s.running = true
				s.broadcastLocked(e)
			}
			return nil
		}
		s.stopLocked()
		return nil
	case EventRuntimeError:
		s.broadcastLocked(e)
		s.stopLocked()
		return nil
	case EventInterrupted:
		s.wasRunning = s.running || s.wasRunning
		s.interrupted = true
		s.broadcastLocked(e)
		s.stopLocked()
		return nil
	case EventInterruptionEnded:
		s.interrupted = false
		s.broadcastLocked(e)
		if s.wasRunning && !s.running {
			s.running = true
			s.broadcastLocked(Event{Kind: EventRunningChanged, Running: true})
		}
		s.wasRunning = false
		return nil
	case EventSystemPressure:
		s.broadcastLocked(e)
		if e.Pressure == PressureShutdown {
			s.stopLocked()
		}
		return nil
	default:
		s.broadcastLocked(e)
		return nil
	}
}

func (s *Simulated) PhotoSupport() PhotoSupport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoSupportLocked()
}

func (s *Simulated) photoSupportLocked() PhotoSupport {
	sup := PhotoSupport{Codecs: append([]Codec(nil), s.opts.PhotoCodecs...)}
	in, ok := s.videoInputLocked()
	if !ok || !s.outputs[OutputPhoto] {
		return sup
	}
	sup.LivePhoto = in.Caps.LivePhoto && !s.outputs[OutputMovie]
	sup.DepthDelivery = in.Caps.DepthDelivery
	sup.PortraitMatte = in.Caps.PortraitMatte && in.Caps.DepthDelivery
	return sup
}

func (s *Simulated) PhotoDelivery() PhotoDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivery
}

// SetPhotoDelivery enables what is supported; unsupported flags stay off.
func (s *Simulated) SetPhotoDelivery(d PhotoDelivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup := s.photoSupportLocked()
	s.delivery = PhotoDelivery{
		HighResolution: d.HighResolution,
		LivePhoto:      d.LivePhoto && sup.LivePhoto,
		DepthDelivery:  d.DepthDelivery && sup.DepthDelivery,
		PortraitMatte:  d.PortraitMatte && sup.PortraitMatte,
	}
}

func (s *Simulated) SetVideoOrientation(k OutputKind, o geometry.VideoOrientation) {
	s.mu.Lock()
	s.orientation[k] = o
	s.mu.Unlock()
}

// VideoOrientation returns the orientation last applied to k.
func (s *Simulated) VideoOrientation(k OutputKind) geometry.VideoOrientation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orientation[k]
}

func (s *Simulated) SetStabilization(mode StabilizationMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.videoInputLocked()
	if !ok || !s.outputs[OutputMovie] || !in.Caps.Stabilization {
		return false
	}
	s.stabilization = mode
	return true
}

// Stabilization returns the movie connection's stabilization mode.
func (s *Simulated) Stabilization() StabilizationMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stabilization == "" {
		return StabilizationOff
	}
	return s.stabilization
}

func (s *Simulated) MovieCodecs() []Codec {
	return append([]Codec(nil), s.opts.MovieCodecs...)
}

// FailNextCapture makes the next still capture finish with err.
func (s *Simulated) FailNextCapture(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *Simulated) CapturePhoto(settings PhotoSettings, delegate PhotoDelegate) {
	s.mu.Lock()
	running := s.running && s.outputs[OutputPhoto]
	delivery := s.delivery
	fail := s.failNext
	s.failNext = nil
	s.frame++
	frame := s.frame
	in, _ := s.videoInputLocked()
	s.mu.Unlock()

	resolved := ResolvedPhotoSettings{ID: settings.ID}
	live := settings.LivePhotoMoviePath != "" && delivery.LivePhoto
	if live {
		resolved.LivePhotoMovieWidth, resolved.LivePhotoMovieHeight = 1920, 1080
	}

	go func() {
		if !running {
			delegate.DidFinishCapture(resolved, ErrNotRunning)
			return
		}
		delegate.WillBeginCapture(resolved)
		delegate.WillCapturePhoto(resolved)

		if fail != nil {
			delegate.DidFinishProcessingPhoto(Photo{}, fail)
			if live {
				delegate.DidFinishRecordingLivePhotoMovie(settings.LivePhotoMoviePath, resolved)
			}
			delegate.DidFinishCapture(resolved, fail)
			return
		}

		data, err := s.grab(in.ID, frame)
		photo := Photo{Data: data}
		if err == nil && settings.MatteDelivery && delivery.PortraitMatte {
			photo.Matte, _ = s.renderMatte()
		}
		delegate.DidFinishProcessingPhoto(photo, err)

		if live {
			delegate.DidFinishRecordingLivePhotoMovie(settings.LivePhotoMoviePath, resolved)
			werr := os.WriteFile(settings.LivePhotoMoviePath, data, 0o644)
			delegate.DidFinishProcessingLivePhotoMovie(settings.LivePhotoMoviePath, 3*time.Second, werr)
		}
		delegate.DidFinishCapture(resolved, nil)
	}()
}

func (s *Simulated) StartRecording(path string, codec Codec, delegate RecordingDelegate) {
	s.mu.Lock()
	if !s.running || !s.outputs[OutputMovie] || s.recording {
		s.mu.Unlock()
		go delegate.DidFinishRecording(path, &RecordingError{Err: ErrNotRunning})
		return
	}
	f, err := os.Create(path)
	if err != nil {
		s.mu.Unlock()
		go delegate.DidFinishRecording(path, &RecordingError{Err: err})
		return
	}
	stop := make(chan struct{})
	s.stopRec = stop
	s.recording = true
	in, _ := s.videoInputLocked()
	s.mu.Unlock()

	debug.Trace("sim: recording %s to %s", codec, filepath.Base(path))
	go func() {
		delegate.DidStartRecording(path)
		ticker := time.NewTicker(s.opts.FrameInterval)
		defer ticker.Stop()

		var recErr error
		n := 0
	loop:
		for {
			select {
			case <-stop:
				break loop
			case <-ticker.C:
				n++
				data, err := s.grab(in.ID, n)
				if err == nil {
					_, err = f.Write(data)
				}
				if err != nil {
					recErr = err
					s.StopRecording()
				}
			}
		}
		if err := f.Close(); err != nil && recErr == nil {
			recErr = err
		}

		s.mu.Lock()
		s.recording = false
		stillRunning := s.running
		s.mu.Unlock()

		var finishErr error
		switch {
		case recErr != nil:
			finishErr = &RecordingError{Err: recErr}
		case !stillRunning:
			finishErr = &RecordingError{Err: ErrNotRunning, SuccessfullyFinished: true}
		}
		delegate.DidFinishRecording(path, finishErr)
	}()
}

func (s *Simulated) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopRec != nil {
		close(s.stopRec)
		s.stopRec = nil
	}
}

func (s *Simulated) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *Simulated) LockDevice(d Device) (DeviceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[d.ID] {
		return nil, fmt.Errorf("lock %s: %w", d, ErrLocked)
	}
	s.locked[d.ID] = true
	st, ok := s.devices[d.ID]
	if !ok {
		st = &DeviceState{}
		s.devices[d.ID] = st
	}
	st.Locks++
	return &simDeviceConfig{sim: s, id: d.ID}, nil
}

// Device returns a copy of the configured state of device id.
func (s *Simulated) Device(id string) DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.devices[id]; ok {
		return *st
	}
	return DeviceState{}
}

type simDeviceConfig struct {
	sim  *Simulated
	id   string
	once sync.Once
}

func (c *simDeviceConfig) update(fn func(*DeviceState)) {
	c.sim.mu.Lock()
	fn(c.sim.devices[c.id])
	c.sim.mu.Unlock()
}

func (c *simDeviceConfig) SetFocus(p geometry.Point, m FocusMode) {
	c.update(func(st *DeviceState) { st.FocusPoint, st.FocusMode = p, m })
}

func (c *simDeviceConfig) SetExposure(p geometry.Point, m ExposureMode) {
	c.update(func(st *DeviceState) { st.ExposurePoint, st.ExposureMode = p, m })
}

func (c *simDeviceConfig) SetSubjectAreaMonitoring(enabled bool) {
	c.update(func(st *DeviceState) { st.SubjectMonitoring = enabled })
}

func (c *simDeviceConfig) SetFrameRateRange(minFPS, maxFPS int) {
	c.update(func(st *DeviceState) { st.MinFPS, st.MaxFPS = minFPS, maxFPS })
}

func (c *simDeviceConfig) Unlock() {
	c.once.Do(func() {
		c.sim.mu.Lock()
		delete(c.sim.locked, c.id)
		c.sim.mu.Unlock()
	})
}

func (s *Simulated) grab(deviceID string, n int) ([]byte, error) {
	if s.opts.Frames != nil {
		return s.opts.Frames.Frame(deviceID)
	}
	return s.renderFrame(n)
}

// Close releases the frame source, if any.
func (s *Simulated) Close() error {
	s.StopRunning()
	if s.opts.Frames != nil {
		return s.opts.Frames.Close()
	}
	return nil
}

// renderFrame draws a moving gradient and encodes it as JPEG.
func (s *Simulated) renderFrame(n int) ([]byte, error) {
	w, h := s.opts.FrameWidth, s.opts.FrameHeight
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + n*7) % 256),
				G: uint8((y + n*3) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// renderMatte draws an elliptical foreground mask.
func (s *Simulated) renderMatte() ([]byte, error) {
	w, h := s.opts.FrameWidth/2, s.opts.FrameHeight/2
	img := image.NewGray(image.Rect(0, 0, w, h))
	cx, cy := float64(w)/2, float64(h)/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := (float64(x)-cx)/cx, (float64(y)-cy)/cy
			if dx*dx+dy*dy < 0.5 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("encode matte: %w", err)
	}
	return buf.Bytes(), nil
}
