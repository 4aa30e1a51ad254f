package camera

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

var (
	testBackDual = Device{
		ID: "back-dual", Position: PositionBack, Type: DeviceDualCamera,
		Caps: Caps{
			FocusPointOfInterest: true, ExposurePointOfInterest: true,
			FocusModes:    []FocusMode{FocusAuto, FocusContinuousAuto},
			ExposureModes: []ExposureMode{ExposureAuto, ExposureContinuousAuto},
			Flash:         true, Stabilization: true,
			LivePhoto: true, DepthDelivery: true, PortraitMatte: true,
		},
	}
	testFrontWide = Device{
		ID: "front-wide", Position: PositionFront, Type: DeviceWideAngleCamera,
		Caps: Caps{LivePhoto: true},
	}
	testMic = Device{ID: "mic", Type: DeviceMicrophone}
)

// recordingDelegate records photo and movie callbacks in order.
type recordingDelegate struct {
	mu       sync.Mutex
	calls    []string
	photo    Photo
	resolved ResolvedPhotoSettings
	finalErr error
	done     chan struct{}
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{done: make(chan struct{})}
}

func (d *recordingDelegate) add(s string) {
	d.mu.Lock()
	d.calls = append(d.calls, s)
	d.mu.Unlock()
}

func (d *recordingDelegate) WillBeginCapture(r ResolvedPhotoSettings) {
	d.mu.Lock()
	d.resolved = r
	d.mu.Unlock()
	d.add("begin")
}
func (d *recordingDelegate) WillCapturePhoto(ResolvedPhotoSettings) { d.add("capture") }
func (d *recordingDelegate) DidFinishProcessingPhoto(p Photo, err error) {
	d.mu.Lock()
	d.photo = p
	d.mu.Unlock()
	d.add("photo")
}
func (d *recordingDelegate) DidFinishRecordingLivePhotoMovie(string, ResolvedPhotoSettings) {
	d.add("live-recorded")
}
func (d *recordingDelegate) DidFinishProcessingLivePhotoMovie(string, time.Duration, error) {
	d.add("live-processed")
}
func (d *recordingDelegate) DidFinishCapture(_ ResolvedPhotoSettings, err error) {
	d.mu.Lock()
	d.finalErr = err
	d.mu.Unlock()
	d.add("finish")
	close(d.done)
}
func (d *recordingDelegate) DidStartRecording(string) { d.add("rec-start") }
func (d *recordingDelegate) DidFinishRecording(_ string, err error) {
	d.mu.Lock()
	d.finalErr = err
	d.mu.Unlock()
	d.add("rec-finish")
	close(d.done)
}

func (d *recordingDelegate) wait(t *testing.T) {
	t.Helper()
	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatal("delegate never finished")
	}
}

func configuredSim(t *testing.T, video Device) *Simulated {
	t.Helper()
	s := NewSimulated(SimOptions{FrameWidth: 16, FrameHeight: 16, FrameInterval: time.Millisecond})
	s.BeginConfiguration()
	if err := s.AddInput(video); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	if err := s.AddOutput(OutputPhoto); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	s.CommitConfiguration()
	return s
}

func TestSimulated_RejectsSecondVideoInput(t *testing.T) {
	s := configuredSim(t, testBackDual)

	if s.CanAddInput(testFrontWide) {
		t.Error("CanAddInput(front) = true with a video input attached")
	}
	if err := s.AddInput(testFrontWide); !errors.Is(err, ErrInputConflict) {
		t.Errorf("AddInput error = %v, want ErrInputConflict", err)
	}
	if err := s.AddInput(testMic); err != nil {
		t.Errorf("AddInput(mic): %v", err)
	}
	if got := len(s.Inputs()); got != 2 {
		t.Errorf("inputs = %d, want 2", got)
	}
}

func TestSimulated_SingleOutputPerKind(t *testing.T) {
	s := configuredSim(t, testBackDual)
	if err := s.AddOutput(OutputPhoto); !errors.Is(err, ErrOutputExists) {
		t.Errorf("second photo output error = %v, want ErrOutputExists", err)
	}
	if err := s.AddOutput(OutputMovie); err != nil {
		t.Fatalf("AddOutput(movie): %v", err)
	}
	if s.CanAddOutput(OutputMovie) {
		t.Error("CanAddOutput(movie) = true with a movie output attached")
	}
}

func TestSimulated_LivePhotoUnsupportedWithMovieOutput(t *testing.T) {
	s := configuredSim(t, testBackDual)
	if !s.PhotoSupport().LivePhoto {
		t.Fatal("live photo should be supported in photo configuration")
	}
	s.SetPhotoDelivery(PhotoDelivery{LivePhoto: true, DepthDelivery: true})

	_ = s.AddOutput(OutputMovie)
	if s.PhotoSupport().LivePhoto {
		t.Error("live photo supported with a movie output attached")
	}
	if s.PhotoDelivery().LivePhoto {
		t.Error("live photo still enabled after adding movie output")
	}
	if !s.PhotoDelivery().DepthDelivery {
		t.Error("depth delivery should survive adding movie output")
	}

	s.RemoveOutput(OutputMovie)
	if !s.PhotoSupport().LivePhoto {
		t.Error("live photo not supported after removing movie output")
	}
}

func TestSimulated_RemovingVideoInputResetsDelivery(t *testing.T) {
	s := configuredSim(t, testBackDual)
	s.SetPhotoDelivery(PhotoDelivery{HighResolution: true, LivePhoto: true, DepthDelivery: true, PortraitMatte: true})

	s.RemoveInput(testBackDual)
	got := s.PhotoDelivery()
	if got.LivePhoto || got.DepthDelivery || got.PortraitMatte {
		t.Errorf("delivery after input removal = %+v, want live/depth/matte off", got)
	}
	if !got.HighResolution {
		t.Error("high resolution should not be reset")
	}
}

func TestSimulated_DeliveryClampedToSupport(t *testing.T) {
	s := configuredSim(t, testFrontWide)
	s.SetPhotoDelivery(PhotoDelivery{LivePhoto: true, DepthDelivery: true, PortraitMatte: true})
	got := s.PhotoDelivery()
	if !got.LivePhoto || got.DepthDelivery || got.PortraitMatte {
		t.Errorf("delivery = %+v, want only live photo", got)
	}
}

func TestSimulated_StartRequiresVideoInput(t *testing.T) {
	s := NewSimulated(SimOptions{})
	s.StartRunning()
	if s.IsRunning() {
		t.Fatal("session running without a video input")
	}

	s = configuredSim(t, testBackDual)
	events, cancel := s.Subscribe()
	defer cancel()
	s.StartRunning()
	if !s.IsRunning() {
		t.Fatal("session not running")
	}
	select {
	case e := <-events:
		if e.Kind != EventRunningChanged || !e.Running {
			t.Errorf("event = %s, want running_changed(true)", e)
		}
	default:
		t.Error("no running_changed event")
	}
}

func TestSimulated_SubscribeCancelIsIdempotent(t *testing.T) {
	s := NewSimulated(SimOptions{})
	_, cancel := s.Subscribe()
	if s.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", s.Subscribers())
	}
	cancel()
	cancel()
	if s.Subscribers() != 0 {
		t.Errorf("subscribers = %d, want 0", s.Subscribers())
	}
}

func TestSimulated_InterruptionBlocksStartUntilEnded(t *testing.T) {
	s := configuredSim(t, testBackDual)
	s.StartRunning()

	if err := s.Inject(Event{Kind: EventInterrupted, Reason: ReasonVideoDeviceInUseByAnotherClient}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("still running after interruption")
	}
	s.StartRunning()
	if s.IsRunning() {
		t.Fatal("started while interrupted")
	}

	if err := s.Inject(Event{Kind: EventInterruptionEnded}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !s.IsRunning() {
		t.Error("session did not resume after interruption ended")
	}
}

func TestSimulated_InjectRejectsInvalidEvent(t *testing.T) {
	s := NewSimulated(SimOptions{})
	if err := s.Inject(Event{Kind: EventInterrupted, Reason: "bogus"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestSimulated_CapturePhotoDeliversInOrder(t *testing.T) {
	s := configuredSim(t, testBackDual)
	s.SetPhotoDelivery(PhotoDelivery{LivePhoto: true, DepthDelivery: true, PortraitMatte: true})
	s.StartRunning()

	settings := NewPhotoSettings(CodecJPEG)
	settings.LivePhotoMoviePath = filepath.Join(t.TempDir(), "live.mov")
	settings.MatteDelivery = true
	d := newRecordingDelegate()
	s.CapturePhoto(settings, d)
	d.wait(t)

	want := []string{"begin", "capture", "photo", "live-recorded", "live-processed", "finish"}
	if len(d.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", d.calls, want)
	}
	for i := range want {
		if d.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", d.calls, want)
		}
	}
	if len(d.photo.Data) == 0 {
		t.Error("photo data empty")
	}
	if len(d.photo.Matte) == 0 {
		t.Error("matte not generated")
	}
	if !d.resolved.HasLivePhotoMovie() {
		t.Error("resolved settings lack live photo dimensions")
	}
	if _, err := os.Stat(settings.LivePhotoMoviePath); err != nil {
		t.Errorf("companion movie not written: %v", err)
	}
}

func TestSimulated_CaptureWhileStoppedFails(t *testing.T) {
	s := configuredSim(t, testBackDual)
	d := newRecordingDelegate()
	s.CapturePhoto(NewPhotoSettings(CodecJPEG), d)
	d.wait(t)
	if !errors.Is(d.finalErr, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", d.finalErr)
	}
}

func TestSimulated_FailNextCapture(t *testing.T) {
	s := configuredSim(t, testBackDual)
	s.StartRunning()
	boom := errors.New("sensor glitch")
	s.FailNextCapture(boom)

	d := newRecordingDelegate()
	s.CapturePhoto(NewPhotoSettings(CodecJPEG), d)
	d.wait(t)
	if !errors.Is(d.finalErr, boom) {
		t.Errorf("err = %v, want %v", d.finalErr, boom)
	}
}

func TestSimulated_RecordingWritesFile(t *testing.T) {
	s := configuredSim(t, testBackDual)
	_ = s.AddOutput(OutputMovie)
	s.StartRunning()

	path := filepath.Join(t.TempDir(), "clip.mov")
	d := newRecordingDelegate()
	s.StartRecording(path, CodecH264, d)
	time.Sleep(20 * time.Millisecond)
	if !s.IsRecording() {
		t.Fatal("not recording")
	}
	s.StopRecording()
	d.wait(t)

	if d.finalErr != nil {
		t.Errorf("finish err = %v", d.finalErr)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("recording missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("recording is empty")
	}
}

func TestSimulated_StopRunningFinishesRecordingSuccessfully(t *testing.T) {
	s := configuredSim(t, testBackDual)
	_ = s.AddOutput(OutputMovie)
	s.StartRunning()

	d := newRecordingDelegate()
	s.StartRecording(filepath.Join(t.TempDir(), "clip.mov"), CodecH264, d)
	s.StopRunning()
	d.wait(t)

	if d.finalErr == nil {
		t.Fatal("expected a recording error")
	}
	if !RecordingFinishedSuccessfully(d.finalErr) {
		t.Errorf("RecordingFinishedSuccessfully(%v) = false, want true", d.finalErr)
	}
}

func TestSimulated_RecordingWithoutMovieOutputFails(t *testing.T) {
	s := configuredSim(t, testBackDual)
	s.StartRunning()
	d := newRecordingDelegate()
	s.StartRecording(filepath.Join(t.TempDir(), "clip.mov"), CodecH264, d)
	d.wait(t)
	if RecordingFinishedSuccessfully(d.finalErr) {
		t.Error("recording without movie output reported success")
	}
}

func TestSimulated_LockDevice(t *testing.T) {
	s := configuredSim(t, testBackDual)
	cfg, err := s.LockDevice(testBackDual)
	if err != nil {
		t.Fatalf("LockDevice: %v", err)
	}
	if _, err := s.LockDevice(testBackDual); !errors.Is(err, ErrLocked) {
		t.Errorf("second lock err = %v, want ErrLocked", err)
	}
	p := geometry.Point{X: 0.25, Y: 0.75}
	cfg.SetFocus(p, FocusAuto)
	cfg.SetExposure(p, ExposureAuto)
	cfg.SetSubjectAreaMonitoring(true)
	cfg.SetFrameRateRange(15, 20)
	cfg.Unlock()
	cfg.Unlock()

	st := s.Device(testBackDual.ID)
	if st.FocusPoint != p || st.FocusMode != FocusAuto {
		t.Errorf("focus = %v/%s", st.FocusPoint, st.FocusMode)
	}
	if st.ExposurePoint != p || st.ExposureMode != ExposureAuto {
		t.Errorf("exposure = %v/%s", st.ExposurePoint, st.ExposureMode)
	}
	if !st.SubjectMonitoring || st.MinFPS != 15 || st.MaxFPS != 20 {
		t.Errorf("state = %+v", st)
	}
	if _, err := s.LockDevice(testBackDual); err != nil {
		t.Errorf("lock after unlock: %v", err)
	}
}

func TestSimulated_Stabilization(t *testing.T) {
	s := configuredSim(t, testFrontWide)
	_ = s.AddOutput(OutputMovie)
	if s.SetStabilization(StabilizationAuto) {
		t.Error("stabilization applied on a device without support")
	}

	s = configuredSim(t, testBackDual)
	if s.SetStabilization(StabilizationAuto) {
		t.Error("stabilization applied without a movie output")
	}
	_ = s.AddOutput(OutputMovie)
	if !s.SetStabilization(StabilizationAuto) || s.Stabilization() != StabilizationAuto {
		t.Error("stabilization not applied")
	}
}
