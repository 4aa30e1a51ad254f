package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/gpio"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

type recordingIntents struct {
	mu    sync.Mutex
	calls []string
	tap   geometry.Point
}

func (r *recordingIntents) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recordingIntents) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingIntents) SetCaptureMode(display.Mode) { r.add("mode") }
func (r *recordingIntents) ChangeCamera()               { r.add("camera") }
func (r *recordingIntents) FocusAndExposeTap(tap geometry.Point, _ geometry.Size) {
	r.tap = tap
	r.add("focus")
}
func (r *recordingIntents) CapturePhoto()                            { r.add("photo") }
func (r *recordingIntents) ToggleRecording()                         { r.add("record") }
func (r *recordingIntents) ResumeInterruptedSession()                { r.add("resume") }
func (r *recordingIntents) ToggleLivePhoto()                         { r.add("live") }
func (r *recordingIntents) ToggleDepth()                             { r.add("depth") }
func (r *recordingIntents) ToggleMatte()                             { r.add("matte") }
func (r *recordingIntents) DeviceRotated(geometry.DeviceOrientation) { r.add("rotate") }

const (
	focusPin   = 23
	shutterPin = 24
)

func newRemote(t *testing.T) (*Remote, *gpio.MockDriver, *recordingIntents) {
	t.Helper()
	drv := gpio.NewMockDriver()
	in := &recordingIntents{}
	r, err := New(drv, Config{FocusPin: focusPin, ShutterPin: shutterPin}, in)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, drv, in
}

func TestNew_InvalidPins(t *testing.T) {
	cases := []Config{
		{FocusPin: 0, ShutterPin: 24},
		{FocusPin: 23, ShutterPin: 0},
		{FocusPin: 23, ShutterPin: 23},
	}
	for _, cfg := range cases {
		if _, err := New(gpio.NewMockDriver(), cfg, &recordingIntents{}); err == nil {
			t.Errorf("New(%+v) should fail", cfg)
		}
	}
}

func TestRemote_IdleDoesNothing(t *testing.T) {
	r, _, in := newRemote(t)
	for i := 0; i < 3; i++ {
		if err := r.poll(); err != nil {
			t.Fatal(err)
		}
	}
	if calls := in.snapshot(); len(calls) != 0 {
		t.Errorf("calls = %v", calls)
	}
}

func TestRemote_FocusFiresOncePerPress(t *testing.T) {
	r, drv, in := newRemote(t)

	drv.Set(focusPin, gpio.Low)
	r.poll()
	r.poll() // held
	drv.Set(focusPin, gpio.High)
	r.poll()
	drv.Set(focusPin, gpio.Low)
	r.poll()

	calls := in.snapshot()
	if len(calls) != 2 || calls[0] != "focus" || calls[1] != "focus" {
		t.Errorf("calls = %v, want two focus", calls)
	}
	if in.tap != (geometry.Point{X: 0.5, Y: 0.5}) {
		t.Errorf("tap = %+v", in.tap)
	}
}

func TestRemote_ShutterFollowsMode(t *testing.T) {
	r, drv, in := newRemote(t)

	press := func() {
		drv.Set(shutterPin, gpio.Low)
		r.poll()
		drv.Set(shutterPin, gpio.High)
		r.poll()
	}

	press()
	r.Render(display.State{Mode: display.ModeMovie})
	press()
	press()
	r.Render(display.State{Mode: display.ModePhoto})
	press()

	want := []string{"photo", "record", "record", "photo"}
	calls := in.snapshot()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}
}

type failingDriver struct{ *gpio.MockDriver }

func (failingDriver) ReadPin(int) (gpio.Level, error) { return gpio.High, errors.New("bus error") }

func TestRemote_ReadError(t *testing.T) {
	r, err := New(failingDriver{gpio.NewMockDriver()}, Config{FocusPin: focusPin, ShutterPin: shutterPin}, &recordingIntents{})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.poll(); err == nil {
		t.Error("poll should report the read error")
	}
}

func TestRemote_RunPollsUntilCancelled(t *testing.T) {
	drv := gpio.NewMockDriver()
	in := &recordingIntents{}
	r, err := New(drv, Config{FocusPin: focusPin, ShutterPin: shutterPin, Poll: time.Millisecond}, in)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	drv.Set(shutterPin, gpio.Low)
	deadline := time.Now().Add(2 * time.Second)
	for len(in.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
	if calls := in.snapshot(); len(calls) != 1 || calls[0] != "photo" {
		t.Errorf("calls = %v, want [photo]", calls)
	}
}
