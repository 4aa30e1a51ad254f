// Package remote reads a two-line wired remote (the FOCUS/SHUTTER pair of a
// camera release cable) and turns presses into user intents.
//
// Both lines are active LOW: a press shorts the line to ground against the
// internal pull-up.
//
//	FOCUS pressed   -> focus and expose at the centre of the frame
//	SHUTTER pressed -> photo mode: capture a photo
//	                   movie mode: start or stop recording
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/gpio"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

// Config holds the remote's pins and poll period.
type Config struct {
	FocusPin   int
	ShutterPin int
	Poll       time.Duration // 0 defaults to 20ms
}

// Remote polls the lines. It is also a display.Surface so that it knows
// the current capture mode.
type Remote struct {
	gpio    gpio.Driver
	cfg     Config
	intents display.Intents

	mu   sync.Mutex
	mode display.Mode

	focusDown   bool
	shutterDown bool
}

// New configures both pins as pull-up inputs.
func New(g gpio.Driver, cfg Config, intents display.Intents) (*Remote, error) {
	if cfg.FocusPin <= 0 || cfg.ShutterPin <= 0 {
		return nil, fmt.Errorf("remote: focus and shutter pins are required")
	}
	if cfg.FocusPin == cfg.ShutterPin {
		return nil, fmt.Errorf("remote: focus and shutter must use different pins")
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 20 * time.Millisecond
	}
	for _, pin := range []int{cfg.FocusPin, cfg.ShutterPin} {
		if err := g.SetupPin(pin, gpio.InputPullUp); err != nil {
			return nil, fmt.Errorf("remote: setup pin %d: %w", pin, err)
		}
	}
	return &Remote{gpio: g, cfg: cfg, intents: intents, mode: display.ModePhoto}, nil
}

// Render tracks the capture mode.
func (r *Remote) Render(s display.State) {
	r.mu.Lock()
	r.mode = s.Mode
	r.mu.Unlock()
}

// Advise is a no-op; the remote has no output.
func (r *Remote) Advise(display.Advisory) {}

// Run polls until ctx is cancelled.
func (r *Remote) Run(ctx context.Context) error {
	debug.Info("Remote listening (focus=%d, shutter=%d, poll=%v)", r.cfg.FocusPin, r.cfg.ShutterPin, r.cfg.Poll)
	ticker := time.NewTicker(r.cfg.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.poll(); err != nil {
				debug.Error(err)
			}
		}
	}
}

// poll reads both lines once and fires on the press edge.
func (r *Remote) poll() error {
	focus, err := r.pressed(r.cfg.FocusPin)
	if err != nil {
		return err
	}
	shutter, err := r.pressed(r.cfg.ShutterPin)
	if err != nil {
		return err
	}

	if focus && !r.focusDown {
		debug.Live("Remote: focus")
		r.intents.FocusAndExposeTap(geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 1, Height: 1})
	}
	if shutter && !r.shutterDown {
		r.mu.Lock()
		mode := r.mode
		r.mu.Unlock()
		if mode == display.ModeMovie {
			debug.Live("Remote: shutter (record)")
			r.intents.ToggleRecording()
		} else {
			debug.Live("Remote: shutter (photo)")
			r.intents.CapturePhoto()
		}
	}
	r.focusDown, r.shutterDown = focus, shutter
	return nil
}

func (r *Remote) pressed(pin int) (bool, error) {
	level, err := r.gpio.ReadPin(pin)
	if err != nil {
		return false, fmt.Errorf("remote: read pin %d: %w", pin, err)
	}
	return level == gpio.Low, nil
}
