package session

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/logic/capture"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

var _ display.Intents = (*Controller)(nil)

// SetCaptureMode switches between still and movie capture. The mode control
// stays disabled until the switch is committed, so switches never overlap.
func (c *Controller) SetCaptureMode(m display.Mode) {
	c.mainQ.Async(func() {
		ctl := &c.view.Controls
		if !ctl.CaptureMode.Enabled || c.view.Mode == m {
			debug.Trace("capture mode %s ignored", m)
			return
		}
		ctl.CaptureMode.Enabled = false
		switch m {
		case display.ModePhoto:
			ctl.Record.Enabled = false
			c.render()
			c.sessionQ.Async(c.switchToPhoto)
		case display.ModeMovie:
			ctl.LivePhoto.Hidden = true
			ctl.Depth.Hidden = true
			ctl.Matte.Hidden = true
			c.render()
			c.sessionQ.Async(c.switchToMovie)
		}
	})
}

func (c *Controller) switchToPhoto() {
	c.cam.BeginConfiguration()
	c.cam.RemoveOutput(camera.OutputMovie)
	c.cam.SetPreset(camera.PresetPhoto)
	c.ui(func() { c.view.Controls.CaptureMode.Enabled = true })

	// Re-derived from the current device; it may have changed in movie mode.
	sup := c.cam.PhotoSupport()
	del := c.cam.PhotoDelivery()
	del.LivePhoto = sup.LivePhoto
	del.DepthDelivery = sup.DepthDelivery
	del.PortraitMatte = sup.PortraitMatte
	c.cam.SetPhotoDelivery(del)
	c.cam.CommitConfiguration()
	c.ui(func() {
		ctl := &c.view.Controls
		ctl.LivePhoto = display.Control{Enabled: sup.LivePhoto, Hidden: !sup.LivePhoto}
		ctl.Depth = display.Control{Enabled: sup.DepthDelivery, Hidden: !sup.DepthDelivery}
		ctl.Matte = display.Control{Enabled: sup.PortraitMatte, Hidden: !sup.PortraitMatte}
	})

	c.mode = display.ModePhoto
	c.publishModes()
}

func (c *Controller) switchToMovie() {
	if !c.cam.CanAddOutput(camera.OutputMovie) {
		debug.Errorf("Could not add movie output to the session")
		c.runningChanged(c.cam.IsRunning())
		return
	}
	c.cam.BeginConfiguration()
	if err := c.cam.AddOutput(camera.OutputMovie); err != nil {
		c.cam.CommitConfiguration()
		debug.Errorf("Could not add movie output to the session: %v", err)
		c.runningChanged(c.cam.IsRunning())
		return
	}
	c.cam.SetPreset(camera.PresetHigh)
	if !c.cam.SetStabilization(camera.StabilizationAuto) {
		debug.Verbose("video stabilization not supported by %s", c.videoInput.ID)
	}
	c.cam.CommitConfiguration()

	c.mode = display.ModeMovie
	c.publishModes()
	c.ui(func() {
		c.view.Controls.Record.Enabled = true
		c.view.Controls.CaptureMode.Enabled = true
	})
}

// ChangeCamera cycles between the back and front cameras.
func (c *Controller) ChangeCamera() {
	c.mainQ.Async(func() {
		ctl := &c.view.Controls
		if !ctl.Camera.Enabled {
			debug.Trace("change camera ignored")
			return
		}
		ctl.Camera.Enabled = false
		ctl.Record.Enabled = false
		ctl.Photo.Enabled = false
		ctl.LivePhoto.Enabled = false
		ctl.CaptureMode.Enabled = false
		c.render()
		c.sessionQ.Async(c.switchCamera)
	})
}

func (c *Controller) switchCamera() {
	current := c.videoInput
	var (
		pos camera.Position
		typ camera.DeviceType
	)
	switch current.Position {
	case camera.PositionBack:
		pos, typ = camera.PositionFront, camera.DeviceTrueDepthCamera
	default:
		pos, typ = camera.PositionBack, camera.DeviceDualCamera
	}

	if next, ok := camera.FindPreferred(c.discovery.Devices(), pos, typ); ok {
		c.cam.BeginConfiguration()
		// Remove the existing input first; the session can't hold both.
		c.cam.RemoveInput(current)
		if c.cam.CanAddInput(next) && c.cam.AddInput(next) == nil {
			c.videoInput = next
			c.publishCamera(next)
			debug.Value("camera", next)
		} else {
			c.fail(fmt.Errorf("%w: could not add %s", ErrDeviceUnavailable, next.ID))
			if err := c.cam.AddInput(current); err != nil {
				debug.Errorf("Could not restore video device input: %v", err)
			}
		}
		if c.cam.HasOutput(camera.OutputMovie) {
			c.cam.SetStabilization(camera.StabilizationAuto)
		}
		// Delivery is reset when the input changes.
		sup := c.cam.PhotoSupport()
		c.cam.SetPhotoDelivery(camera.PhotoDelivery{
			HighResolution: true,
			LivePhoto:      sup.LivePhoto,
			DepthDelivery:  sup.DepthDelivery,
			PortraitMatte:  sup.PortraitMatte,
		})
		c.cam.CommitConfiguration()
	} else {
		c.fail(fmt.Errorf("%w: no %s camera", ErrDeviceUnavailable, pos))
	}

	sup := c.cam.PhotoSupport()
	del := c.cam.PhotoDelivery()
	hasMovie := c.cam.HasOutput(camera.OutputMovie)
	c.ui(func() {
		ctl := &c.view.Controls
		ctl.Camera.Enabled = true
		ctl.Record.Enabled = hasMovie
		ctl.Photo.Enabled = true
		ctl.LivePhoto.Enabled = true
		ctl.CaptureMode.Enabled = true
		ctl.Depth.Enabled = del.DepthDelivery
		ctl.Depth.Hidden = !sup.DepthDelivery
		ctl.Matte.Enabled = del.PortraitMatte
		ctl.Matte.Hidden = !sup.PortraitMatte
	})
}

// FocusAndExposeTap focuses and exposes at a tap on the preview and keeps
// watching the subject area.
func (c *Controller) FocusAndExposeTap(tap geometry.Point, layer geometry.Size) {
	c.mainQ.Async(func() {
		p, err := geometry.DevicePoint(tap, layer, c.orientation, c.mirrored)
		if err != nil {
			debug.Errorf("focus tap: %v", err)
			return
		}
		c.sessionQ.Async(func() {
			c.focus(camera.FocusAuto, camera.ExposureAuto, p, true)
		})
	})
}

// focus runs on sessionQ. Only the modes the device supports are applied.
func (c *Controller) focus(fm camera.FocusMode, em camera.ExposureMode, p geometry.Point, monitor bool) {
	if !c.hasVideoInput {
		return
	}
	dev := c.videoInput
	cfg, err := c.cam.LockDevice(dev)
	if err != nil {
		debug.Errorf("Could not lock device for configuration: %v", err)
		return
	}
	if dev.Caps.SupportsFocus(fm) {
		cfg.SetFocus(p, fm)
	}
	if dev.Caps.SupportsExposure(em) {
		cfg.SetExposure(p, em)
	}
	cfg.SetSubjectAreaMonitoring(monitor)
	cfg.Unlock()
	debug.Trace("focus %s/%s at (%.3f, %.3f) monitor=%v", fm, em, p.X, p.Y, monitor)
}

// CapturePhoto takes a still with the current modes.
func (c *Controller) CapturePhoto() {
	c.mainQ.Async(func() {
		if !c.view.Controls.Photo.Enabled {
			debug.Trace("capture photo ignored")
			return
		}
		o := c.orientation
		c.sessionQ.Async(func() { c.capturePhoto(o) })
	})
}

func (c *Controller) capturePhoto(o geometry.VideoOrientation) {
	c.cam.SetVideoOrientation(camera.OutputPhoto, o)

	sup := c.cam.PhotoSupport()
	del := c.cam.PhotoDelivery()
	codec := camera.CodecJPEG
	if camera.ContainsCodec(sup.Codecs, camera.CodecHEVC) {
		codec = camera.CodecHEVC
	}
	s := camera.NewPhotoSettings(codec)
	if c.hasVideoInput && c.videoInput.Caps.Flash {
		s.Flash = camera.FlashAuto
	}
	s.HighResolution = true
	s.Orientation = o
	if c.modes.LivePhoto && sup.LivePhoto && del.LivePhoto {
		s.LivePhotoMoviePath = filepath.Join(c.tempDir, uuid.NewString()+".mov")
	}
	s.DepthDelivery = c.modes.Depth && del.DepthDelivery
	s.MatteDelivery = c.modes.Matte && del.PortraitMatte

	c.tracker.Begin(s, capture.Handlers{
		WillCapture: func() {
			c.ui(func() { c.view.Indicators.PreviewFlash++ })
		},
		LivePhotoCapturing: func(capturing bool) {
			c.sessionQ.Async(func() {
				n, err := c.tracker.LiveCaptureChanged(capturing)
				if err != nil {
					debug.Errorf("Error: In progress live photo capture count is less than 0.")
				}
				c.ui(func() { c.view.Indicators.CapturingLivePhoto = n > 0 })
			})
		},
		Finished: func(r capture.Result) {
			c.sessionQ.Async(func() { c.captureFinished(r) })
		},
	})
}

func (c *Controller) captureFinished(r capture.Result) {
	switch {
	case r.Err != nil:
		c.fail(fmt.Errorf("%w: %s: %w", ErrCaptureFailed, r.ID, r.Err))
	case r.PersistErr != nil:
		c.fail(fmt.Errorf("%w: %s: %w", ErrPersistenceFailed, r.ID, r.PersistErr))
	case r.Denied:
		debug.Live("Photo %s not saved, library access denied", r.ID)
	case r.Saved:
		debug.Request(r.ID, "saved")
	}
}

// ToggleLivePhoto flips the live photo mode.
func (c *Controller) ToggleLivePhoto() {
	c.toggle(func(ctl display.Controls) bool { return ctl.LivePhoto.Enabled }, func(m Modes) Modes {
		m.LivePhoto = !m.LivePhoto
		return m
	})
}

// ToggleDepth flips depth delivery; turning it off also turns the matte off.
func (c *Controller) ToggleDepth() {
	c.toggle(func(ctl display.Controls) bool { return ctl.Depth.Enabled }, toggleDepth)
}

// ToggleMatte flips the portrait matte. It only turns on while depth is on.
func (c *Controller) ToggleMatte() {
	c.toggle(func(ctl display.Controls) bool { return ctl.Matte.Enabled }, toggleMatte)
}

func (c *Controller) toggle(enabled func(display.Controls) bool, apply func(Modes) Modes) {
	c.mainQ.Async(func() {
		if !enabled(c.view.Controls) {
			debug.Trace("toggle ignored")
			return
		}
		c.sessionQ.Async(func() {
			c.modes = apply(c.modes)
			debug.Value("modes", c.modes)
			c.publishModes()
		})
	})
}

// DeviceRotated follows the device orientation, except while recording.
func (c *Controller) DeviceRotated(o geometry.DeviceOrientation) {
	c.mainQ.Async(func() {
		if c.view.Recording {
			return
		}
		vo, ok := geometry.FromDeviceOrientation(o)
		if !ok {
			return
		}
		c.orientation = vo
		c.view.Orientation = vo
		c.render()
	})
}
