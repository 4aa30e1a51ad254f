package session

import (
	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
)

// addObservers subscribes to session notifications once. Runs on sessionQ.
func (c *Controller) addObservers() {
	if c.unsubscribe != nil {
		return
	}
	events, cancel := c.cam.Subscribe()
	c.unsubscribe = cancel
	c.observerGen++
	c.registrations.Add(1)
	debug.Verbose("observers registered (generation %d)", c.observerGen)
	go c.pump(events, c.observerGen)
}

// removeObservers undoes addObservers. Runs on sessionQ.
func (c *Controller) removeObservers() {
	if c.unsubscribe == nil {
		return
	}
	c.unsubscribe()
	c.unsubscribe = nil
	c.unregistrations.Add(1)
	debug.Verbose("observers unregistered (generation %d)", c.observerGen)
}

// pump forwards events until the subscription is cancelled.
func (c *Controller) pump(events <-chan camera.Event, gen int) {
	for e := range events {
		debug.Trace("session event %s", e)
		c.sessionQ.Async(func() {
			if c.unsubscribe == nil || c.observerGen != gen {
				return
			}
			c.handle(e)
		})
	}
}

// handle dispatches one event. Runs on sessionQ.
func (c *Controller) handle(e camera.Event) {
	switch e.Kind {
	case camera.EventRunningChanged:
		// The event may be stale by now; derive from the current value.
		c.runningChanged(c.cam.IsRunning())
	case camera.EventRuntimeError:
		c.runtimeError(e)
	case camera.EventInterrupted:
		c.interrupted(e)
	case camera.EventInterruptionEnded:
		debug.Live("Capture session interruption ended")
		c.interruption = nil
		switch {
		case c.cam.IsRunning():
			c.setState(Running)
		case c.state == Interrupted:
			c.setState(Stopped)
		}
		c.ui(func() {
			c.view.Indicators.ResumeVisible = false
			c.view.Indicators.CameraUnavailable = false
		})
	case camera.EventSubjectAreaChanged:
		if c.hasVideoInput && e.DeviceID == c.videoInput.ID {
			c.focus(camera.FocusContinuousAuto, camera.ExposureContinuousAuto, geometry.Center, false)
		}
	case camera.EventSystemPressure:
		c.systemPressure(e.Pressure)
	}
}

// runningChanged derives control availability from the running flag and the
// photo output capabilities.
func (c *Controller) runningChanged(running bool) {
	switch {
	case running:
		c.interruption = nil
		c.setState(Running)
	case c.state == Running:
		c.setState(Stopped)
	}

	sup := c.cam.PhotoSupport()
	del := c.cam.PhotoDelivery()
	hasMovie := c.cam.HasOutput(camera.OutputMovie)
	multiCamera := c.discovery.UniquePositions() > 1

	c.ui(func() {
		ctl := &c.view.Controls
		ctl.Camera.Enabled = running && multiCamera
		ctl.Record.Enabled = running && hasMovie
		ctl.Photo.Enabled = running
		ctl.CaptureMode.Enabled = running
		ctl.LivePhoto.Enabled = running && del.LivePhoto
		ctl.LivePhoto.Hidden = !(running && sup.LivePhoto)
		ctl.Depth.Enabled = running && del.DepthDelivery
		ctl.Depth.Hidden = !(running && sup.DepthDelivery)
		ctl.Matte.Enabled = running && del.PortraitMatte
		ctl.Matte.Hidden = !(running && sup.PortraitMatte)
	})
}

func (c *Controller) runtimeError(e camera.Event) {
	debug.Errorf("Capture session runtime error: %s", e.Code)
	c.interruption = interruptionFor(e)
	if c.state == Running {
		c.setState(Interrupted)
	}

	// A media services reset is transient: restart if we were running,
	// otherwise let the user decide.
	if e.Code == camera.ErrorMediaServicesReset && c.isSessionRunning {
		c.cam.StartRunning()
		c.isSessionRunning = c.cam.IsRunning()
		if c.isSessionRunning {
			c.interruption = nil
			c.setState(Running)
		}
		return
	}
	c.ui(func() { c.view.Indicators.ResumeVisible = true })
}

func (c *Controller) interrupted(e camera.Event) {
	ie := interruptionFor(e)
	debug.Interruption(ie.Reason, ie.Recoverable)
	c.interruption = ie
	if c.state == Running {
		c.setState(Interrupted)
	}

	switch e.Reason {
	case camera.ReasonAudioDeviceInUseByAnotherClient, camera.ReasonVideoDeviceInUseByAnotherClient:
		c.ui(func() { c.view.Indicators.ResumeVisible = true })
	case camera.ReasonVideoDeviceNotAvailableWithMultipleApps:
		c.ui(func() { c.view.Indicators.CameraUnavailable = true })
	case camera.ReasonVideoDeviceNotAvailableDueToSystemPressure:
		debug.Live("Session stopped running due to shutdown system pressure level.")
	}
}

// systemPressure throttles the frame rate while the device is hot, unless a
// recording is in progress.
func (c *Controller) systemPressure(level camera.PressureLevel) {
	switch {
	case level.Elevated():
		if c.rec != nil || c.cam.IsRecording() {
			debug.Live("System pressure %s while recording, frame rate unchanged", level)
			return
		}
		if !c.hasVideoInput {
			return
		}
		cfg, err := c.cam.LockDevice(c.videoInput)
		if err != nil {
			debug.Errorf("Could not lock device for configuration: %v", err)
			return
		}
		cfg.SetFrameRateRange(c.minFPS, c.maxFPS)
		cfg.Unlock()
		debug.Live("WARNING: Reached elevated system pressure level: %s. Throttling frame rate.", level)
	case level == camera.PressureShutdown:
		debug.Live("Session stopped running due to shutdown system pressure level.")
	}
}

// ResumeInterruptedSession tries to restart the session after an
// interruption the user can end.
func (c *Controller) ResumeInterruptedSession() {
	c.sessionQ.Async(func() {
		c.cam.StartRunning()
		c.isSessionRunning = c.cam.IsRunning()
		if !c.isSessionRunning {
			c.advise(display.Advisory{
				Kind:    display.AdvisoryUnableToResume,
				Title:   "RecPause",
				Message: "Unable to resume",
			})
			return
		}
		c.interruption = nil
		c.setState(Running)
		c.ui(func() { c.view.Indicators.ResumeVisible = false })
	})
}
