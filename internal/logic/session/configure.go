package session

import (
	"fmt"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
	"github.com/cjeanneret/RecPause/internal/permission"
)

// configure builds the photo pipeline. Runs on sessionQ.
func (c *Controller) configure() {
	if c.setup != SetupSuccess {
		c.fail(ErrPermissionDenied)
		c.setState(NotAuthorized)
		return
	}
	c.setState(Configuring)
	debug.Section("Session configuration")

	if err := c.configurePipeline(); err != nil {
		c.setup = SetupConfigurationFailed
		c.fail(err)
		c.setState(ConfigurationFailed)
		return
	}
	c.setState(Ready)
}

func (c *Controller) configurePipeline() error {
	c.cam.BeginConfiguration()
	defer c.cam.CommitConfiguration()

	// Live photo capture is not supported with the low quality presets.
	c.cam.SetPreset(camera.PresetPhoto)

	debug.Step(1, "video input")
	dev, ok := c.defaultVideoDevice()
	if !ok {
		return fmt.Errorf("%w: %w: default video device is unavailable", ErrConfigurationFailed, ErrDeviceUnavailable)
	}
	if !c.cam.CanAddInput(dev) {
		return fmt.Errorf("%w: couldn't add video device input %s to the session", ErrConfigurationFailed, dev.ID)
	}
	if err := c.cam.AddInput(dev); err != nil {
		return fmt.Errorf("%w: couldn't create video device input: %w", ErrConfigurationFailed, err)
	}
	c.videoInput, c.hasVideoInput = dev, true
	c.publishCamera(dev)

	initial := geometry.InitialOrientation(c.ifaceOrientation)
	c.ui(func() {
		c.orientation = initial
		c.view.Orientation = initial
	})

	debug.Step(2, "audio input")
	c.configureAudio()

	debug.Step(3, "photo output")
	if !c.cam.CanAddOutput(camera.OutputPhoto) {
		return fmt.Errorf("%w: could not add photo output to the session", ErrConfigurationFailed)
	}
	if err := c.cam.AddOutput(camera.OutputPhoto); err != nil {
		return fmt.Errorf("%w: add photo output: %w", ErrConfigurationFailed, err)
	}
	sup := c.cam.PhotoSupport()
	c.cam.SetPhotoDelivery(camera.PhotoDelivery{
		HighResolution: true,
		LivePhoto:      sup.LivePhoto,
		DepthDelivery:  sup.DepthDelivery,
		PortraitMatte:  sup.PortraitMatte,
	})
	c.modes = NormalizeModes(Modes{
		LivePhoto: sup.LivePhoto,
		Depth:     sup.DepthDelivery,
		Matte:     sup.PortraitMatte,
	})
	c.mode = display.ModePhoto
	c.publishModes()
	debug.PrintStruct("photo support", sup)
	return nil
}

// defaultVideoDevice prefers the dual camera, then the back wide angle, then
// the front wide angle, which is all that is left when the back camera is
// broken.
func (c *Controller) defaultVideoDevice() (camera.Device, bool) {
	if d, ok := c.discovery.Default(camera.DeviceDualCamera, camera.PositionBack); ok {
		return d, true
	}
	if d, ok := c.discovery.Default(camera.DeviceWideAngleCamera, camera.PositionBack); ok {
		return d, true
	}
	return c.discovery.Default(camera.DeviceWideAngleCamera, camera.PositionFront)
}

// configureAudio adds the microphone. Audio is optional; failures are only
// logged.
func (c *Controller) configureAudio() {
	switch c.auth.Status(permission.Microphone) {
	case permission.Denied, permission.Restricted:
		debug.Live("Microphone access denied, recording without audio")
		return
	case permission.NotDetermined:
		granted, err := c.auth.Request(c.ctx, permission.Microphone)
		if err != nil {
			debug.Errorf("microphone permission request: %v", err)
		}
		if !granted {
			debug.Live("Microphone access denied, recording without audio")
			return
		}
	}

	mic, ok := c.discovery.DefaultAudio()
	if !ok {
		debug.Errorf("Could not create audio device input: %v", camera.ErrNoDevice)
		return
	}
	if !c.cam.CanAddInput(mic) {
		debug.Errorf("Could not add audio device input to the session")
		return
	}
	if err := c.cam.AddInput(mic); err != nil {
		debug.Errorf("Could not create audio device input: %v", err)
	}
}

// publishCamera mirrors the active device into the display state.
func (c *Controller) publishCamera(dev camera.Device) {
	name := dev.ID
	mirrored := dev.Position == camera.PositionFront
	c.ui(func() {
		c.view.Camera = name
		c.mirrored = mirrored
	})
}

// publishModes mirrors the mode toggles into the button icons.
func (c *Controller) publishModes() {
	m := c.modes
	mode := c.mode
	c.ui(func() {
		c.view.Mode = mode
		c.view.Icons.LivePhoto = m.LivePhoto
		c.view.Icons.Depth = m.Depth
		c.view.Icons.Matte = m.Matte
	})
}
