// Package session is the capture session controller.
//
// The controller owns two serialized contexts. The session queue is the only
// place the camera.Session is configured, started, stopped or asked to
// capture; the UI queue is the only place display state is touched, and every
// Surface call happens there. Work hops between the two with Async, never by
// sharing fields.
//
// Lifecycle:
//
//	Uninitialized -> Authorizing -> Configuring -> Ready | NotAuthorized | ConfigurationFailed
//	Ready -> Running <-> Stopped
//	Running -> Interrupted -> Running
package session

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/logic/capture"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
	"github.com/cjeanneret/RecPause/internal/logic/queue"
	"github.com/cjeanneret/RecPause/internal/media"
	"github.com/cjeanneret/RecPause/internal/permission"
)

// Default frame rate bounds applied under elevated system pressure.
const (
	DefaultThrottleMinFPS = 15
	DefaultThrottleMaxFPS = 20
)

// Options wire a Controller to its collaborators. Session, Discovery,
// Authority, Library and Surface are required.
type Options struct {
	Session   camera.Session
	Discovery camera.Discovery
	Authority permission.Authority
	Library   media.Library
	Surface   display.Surface

	// Background defaults to a ProcessBackgrounder.
	Background Backgrounder
	// TempDir receives live photo companions and recordings in progress.
	TempDir string
	// Interface is the layout orientation at startup.
	Interface geometry.InterfaceOrientation

	ThrottleMinFPS int
	ThrottleMaxFPS int
}

// Status is a snapshot of the session-side state.
type Status struct {
	State        State              `json:"state"`
	Setup        SetupResult        `json:"setup"`
	Mode         display.Mode       `json:"mode"`
	Modes        Modes              `json:"modes"`
	Camera       string             `json:"camera,omitempty"`
	Position     string             `json:"position,omitempty"`
	Running      bool               `json:"running"` // as reported by the backend
	Recording    bool               `json:"recording"`
	Interruption *InterruptionError `json:"interruption,omitempty"`
	LastError    string             `json:"last_error,omitempty"`
	InFlight     int                `json:"in_flight"`
	LiveCaptures int                `json:"live_captures"`
}

// Controller drives one capture session. It implements display.Intents.
type Controller struct {
	cam       camera.Session
	discovery camera.Discovery
	auth      permission.Authority
	lib       media.Library
	surface   display.Surface
	bg        Backgrounder
	tracker   *capture.Tracker

	tempDir          string
	ifaceOrientation geometry.InterfaceOrientation
	minFPS, maxFPS   int

	ctx    context.Context
	cancel context.CancelFunc

	sessionQ *queue.Queue
	mainQ    *queue.Queue

	// Owned by sessionQ.
	setup            SetupResult
	state            State
	videoInput       camera.Device
	hasVideoInput    bool
	mode             display.Mode
	modes            Modes
	isSessionRunning bool // last value acted on; gates the restart after a media reset
	rec              *recording
	interruption     *InterruptionError
	lastErr          error
	unsubscribe      func()
	observerGen      int

	// Owned by mainQ.
	view        display.State
	orientation geometry.VideoOrientation
	mirrored    bool

	registrations   atomic.Int64
	unregistrations atomic.Int64
}

// New returns a controller in the Uninitialized state. Call Load to start
// authorization and configuration.
func New(opts Options) *Controller {
	bg := opts.Background
	if bg == nil {
		bg = NewProcessBackgrounder()
	}
	minFPS, maxFPS := opts.ThrottleMinFPS, opts.ThrottleMaxFPS
	if minFPS <= 0 || maxFPS < minFPS {
		minFPS, maxFPS = DefaultThrottleMinFPS, DefaultThrottleMaxFPS
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		cam:              opts.Session,
		discovery:        opts.Discovery,
		auth:             opts.Authority,
		lib:              opts.Library,
		surface:          opts.Surface,
		bg:               bg,
		tracker:          capture.NewTracker(opts.Session, opts.Authority, opts.Library),
		tempDir:          tempDir,
		ifaceOrientation: opts.Interface,
		minFPS:           minFPS,
		maxFPS:           maxFPS,
		ctx:              ctx,
		cancel:           cancel,
		sessionQ:         queue.New("session"),
		mainQ:            queue.New("main"),
		setup:            SetupSuccess,
		state:            Uninitialized,
		mode:             display.ModePhoto,
	}
	c.view = display.State{
		Session:     Uninitialized.String(),
		Mode:        display.ModePhoto,
		Orientation: geometry.Portrait,
		Icons:       display.Icons{Record: display.RecordIconVideo},
	}
	return c
}

// Load disables the controls, resolves camera authorization and queues the
// session configuration.
func (c *Controller) Load() {
	c.mainQ.Async(func() {
		c.view.Controls = display.Controls{}
		c.render()
	})

	c.sessionQ.Sync(func() { c.setState(Authorizing) })

	switch status := c.auth.Status(permission.Camera); status {
	case permission.Authorized:
	case permission.NotDetermined:
		// Hold configuration until the user answers.
		c.sessionQ.Suspend()
		go func() {
			granted, err := c.auth.Request(c.ctx, permission.Camera)
			if err != nil {
				debug.Errorf("camera permission request: %v", err)
			}
			if !granted {
				// The session queue is suspended; nothing else touches setup.
				c.setup = SetupNotAuthorized
			}
			c.sessionQ.Resume()
		}()
	default:
		debug.Value("camera permission", status)
		c.sessionQ.Async(func() { c.setup = SetupNotAuthorized })
	}

	c.sessionQ.Async(c.configure)
}

// Show starts the session when setup succeeded, or tells the user why not.
func (c *Controller) Show() {
	c.sessionQ.Async(func() {
		switch c.setup {
		case SetupSuccess:
			c.addObservers()
			c.cam.StartRunning()
			c.isSessionRunning = c.cam.IsRunning()
			if c.isSessionRunning {
				c.setState(Running)
			} else {
				c.setState(Stopped)
			}
		case SetupNotAuthorized:
			c.advise(display.Advisory{
				Kind:         display.AdvisoryNotAuthorized,
				Title:        "RecPause",
				Message:      "RecPause doesn't have permission to use the camera, please change privacy settings",
				SettingsLink: true,
			})
		case SetupConfigurationFailed:
			c.advise(display.Advisory{
				Kind:    display.AdvisoryConfigurationFailed,
				Title:   "RecPause",
				Message: "Unable to capture media",
			})
		}
	})
}

// Hide stops the session and drops the observers registered by Show.
func (c *Controller) Hide() {
	c.sessionQ.Async(func() {
		if c.setup != SetupSuccess {
			return
		}
		c.cam.StopRunning()
		c.isSessionRunning = c.cam.IsRunning()
		c.removeObservers()
		c.setState(Stopped)
	})
}

// Close stops both queues. In-flight captures still finish but their saves
// are cancelled.
func (c *Controller) Close() {
	c.sessionQ.Async(c.removeObservers)
	c.cancel()
	c.tracker.Close()
	c.sessionQ.Close()
	c.mainQ.Close()
}

// Status returns the session-side state.
func (c *Controller) Status() Status {
	var st Status
	c.sessionQ.Sync(func() {
		st = Status{
			State:        c.state,
			Setup:        c.setup,
			Mode:         c.mode,
			Modes:        c.modes,
			Running:      c.cam.IsRunning(),
			Recording:    c.rec != nil,
			Interruption: c.interruption,
			InFlight:     c.tracker.Len(),
			LiveCaptures: c.tracker.LiveCount(),
		}
		if c.hasVideoInput {
			st.Camera = c.videoInput.ID
			st.Position = c.videoInput.Position.String()
		}
		if c.lastErr != nil {
			st.LastError = c.lastErr.Error()
		}
	})
	return st
}

// Snapshot returns the display state as last rendered.
func (c *Controller) Snapshot() display.State {
	var s display.State
	c.mainQ.Sync(func() { s = c.view })
	return s
}

// ObserverCounts returns how many times event observers were registered and
// unregistered.
func (c *Controller) ObserverCounts() (registered, unregistered int64) {
	return c.registrations.Load(), c.unregistrations.Load()
}

// Tracker exposes the in-flight still captures.
func (c *Controller) Tracker() *capture.Tracker { return c.tracker }

// Settle waits for work already queued on both contexts, including work one
// context hands to the other.
func (c *Controller) Settle() {
	for i := 0; i < 3; i++ {
		c.sessionQ.Sync(func() {})
		c.mainQ.Sync(func() {})
	}
}

// setState must run on sessionQ.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	debug.Transition(c.state, s)
	c.state = s
	c.ui(func() { c.view.Session = s.String() })
}

// fail records err as the last session error. Runs on sessionQ.
func (c *Controller) fail(err error) {
	c.lastErr = err
	debug.Error(err)
}

// ui applies fn to the display state on mainQ and renders.
func (c *Controller) ui(fn func()) {
	c.mainQ.Async(func() {
		fn()
		c.render()
	})
}

func (c *Controller) advise(a display.Advisory) {
	c.mainQ.Async(func() { c.surface.Advise(a) })
}

// render must run on mainQ.
func (c *Controller) render() {
	c.surface.Render(c.view)
}
