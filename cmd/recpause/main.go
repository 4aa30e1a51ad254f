package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/cjeanneret/RecPause/internal/config"
	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/emitter"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/hw/gpio"
	"github.com/cjeanneret/RecPause/internal/hw/indicator"
	"github.com/cjeanneret/RecPause/internal/hw/remote"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
	"github.com/cjeanneret/RecPause/internal/logic/session"
	"github.com/cjeanneret/RecPause/internal/media"
	"github.com/cjeanneret/RecPause/internal/permission"
	"github.com/cjeanneret/RecPause/internal/tui"
	"github.com/cjeanneret/RecPause/internal/web"
)

// shutdownGrace bounds how long pending recordings and saves may take at exit.
const shutdownGrace = 10 * time.Second

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	useTUI := flag.Bool("tui", false, "show the terminal UI")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env failed: %v", err)
	}

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	if *debugLevel >= 0 {
		if *debugLevel > 4 {
			log.Fatalf("invalid -debug: must be between 0 and 4, got %d", *debugLevel)
		}
		cfg.Defaults.DebugLevel = *debugLevel
	}

	// Surfaces and log sinks. The terminal UI owns stdout while it runs.
	var surfaces display.Multi
	var logSinks []io.Writer
	var tuiSurface *tui.Surface
	if *useTUI {
		tuiSurface = tui.NewSurface()
		surfaces = append(surfaces, tuiSurface)
		logSinks = append(logSinks, tuiSurface)
	} else {
		logSinks = append(logSinks, os.Stdout)
	}
	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		surfaces = append(surfaces, broadcaster)
		logSinks = append(logSinks, web.BroadcastWriter(broadcaster))
	}
	debug.SetOutput(io.MultiWriter(logSinks...))

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Camera backend
	debug.Step(1, "Initializing camera backend")
	sim, discovery, err := newCameraFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	defer sim.Close()
	debug.Value("Camera backend", cfg.Camera.Backend)
	debug.Value("Video devices", len(discovery.Devices()))

	// Permissions
	debug.Step(2, "Loading permissions")
	prompter, err := prompterFor(cfg.Permissions.Prompt, *useTUI)
	if err != nil {
		log.Fatalf("init permissions failed: %v", err)
	}
	initial, err := initialStatuses(cfg.Permissions)
	if err != nil {
		log.Fatalf("init permissions failed: %v", err)
	}
	authority, err := permission.NewStore(initial, cfg.Permissions.DecisionsFile, prompter)
	if err != nil {
		log.Fatalf("init permissions failed: %v", err)
	}

	// Media library
	debug.Step(3, "Opening media catalog")
	source := cfg.Storage.Path
	if cfg.Storage.Engine == "postgres" {
		source = cfg.Storage.DSN
	}
	catalog, err := media.NewByEngine(cfg.Storage.Engine, source, cfg.Storage.MediaDir)
	if err != nil {
		log.Fatalf("init storage failed: %v", err)
	}
	defer catalog.Close()

	// Broker events
	if em := newEmitter(ctx, cfg.Events); em != nil {
		surfaces = append(surfaces, em)
		defer em.Close()
	}

	// GPIO surfaces
	var gpioDriver gpio.Driver
	if cfg.Indicators.Enabled || cfg.Remote.Enabled {
		debug.Step(4, "Initializing GPIO driver")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		gpioDriver, err = gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
	}
	var panel *indicator.Panel
	if cfg.Indicators.Enabled {
		panel = indicator.NewPanel(gpioDriver, indicator.Pins{
			Recording:   cfg.Indicators.RecordingPin,
			LivePhoto:   cfg.Indicators.LivePhotoPin,
			Unavailable: cfg.Indicators.UnavailablePin,
			Resume:      cfg.Indicators.ResumePin,
			Flash:       cfg.Indicators.FlashPin,
			Fault:       cfg.Indicators.FaultPin,
		}, cfg.FlashPulse())
		surfaces = append(surfaces, panel)
		debug.PrintStruct("Indicators config", cfg.Indicators)
	}

	// Session controller
	debug.Step(5, "Creating capture session controller")
	iface, err := geometry.ParseInterfaceOrientation(cfg.Session.InterfaceOrientation)
	if err != nil {
		log.Fatalf("invalid session config: %v", err)
	}
	bg := session.NewProcessBackgrounder()
	// surfaces is completed below, before Load triggers the first render.
	ctrl := session.New(session.Options{
		Session:        sim,
		Discovery:      discovery,
		Authority:      authority,
		Library:        catalog,
		Surface:        &surfaces,
		Background:     bg,
		TempDir:        cfg.Session.TempDir,
		Interface:      iface,
		ThrottleMinFPS: cfg.Session.ThrottleMinFPS,
		ThrottleMaxFPS: cfg.Session.ThrottleMaxFPS,
	})

	var rem *remote.Remote
	if cfg.Remote.Enabled {
		rem, err = remote.New(gpioDriver, remote.Config{
			FocusPin:   cfg.Remote.FocusPin,
			ShutterPin: cfg.Remote.ShutterPin,
			Poll:       cfg.RemotePoll(),
		}, ctrl)
		if err != nil {
			log.Fatalf("init remote failed: %v", err)
		}
		surfaces = append(surfaces, rem)
	}

	debug.Section("Starting capture session")
	ctrl.Load()
	ctrl.Show()

	if rem != nil {
		go rem.Run(ctx)
	}
	if broadcaster != nil {
		var injector web.EventInjector
		if cfg.Camera.Backend == "sim" {
			injector = sim
		}
		handlers := web.NewHandlers(broadcaster, ctrl, ctrl.Status, catalog, injector, nil)
		srv := web.NewServer(fmt.Sprintf(":%d", webPort.port()), handlers)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	if tuiSurface != nil {
		p := tea.NewProgram(
			tui.New(tuiSurface, ctrl),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithContext(ctx),
		)
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Printf("terminal UI: %v", err)
		}
		cancel()
	}
	<-ctx.Done()

	// Shutdown: stop the session, let recordings and saves finish.
	debug.Section("Shutting down")
	ctrl.Hide()
	ctrl.Settle()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownGrace)
	if err := bg.Wait(waitCtx); err != nil {
		log.Printf("pending background work abandoned: %d task(s)", bg.Active())
	}
	waitCancel()
	ctrl.Close()
	if panel != nil {
		panel.Off()
	}
}

// newCameraFromConfig builds the capture session and device discovery for
// the configured backend. The gocv backend grabs frames from local capture
// devices; the session logic is the simulated one in both cases.
func newCameraFromConfig(cfg *config.Config) (*camera.Simulated, camera.Discovery, error) {
	photoCodecs, err := parseCodecs(cfg.Camera.PhotoCodecs)
	if err != nil {
		return nil, nil, fmt.Errorf("photo_codecs: %w", err)
	}
	movieCodecs, err := parseCodecs(cfg.Camera.MovieCodecs)
	if err != nil {
		return nil, nil, fmt.Errorf("movie_codecs: %w", err)
	}
	devices, err := devicesFromConfig(cfg.Camera.Devices)
	if err != nil {
		return nil, nil, err
	}

	opts := camera.SimOptions{
		PhotoCodecs:   photoCodecs,
		MovieCodecs:   movieCodecs,
		FrameInterval: cfg.FrameInterval(),
		FrameWidth:    cfg.Camera.FrameWidth,
		FrameHeight:   cfg.Camera.FrameHeight,
	}

	switch cfg.Camera.Backend {
	case "sim":
	case "gocv":
		frames, probed, err := openCVBackend(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts.Frames = frames
		// Probed video devices first; configured microphones keep audio available.
		var mics []camera.Device
		for _, d := range devices {
			if d.Type == camera.DeviceMicrophone {
				mics = append(mics, d)
			}
		}
		devices = append(probed, mics...)
	default:
		return nil, nil, fmt.Errorf("unsupported camera backend: %s", cfg.Camera.Backend)
	}
	return camera.NewSimulated(opts), camera.NewStaticDiscovery(devices), nil
}

func devicesFromConfig(list []config.DeviceConfig) ([]camera.Device, error) {
	devices := make([]camera.Device, 0, len(list))
	for i, dc := range list {
		pos, err := camera.ParsePosition(dc.Position)
		if err != nil {
			return nil, fmt.Errorf("camera.devices[%d]: %w", i, err)
		}
		typ, err := camera.ParseDeviceType(dc.Type)
		if err != nil {
			return nil, fmt.Errorf("camera.devices[%d]: %w", i, err)
		}
		caps := camera.Caps{
			FocusPointOfInterest:    dc.Caps.FocusPointOfInterest,
			ExposurePointOfInterest: dc.Caps.ExposurePointOfInterest,
			Flash:                   dc.Caps.Flash,
			Stabilization:           dc.Caps.Stabilization,
			LivePhoto:               dc.Caps.LivePhoto,
			DepthDelivery:           dc.Caps.DepthDelivery,
			PortraitMatte:           dc.Caps.PortraitMatte,
		}
		for _, m := range dc.Caps.FocusModes {
			fm := camera.FocusMode(m)
			if fm != camera.FocusLocked && fm != camera.FocusAuto && fm != camera.FocusContinuousAuto {
				return nil, fmt.Errorf("camera.devices[%d]: unknown focus mode %q", i, m)
			}
			caps.FocusModes = append(caps.FocusModes, fm)
		}
		for _, m := range dc.Caps.ExposureModes {
			em := camera.ExposureMode(m)
			if em != camera.ExposureLocked && em != camera.ExposureAuto && em != camera.ExposureContinuousAuto {
				return nil, fmt.Errorf("camera.devices[%d]: unknown exposure mode %q", i, m)
			}
			caps.ExposureModes = append(caps.ExposureModes, em)
		}
		name := dc.Name
		if name == "" {
			name = dc.ID
		}
		devices = append(devices, camera.Device{ID: dc.ID, Name: name, Position: pos, Type: typ, Caps: caps})
	}
	return devices, nil
}

func parseCodecs(names []string) ([]camera.Codec, error) {
	out := make([]camera.Codec, 0, len(names))
	for _, n := range names {
		switch c := camera.Codec(n); c {
		case camera.CodecHEVC, camera.CodecH264, camera.CodecJPEG, camera.CodecMJPG:
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown codec %q", n)
		}
	}
	return out, nil
}

func initialStatuses(p config.PermissionsConfig) (map[permission.Kind]permission.Status, error) {
	out := make(map[permission.Kind]permission.Status, len(permission.Kinds))
	for kind, v := range map[permission.Kind]string{
		permission.Camera:       p.Camera,
		permission.Microphone:   p.Microphone,
		permission.PhotoLibrary: p.PhotoLibrary,
	} {
		st, err := permission.ParseStatus(v)
		if err != nil {
			return nil, fmt.Errorf("permissions.%s: %w", kind, err)
		}
		out[kind] = st
	}
	return out, nil
}

// prompterFor picks how undetermined permissions are answered. The terminal
// UI owns stdin, so terminal prompts are denied there.
func prompterFor(mode string, tuiActive bool) (permission.Prompter, error) {
	switch mode {
	case "allow":
		return permission.FixedPrompter(true), nil
	case "deny":
		return permission.FixedPrompter(false), nil
	case "terminal":
		if tuiActive {
			debug.Info("Terminal permission prompts are unavailable with -tui; undetermined permissions are denied")
			return permission.FixedPrompter(false), nil
		}
		return permission.TerminalPrompter{In: os.Stdin, Out: os.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown prompt mode %q", mode)
	}
}

// newEmitter connects the configured broker. A broker that cannot be reached
// is logged and skipped; display updates are best effort.
func newEmitter(ctx context.Context, ec config.EventsConfig) *emitter.Emitter {
	var pub emitter.Publisher
	switch ec.Driver {
	case "mqtt":
		p := emitter.NewMQTTPublisher(emitter.MQTTConfig{
			Broker:   ec.Broker,
			ClientID: ec.ClientID,
			QoS:      byte(ec.QoS),
		})
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Connect(cctx); err != nil {
			log.Printf("events disabled: %v", err)
			return nil
		}
		pub = p
	case "amqp":
		p, err := emitter.DialAMQP(ec.URL, ec.Exchange)
		if err != nil {
			log.Printf("events disabled: %v", err)
			return nil
		}
		pub = p
	default:
		return nil
	}
	debug.Info("Publishing display updates to %s (%s)", ec.Driver, ec.Topic)
	return emitter.New(pub, ec.Topic, ec.ClientID)
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
