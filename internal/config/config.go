package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 1 << 20

// Environment overrides applied by ApplyEnv.
const (
	EnvStorageDSN = "RECPAUSE_STORAGE_DSN"
	EnvEventsURL  = "RECPAUSE_EVENTS_URL"
	EnvDebugLevel = "RECPAUSE_DEBUG_LEVEL"
)

// CapsConfig lists what a configured device supports.
type CapsConfig struct {
	FocusPointOfInterest    bool     `yaml:"focus_point_of_interest"`
	ExposurePointOfInterest bool     `yaml:"exposure_point_of_interest"`
	FocusModes              []string `yaml:"focus_modes"`    // locked, auto, continuous_auto
	ExposureModes           []string `yaml:"exposure_modes"` // locked, auto, continuous_auto
	Flash                   bool     `yaml:"flash"`
	Stabilization           bool     `yaml:"stabilization"`
	LivePhoto               bool     `yaml:"live_photo"`
	DepthDelivery           bool     `yaml:"depth_delivery"`
	PortraitMatte           bool     `yaml:"portrait_matte"`
}

// DeviceConfig describes one simulated capture device.
type DeviceConfig struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Position string     `yaml:"position"` // back, front, unspecified
	Type     string     `yaml:"type"`     // dual, wide_angle, true_depth, microphone
	Caps     CapsConfig `yaml:"caps"`
}

// CameraConfig selects the capture backend.
type CameraConfig struct {
	Backend         string         `yaml:"backend"` // "sim" or "gocv"
	Devices         []DeviceConfig `yaml:"devices"` // sim only; gocv probes
	PhotoCodecs     []string       `yaml:"photo_codecs"`
	MovieCodecs     []string       `yaml:"movie_codecs"`
	FrameWidth      int            `yaml:"frame_width"`
	FrameHeight     int            `yaml:"frame_height"`
	FrameIntervalMs int            `yaml:"frame_interval_ms"` // recording frame cadence
	GocvMaxIndex    int            `yaml:"gocv_max_index"`    // capture indices probed by the gocv backend
}

// SessionConfig tunes the capture session controller.
type SessionConfig struct {
	InterfaceOrientation string `yaml:"interface_orientation"` // portrait, landscape_left, ...
	ThrottleMinFPS       int    `yaml:"throttle_min_fps"`
	ThrottleMaxFPS       int    `yaml:"throttle_max_fps"`
	TempDir              string `yaml:"temp_dir"` // empty = OS temp dir
}

// PermissionsConfig holds the initial authorization statuses.
type PermissionsConfig struct {
	Camera        string `yaml:"camera"` // not_determined, authorized, denied, restricted
	Microphone    string `yaml:"microphone"`
	PhotoLibrary  string `yaml:"photo_library"`
	DecisionsFile string `yaml:"decisions_file"` // empty = in memory only
	Prompt        string `yaml:"prompt"`         // terminal, allow, deny
}

// StorageConfig locates the media catalog.
type StorageConfig struct {
	Engine   string `yaml:"engine"` // sqlite or postgres
	Path     string `yaml:"path"`   // sqlite file
	DSN      string `yaml:"dsn"`    // postgres
	MediaDir string `yaml:"media_dir"`
}

// EventsConfig selects the broker that display updates are published to.
type EventsConfig struct {
	Driver   string `yaml:"driver"`   // none, mqtt, amqp
	Broker   string `yaml:"broker"`   // mqtt host:port
	URL      string `yaml:"url"`      // amqp URL
	Topic    string `yaml:"topic"`    // base topic
	Exchange string `yaml:"exchange"` // amqp exchange
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`
}

// IndicatorsConfig maps LEDs to BCM pins. 0 = not fitted.
type IndicatorsConfig struct {
	Enabled        bool `yaml:"enabled"`
	RecordingPin   int  `yaml:"recording_pin"`
	LivePhotoPin   int  `yaml:"live_photo_pin"`
	UnavailablePin int  `yaml:"unavailable_pin"`
	ResumePin      int  `yaml:"resume_pin"`
	FlashPin       int  `yaml:"flash_pin"`
	FaultPin       int  `yaml:"fault_pin"`
	FlashPulseMs   int  `yaml:"flash_pulse_ms"`
}

// RemoteConfig describes a wired release cable.
type RemoteConfig struct {
	Enabled    bool `yaml:"enabled"`
	FocusPin   int  `yaml:"focus_pin"`   // active LOW
	ShutterPin int  `yaml:"shutter_pin"` // active LOW
	PollMs     int  `yaml:"poll_ms"`
	// Note: GND is physically connected to Raspberry Pi ground
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Session     SessionConfig     `yaml:"session"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Storage     StorageConfig     `yaml:"storage"`
	Events      EventsConfig      `yaml:"events"`
	Indicators  IndicatorsConfig  `yaml:"indicators"`
	Remote      RemoteConfig      `yaml:"remote"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files directly inside a "configs"
// directory, without ".." components.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() error {
	// Camera
	if c.Camera.Backend == "" {
		return fmt.Errorf("camera.backend is required")
	}
	if !oneOf(c.Camera.Backend, "sim", "gocv") {
		return fmt.Errorf("camera.backend must be sim or gocv, got %q", c.Camera.Backend)
	}
	if c.Camera.Backend == "sim" && len(c.Camera.Devices) == 0 {
		return fmt.Errorf("camera.devices is required for the sim backend")
	}
	seen := make(map[string]bool)
	for i, d := range c.Camera.Devices {
		if d.ID == "" {
			return fmt.Errorf("camera.devices[%d].id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("camera.devices[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
		if d.Type == "" {
			return fmt.Errorf("camera.devices[%d].type is required", i)
		}
	}
	if len(c.Camera.PhotoCodecs) == 0 {
		c.Camera.PhotoCodecs = []string{"hevc", "jpeg"}
	}
	if len(c.Camera.MovieCodecs) == 0 {
		c.Camera.MovieCodecs = []string{"hevc", "h264"}
	}
	if c.Camera.FrameWidth <= 0 || c.Camera.FrameHeight <= 0 {
		c.Camera.FrameWidth, c.Camera.FrameHeight = 640, 480
	}
	if c.Camera.FrameIntervalMs <= 0 {
		c.Camera.FrameIntervalMs = 100 // 10 fps recordings
	}
	if c.Camera.GocvMaxIndex <= 0 {
		c.Camera.GocvMaxIndex = 2
	}

	// Session
	if c.Session.ThrottleMinFPS <= 0 {
		c.Session.ThrottleMinFPS = 15
	}
	if c.Session.ThrottleMaxFPS <= 0 {
		c.Session.ThrottleMaxFPS = 20
	}
	if c.Session.ThrottleMinFPS > c.Session.ThrottleMaxFPS {
		return fmt.Errorf("session.throttle_min_fps (%d) must be <= throttle_max_fps (%d)",
			c.Session.ThrottleMinFPS, c.Session.ThrottleMaxFPS)
	}

	// Permissions
	for name, v := range map[string]*string{
		"camera":        &c.Permissions.Camera,
		"microphone":    &c.Permissions.Microphone,
		"photo_library": &c.Permissions.PhotoLibrary,
	} {
		if *v == "" {
			*v = "not_determined"
		}
		if !oneOf(*v, "not_determined", "authorized", "denied", "restricted") {
			return fmt.Errorf("permissions.%s: unknown status %q", name, *v)
		}
	}
	if c.Permissions.Prompt == "" {
		c.Permissions.Prompt = "terminal"
	}
	if !oneOf(c.Permissions.Prompt, "terminal", "allow", "deny") {
		return fmt.Errorf("permissions.prompt must be terminal, allow or deny, got %q", c.Permissions.Prompt)
	}

	// Storage
	if c.Storage.Engine == "" {
		c.Storage.Engine = "sqlite"
	}
	switch c.Storage.Engine {
	case "sqlite":
		if c.Storage.Path == "" {
			c.Storage.Path = filepath.Join("data", "catalog.db")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres engine")
		}
	default:
		return fmt.Errorf("storage.engine must be sqlite or postgres, got %q", c.Storage.Engine)
	}
	if c.Storage.MediaDir == "" {
		c.Storage.MediaDir = filepath.Join("data", "media")
	}

	// Events
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	switch c.Events.Driver {
	case "none":
	case "mqtt":
		if c.Events.Broker == "" {
			return fmt.Errorf("events.broker is required for the mqtt driver")
		}
	case "amqp":
		if c.Events.URL == "" {
			return fmt.Errorf("events.url is required for the amqp driver")
		}
		if c.Events.Exchange == "" {
			c.Events.Exchange = "recpause"
		}
	default:
		return fmt.Errorf("events.driver must be none, mqtt or amqp, got %q", c.Events.Driver)
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "recpause"
	}
	if c.Events.ClientID == "" {
		c.Events.ClientID = "recpause"
	}
	if c.Events.QoS < 0 || c.Events.QoS > 2 {
		return fmt.Errorf("events.qos must be 0, 1 or 2, got %d", c.Events.QoS)
	}

	// Hardware
	if c.Indicators.FlashPulseMs <= 0 {
		c.Indicators.FlashPulseMs = 100
	}
	if c.Remote.Enabled {
		if c.Remote.FocusPin <= 0 || c.Remote.ShutterPin <= 0 {
			return fmt.Errorf("remote.focus_pin and remote.shutter_pin are required when the remote is enabled")
		}
		if c.Remote.FocusPin == c.Remote.ShutterPin {
			return fmt.Errorf("remote.focus_pin and remote.shutter_pin must differ")
		}
	}
	if c.Remote.PollMs <= 0 {
		c.Remote.PollMs = 20
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// ApplyEnv overrides secrets and the debug level from the environment.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvStorageDSN); v != "" {
		c.Storage.DSN = v
	}
	if v := getenv(EnvEventsURL); v != "" {
		switch c.Events.Driver {
		case "mqtt":
			c.Events.Broker = v
		default:
			c.Events.URL = v
		}
	}
	if v := getenv(EnvDebugLevel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 4 {
			return fmt.Errorf("%s must be between 0 and 4, got %q", EnvDebugLevel, v)
		}
		c.Defaults.DebugLevel = n
	}
	return nil
}

// FrameInterval returns the recording frame cadence.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Camera.FrameIntervalMs) * time.Millisecond
}

// FlashPulse returns how long the flash LED stays lit per photo.
func (c *Config) FlashPulse() time.Duration {
	return time.Duration(c.Indicators.FlashPulseMs) * time.Millisecond
}

// RemotePoll returns the remote's poll period.
func (c *Config) RemotePoll() time.Duration {
	return time.Duration(c.Remote.PollMs) * time.Millisecond
}
