package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Display  DisplayConfig  `yaml:"display"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Prefs    PrefsConfig    `yaml:"prefs"`
}

// TrackingConfig holds the reading filter thresholds and session settings.
type TrackingConfig struct {
	MinimumAccuracy    Distance `yaml:"minimum_accuracy" validate:"gte=0"`
	MinimumSpeed       Speed    `yaml:"minimum_speed" validate:"gte=0"`
	BackgroundTracking bool     `yaml:"background_tracking"`
	TickInterval       Duration `yaml:"tick_interval" validate:"gte=0"` // 0 disables the refresh ticker
	// AutoAuthorize requests location access as soon as the service starts.
	AutoAuthorize bool `yaml:"auto_authorize"`
}

// SensorConfig selects and configures the positioning sensor.
type SensorConfig struct {
	Provider string           `yaml:"provider" validate:"oneof=mock replay"`
	Mock     MockSensorConfig `yaml:"mock"`
	Replay   ReplayConfig     `yaml:"replay"`
}

// MockSensorConfig holds settings for the simulated sensor.
type MockSensorConfig struct {
	StartLat        float64  `yaml:"start_lat" validate:"gte=-90,lte=90"`
	StartLon        float64  `yaml:"start_lon" validate:"gte=-180,lte=180"`
	StartAlt        float64  `yaml:"start_alt"`
	StartHeading    float64  `yaml:"start_heading" validate:"gte=0,lt=360"`
	Interval        Duration `yaml:"interval" validate:"gt=0"`
	DurationParked  Duration `yaml:"duration_parked"`
	DurationWalking Duration `yaml:"duration_walking"`
	DurationDriving Duration `yaml:"duration_driving"`
	WalkingSpeed    Speed    `yaml:"walking_speed" validate:"gte=0"`
	DrivingSpeed    Speed    `yaml:"driving_speed" validate:"gte=0"`
	PositionNoise   Distance `yaml:"position_noise" validate:"gte=0"`
	BadFixRate      float64  `yaml:"bad_fix_rate" validate:"gte=0,lte=1"`
	ErrorRate       float64  `yaml:"error_rate" validate:"gte=0,lte=1"`
	Authorization   string   `yaml:"authorization" validate:"oneof=grant deny"`
	AuthDelay       Duration `yaml:"auth_delay"`
	Seed            int64    `yaml:"seed"`
}

// ReplayConfig holds settings for replaying a recorded CSV track.
type ReplayConfig struct {
	File string  `yaml:"file"`
	Rate float64 `yaml:"rate" validate:"gt=0"` // playback speed multiplier
	Loop bool    `yaml:"loop"`
}

// DisplayConfig holds the default units for formatted values.
type DisplayConfig struct {
	SpeedUnit    string `yaml:"speed_unit" validate:"oneof=m/s km/h mph kn"`
	DistanceUnit string `yaml:"distance_unit" validate:"oneof=m km ft mi nm"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	Trace    bool        `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address" validate:"required"`
}

// PrefsConfig holds the preference store settings.
type PrefsConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			MinimumAccuracy:    Distance(20),
			MinimumSpeed:       Speed(0.3),
			BackgroundTracking: false,
			TickInterval:       Duration(1 * time.Second),
			AutoAuthorize:      true,
		},
		Sensor: SensorConfig{
			Provider: "mock",
			Mock: MockSensorConfig{
				StartLat:        47.3769,
				StartLon:        8.5417,
				StartAlt:        408.0,
				StartHeading:    90.0,
				Interval:        Duration(1 * time.Second),
				DurationParked:  Duration(30 * time.Second),
				DurationWalking: Duration(120 * time.Second),
				DurationDriving: Duration(300 * time.Second),
				WalkingSpeed:    Speed(1.4),
				DrivingSpeed:    Speed(13.9),
				PositionNoise:   Distance(3),
				BadFixRate:      0.05,
				ErrorRate:       0.0,
				Authorization:   "grant",
				AuthDelay:       Duration(500 * time.Millisecond),
			},
			Replay: ReplayConfig{
				File: "./data/track.csv",
				Rate: 1.0,
			},
		},
		Display: DisplayConfig{
			SpeedUnit:    "km/h",
			DistanceUnit: "km",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
		Prefs: PrefsConfig{
			Path: "./data/saltydog.db",
		},
	}
}

// Load reads the configuration at path over the defaults. A missing file is
// created with the default values; an existing file is never rewritten.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env overrides are applied after the file but never written back.
	if addr := os.Getenv("SALTYDOG_ADDR"); addr != "" {
		cfg.Server.Address = addr
	}
	if provider := os.Getenv("SALTYDOG_SENSOR"); provider != "" {
		cfg.Sensor.Provider = provider
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Sensor.Provider == "replay" && c.Sensor.Replay.File == "" {
		return fmt.Errorf("sensor.replay.file is required for the replay provider")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# SaltyDog Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), ft (feet), mi (miles), nm (nautical miles)
#   Speed:    m/s, km/h, mph, kn

`)
	data = append(header, data...)

	// Inject comments for enum fields.
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: mock, replay\n${1}provider:"))

	reAuth := regexp.MustCompile(`(?m)^(\s+)authorization:`)
	data = reAuth.ReplaceAll(data, []byte("${1}# Options: grant, deny\n${1}authorization:"))

	reSpeedUnit := regexp.MustCompile(`(?m)^(\s+)speed_unit:`)
	data = reSpeedUnit.ReplaceAll(data, []byte("${1}# Options: m/s, km/h, mph, kn\n${1}speed_unit:"))

	reDistUnit := regexp.MustCompile(`(?m)^(\s+)distance_unit:`)
	data = reDistUnit.ReplaceAll(data, []byte("${1}# Options: m, km, ft, mi, nm\n${1}distance_unit:"))

	reAcc := regexp.MustCompile(`(?m)^(\s+)minimum_accuracy:`)
	data = reAcc.ReplaceAll(data, []byte("${1}# Fixes with a larger accuracy radius are discarded\n${1}minimum_accuracy:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
