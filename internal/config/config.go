// Package config holds the ScreenDelta configuration, read through viper
// from defaults, an optional YAML file, SCREENDELTA_* environment variables
// and command line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ScreenDelta configuration
type Config struct {
	Capture   CaptureConfig   `mapstructure:"capture"`
	Detect    DetectConfig    `mapstructure:"detect"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
	Suspend   SuspendConfig   `mapstructure:"suspend"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CaptureConfig selects and paces the capture device
type CaptureConfig struct {
	// Backend is the capture device: "screenshot" or "coregraphics"
	Backend string `mapstructure:"backend"`
	// Display is the index of the display to capture (0 = primary)
	Display int `mapstructure:"display"`
	// IntervalMs is the time between two capture cycles
	IntervalMs int `mapstructure:"interval_ms"`
	// AcquireTimeoutMs is how long one acquisition may wait for a new frame (0 = poll)
	AcquireTimeoutMs int `mapstructure:"acquire_timeout_ms"`
}

// DetectConfig controls how changed pixels become regions
type DetectConfig struct {
	// Policy is "markers" (one square per changed pixel) or "components"
	Policy string `mapstructure:"policy"`
	// MarkerSize is the side of a marker square
	MarkerSize int `mapstructure:"marker_size"`
	// Padding grows every component box, clipped to the frame
	Padding int `mapstructure:"padding"`
}

// OverlayConfig controls how regions are drawn
type OverlayConfig struct {
	Color       string  `mapstructure:"color"`
	Alpha       float64 `mapstructure:"alpha"`
	Outline     bool    `mapstructure:"outline"`
	StrokeWidth float64 `mapstructure:"stroke_width"`
	// Demo draws the bouncing demo squares
	Demo      bool   `mapstructure:"demo"`
	DemoColor string `mapstructure:"demo_color"`
	// Headless renders into memory instead of a window
	Headless bool `mapstructure:"headless"`
}

// SuspendConfig controls reinitialization after capture access is lost
type SuspendConfig struct {
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is one of trace, debug, info, warning, error, fatal, panic
	Level string `mapstructure:"level"`
}

// TelemetryConfig controls the websocket feed of capture reports
type TelemetryConfig struct {
	// URL of the monitor, e.g. ws://localhost:8090/ws (empty = disabled)
	URL string `mapstructure:"url"`
	// ID the overlay registers with (empty = generated)
	ID string `mapstructure:"id"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Backend:          "screenshot",
			Display:          0,
			IntervalMs:       30,
			AcquireTimeoutMs: 0,
		},
		Detect: DetectConfig{
			Policy:     "components",
			MarkerSize: 50,
			Padding:    0,
		},
		Overlay: OverlayConfig{
			Color:       "#ff0000",
			Alpha:       0.6,
			Outline:     true,
			StrokeWidth: 2,
			Demo:        false,
			DemoColor:   "#00ff00",
			Headless:    false,
		},
		Suspend: SuspendConfig{
			BackoffInitialMs: 30,
			BackoffMaxMs:     2000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("capture.backend", defaults.Capture.Backend)
	viper.SetDefault("capture.display", defaults.Capture.Display)
	viper.SetDefault("capture.interval_ms", defaults.Capture.IntervalMs)
	viper.SetDefault("capture.acquire_timeout_ms", defaults.Capture.AcquireTimeoutMs)

	viper.SetDefault("detect.policy", defaults.Detect.Policy)
	viper.SetDefault("detect.marker_size", defaults.Detect.MarkerSize)
	viper.SetDefault("detect.padding", defaults.Detect.Padding)

	viper.SetDefault("overlay.color", defaults.Overlay.Color)
	viper.SetDefault("overlay.alpha", defaults.Overlay.Alpha)
	viper.SetDefault("overlay.outline", defaults.Overlay.Outline)
	viper.SetDefault("overlay.stroke_width", defaults.Overlay.StrokeWidth)
	viper.SetDefault("overlay.demo", defaults.Overlay.Demo)
	viper.SetDefault("overlay.demo_color", defaults.Overlay.DemoColor)
	viper.SetDefault("overlay.headless", defaults.Overlay.Headless)

	viper.SetDefault("suspend.backoff_initial_ms", defaults.Suspend.BackoffInitialMs)
	viper.SetDefault("suspend.backoff_max_ms", defaults.Suspend.BackoffMaxMs)

	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("telemetry.url", defaults.Telemetry.URL)
	viper.SetDefault("telemetry.id", defaults.Telemetry.ID)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Interval returns the capture interval as a duration
func (c *CaptureConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// AcquireTimeout returns the acquisition timeout as a duration
func (c *CaptureConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMs) * time.Millisecond
}

// BackoffInitial returns the first reinitialization delay
func (c *SuspendConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the longest reinitialization delay
func (c *SuspendConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// ConfigDir returns the directory holding the config file
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "screendelta")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".screendelta"
	}
	return filepath.Join(home, ".config", "screendelta")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. SCREENDELTA_CAPTURE_INTERVAL_MS for capture.interval_ms.
const EnvPrefix = "SCREENDELTA"

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv makes viper read SCREENDELTA_* environment variables.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}
