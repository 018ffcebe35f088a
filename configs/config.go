package configs

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Audio capture configuration
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`

	// Spectrum output configuration
	Sink SinkConfig `mapstructure:"sink" yaml:"sink"`

	// Metrics endpoint configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CaptureConfig contains input stream settings. The device and its format
// are always the system defaults; only the backend and buffering can be chosen.
type CaptureConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"`
	FramesPerBuffer int           `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	Transform       string        `mapstructure:"transform" yaml:"transform"`
	Duration        time.Duration `mapstructure:"duration" yaml:"duration"`
	StallTimeout    time.Duration `mapstructure:"stall_timeout" yaml:"stall_timeout"`
	Tone            ToneConfig    `mapstructure:"tone" yaml:"tone"`
}

// ToneConfig contains settings for the synthetic tone backend
type ToneConfig struct {
	Frequency  float64 `mapstructure:"frequency" yaml:"frequency"`
	Amplitude  float64 `mapstructure:"amplitude" yaml:"amplitude"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int     `mapstructure:"channels" yaml:"channels"`
}

// SinkConfig contains spectrum delivery settings
type SinkConfig struct {
	Type      string          `mapstructure:"type" yaml:"type"`
	Format    string          `mapstructure:"format" yaml:"format"`
	Buffer    int             `mapstructure:"buffer" yaml:"buffer"`
	Summary   bool            `mapstructure:"summary" yaml:"summary"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
}

// WebSocketConfig contains websocket broadcast settings
type WebSocketConfig struct {
	Listen         string        `mapstructure:"listen" yaml:"listen"`
	Path           string        `mapstructure:"path" yaml:"path"`
	ClientBuffer   int           `mapstructure:"client_buffer" yaml:"client_buffer"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	OriginPatterns []string      `mapstructure:"origin_patterns" yaml:"origin_patterns"`
}

// MetricsConfig contains Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Supported option values
var (
	Backends   = []string{"portaudio", "tone"}
	SinkTypes  = []string{"stdout", "websocket"}
	Formats    = []string{"json", "yaml"}
	Transforms = []string{"plan", "radix"}
	LogLevels  = []string{"debug", "info", "warn", "error"}
)

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if !slices.Contains(LogLevels, config.LogLevel) {
		return fmt.Errorf("log level must be one of %v, got %q", LogLevels, config.LogLevel)
	}

	if !slices.Contains(Backends, config.Capture.Backend) {
		return fmt.Errorf("capture backend must be one of %v, got %q", Backends, config.Capture.Backend)
	}

	if config.Capture.FramesPerBuffer < 0 {
		return fmt.Errorf("frames per buffer cannot be negative")
	}

	if !slices.Contains(Transforms, config.Capture.Transform) {
		return fmt.Errorf("transform must be one of %v, got %q", Transforms, config.Capture.Transform)
	}

	if config.Capture.Duration < 0 {
		return fmt.Errorf("capture duration cannot be negative")
	}

	if config.Capture.Backend == "tone" {
		tone := config.Capture.Tone
		if tone.SampleRate <= 0 {
			return fmt.Errorf("tone sample rate must be positive")
		}
		if tone.Channels <= 0 {
			return fmt.Errorf("tone channels must be positive")
		}
		if tone.Frequency <= 0 || tone.Frequency >= tone.SampleRate/2 {
			return fmt.Errorf("tone frequency must be between 0 and the Nyquist frequency")
		}
	}

	if !slices.Contains(SinkTypes, config.Sink.Type) {
		return fmt.Errorf("sink type must be one of %v, got %q", SinkTypes, config.Sink.Type)
	}

	if !slices.Contains(Formats, config.Sink.Format) {
		return fmt.Errorf("sink format must be one of %v, got %q", Formats, config.Sink.Format)
	}

	if config.Sink.Buffer <= 0 {
		return fmt.Errorf("sink buffer must be positive")
	}

	if config.Sink.Type == "websocket" {
		if config.Sink.WebSocket.Listen == "" {
			return fmt.Errorf("websocket listen address is required")
		}
		if config.Sink.WebSocket.ClientBuffer <= 0 {
			return fmt.Errorf("websocket client buffer must be positive")
		}
	}

	if config.Metrics.Enabled && config.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	return nil
}
