package configs

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")

	// Capture defaults
	capture := GetDefaultCaptureConfig()
	v.SetDefault("capture.backend", capture.Backend)
	v.SetDefault("capture.frames_per_buffer", capture.FramesPerBuffer)
	v.SetDefault("capture.transform", capture.Transform)
	v.SetDefault("capture.duration", capture.Duration)
	v.SetDefault("capture.stall_timeout", capture.StallTimeout)
	v.SetDefault("capture.tone.frequency", capture.Tone.Frequency)
	v.SetDefault("capture.tone.amplitude", capture.Tone.Amplitude)
	v.SetDefault("capture.tone.sample_rate", capture.Tone.SampleRate)
	v.SetDefault("capture.tone.channels", capture.Tone.Channels)

	// Sink defaults
	sink := GetDefaultSinkConfig()
	v.SetDefault("sink.type", sink.Type)
	v.SetDefault("sink.format", sink.Format)
	v.SetDefault("sink.buffer", sink.Buffer)
	v.SetDefault("sink.summary", sink.Summary)
	v.SetDefault("sink.websocket.listen", sink.WebSocket.Listen)
	v.SetDefault("sink.websocket.path", sink.WebSocket.Path)
	v.SetDefault("sink.websocket.client_buffer", sink.WebSocket.ClientBuffer)
	v.SetDefault("sink.websocket.write_timeout", sink.WebSocket.WriteTimeout)
	v.SetDefault("sink.websocket.origin_patterns", sink.WebSocket.OriginPatterns)

	// Metrics defaults
	metrics := GetDefaultMetricsConfig()
	v.SetDefault("metrics.enabled", metrics.Enabled)
	v.SetDefault("metrics.listen", metrics.Listen)
	v.SetDefault("metrics.path", metrics.Path)
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:  false,
		LogLevel: "info",
		Capture:  GetDefaultCaptureConfig(),
		Sink:     GetDefaultSinkConfig(),
		Metrics:  GetDefaultMetricsConfig(),
	}
}

// GetDefaultCaptureConfig returns default capture settings
func GetDefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Backend:         "portaudio",
		FramesPerBuffer: 0,
		Transform:       "plan",
		Duration:        0,
		StallTimeout:    0,
		Tone: ToneConfig{
			Frequency:  440,
			Amplitude:  0.5,
			SampleRate: 48000,
			Channels:   2,
		},
	}
}

// GetDefaultSinkConfig returns default spectrum delivery settings
func GetDefaultSinkConfig() SinkConfig {
	return SinkConfig{
		Type:    "stdout",
		Format:  "json",
		Buffer:  16,
		Summary: false,
		WebSocket: WebSocketConfig{
			Listen:         "127.0.0.1:8765",
			Path:           "/ws",
			ClientBuffer:   8,
			WriteTimeout:   2 * time.Second,
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		},
	}
}

// GetDefaultMetricsConfig returns default metrics endpoint settings
func GetDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Listen:  "127.0.0.1:9464",
		Path:    "/metrics",
	}
}
