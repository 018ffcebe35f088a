package capture

import (
	"strings"
	"time"
)

// Device describes an audio input device as reported by a backend
type Device struct {
	Index             int           `json:"index"`
	Name              string        `json:"name"`
	HostAPI           string        `json:"host_api,omitempty"`
	MaxInputChannels  int           `json:"max_input_channels"`
	DefaultSampleRate float64       `json:"default_sample_rate"`
	DefaultLatency    time.Duration `json:"default_latency"`
	IsDefault         bool          `json:"is_default"`
}

// StreamConfig is the negotiated input stream configuration
type StreamConfig struct {
	Channels        int           `json:"channels"`
	SampleRate      float64       `json:"sample_rate"`
	FramesPerBuffer int           `json:"frames_per_buffer"` // 0 lets the backend choose
	Latency         time.Duration `json:"latency"`
}

// StatusFlags reports conditions the backend noticed for one buffer
type StatusFlags uint32

const (
	StatusInputUnderflow StatusFlags = 1 << iota
	StatusInputOverflow
)

func (f StatusFlags) String() string {
	if f == 0 {
		return "ok"
	}
	var parts []string
	if f&StatusInputUnderflow != 0 {
		parts = append(parts, "input_underflow")
	}
	if f&StatusInputOverflow != 0 {
		parts = append(parts, "input_overflow")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// StreamHandler receives what an open input stream produces.
//
// OnData is invoked on the backend's audio thread with interleaved samples
// (frames x channels). The slice is reused by the backend after OnData
// returns. OnError reports stream-level failures such as a device being
// removed; the stream is not restarted.
type StreamHandler struct {
	OnData  func(in []float32, status StatusFlags)
	OnError func(err error)
}

// Stream is an open input stream
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend binds the capture driver to an audio subsystem
type Backend interface {
	// Name identifies the backend in logs and errors
	Name() string
	// Devices lists input-capable devices
	Devices() ([]*Device, error)
	// DefaultInputDevice returns the system default input device
	DefaultInputDevice() (*Device, error)
	// DefaultInputConfig returns the device's default input configuration
	DefaultInputConfig(dev *Device) (StreamConfig, error)
	// OpenInput opens a callback-driven input stream. Nothing is delivered until Start.
	OpenInput(dev *Device, cfg StreamConfig, handler StreamHandler) (Stream, error)
	// Close releases the audio subsystem
	Close() error
}
