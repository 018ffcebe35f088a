package capture

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// ToneConfig configures the synthetic tone backend
type ToneConfig struct {
	Frequency       float64 `json:"frequency"`
	Amplitude       float64 `json:"amplitude"`
	SampleRate      float64 `json:"sample_rate"`
	Channels        int     `json:"channels"`
	FramesPerBuffer int     `json:"frames_per_buffer"`
}

// DefaultToneConfig returns a 440 Hz stereo tone at 48 kHz
func DefaultToneConfig() *ToneConfig {
	return &ToneConfig{
		Frequency:       440,
		Amplitude:       0.5,
		SampleRate:      48000,
		Channels:        2,
		FramesPerBuffer: 512,
	}
}

// ToneBackend is a device-free backend producing a sine wave on channel 0
// and its inverse on every other channel, paced in real time. It lets the
// pipeline run on machines without an input device.
type ToneBackend struct {
	config *ToneConfig
}

// NewToneBackend creates a tone backend. A nil config uses DefaultToneConfig.
func NewToneBackend(config *ToneConfig) *ToneBackend {
	if config == nil {
		config = DefaultToneConfig()
	}
	return &ToneBackend{config: config}
}

// Name returns "tone"
func (b *ToneBackend) Name() string { return "tone" }

func (b *ToneBackend) device() *Device {
	return &Device{
		Index:             0,
		Name:              fmt.Sprintf("tone generator (%.0f Hz)", b.config.Frequency),
		HostAPI:           "synthetic",
		MaxInputChannels:  b.config.Channels,
		DefaultSampleRate: b.config.SampleRate,
		IsDefault:         true,
	}
}

// Devices returns the single synthetic device
func (b *ToneBackend) Devices() ([]*Device, error) {
	return []*Device{b.device()}, nil
}

// DefaultInputDevice returns the synthetic device
func (b *ToneBackend) DefaultInputDevice() (*Device, error) {
	return b.device(), nil
}

// DefaultInputConfig returns the configured tone layout
func (b *ToneBackend) DefaultInputConfig(dev *Device) (StreamConfig, error) {
	if b.config.Channels < 1 || b.config.SampleRate <= 0 {
		return StreamConfig{}, fmt.Errorf("tone layout %d channels at %.0f Hz is not usable",
			b.config.Channels, b.config.SampleRate)
	}
	return StreamConfig{
		Channels:        b.config.Channels,
		SampleRate:      b.config.SampleRate,
		FramesPerBuffer: b.config.FramesPerBuffer,
	}, nil
}

// OpenInput prepares a paced tone stream
func (b *ToneBackend) OpenInput(dev *Device, cfg StreamConfig, handler StreamHandler) (Stream, error) {
	if handler.OnData == nil {
		return nil, fmt.Errorf("tone stream requires a data handler")
	}
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 512
	}

	return &toneStream{
		handler:   handler,
		channels:  cfg.Channels,
		frames:    frames,
		rate:      cfg.SampleRate,
		frequency: b.config.Frequency,
		amplitude: b.config.Amplitude,
		buf:       make([]float32, frames*cfg.Channels),
	}, nil
}

// Close is a no-op
func (b *ToneBackend) Close() error { return nil }

type toneStream struct {
	handler   StreamHandler
	channels  int
	frames    int
	rate      float64
	frequency float64
	amplitude float64
	buf       []float32
	position  int64

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func (s *toneStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("tone stream already running")
	}
	s.running = true
	s.stop = make(chan struct{})

	period := time.Duration(float64(s.frames) / s.rate * float64(time.Second))
	s.wg.Add(1)
	go s.run(period, s.stop)
	return nil
}

func (s *toneStream) run(period time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.fill()
			s.handler.OnData(s.buf, 0)
		}
	}
}

// fill writes the next buffer of interleaved samples
func (s *toneStream) fill() {
	step := 2 * math.Pi * s.frequency / s.rate
	for f := 0; f < s.frames; f++ {
		v := float32(s.amplitude * math.Sin(step*float64(s.position)))
		s.position++

		base := f * s.channels
		s.buf[base] = v
		for c := 1; c < s.channels; c++ {
			s.buf[base+c] = -v
		}
	}
}

func (s *toneStream) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *toneStream) Close() error {
	return s.Stop()
}
