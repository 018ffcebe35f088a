package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
	"github.com/RyanBlaney/mic-spectrum/pkg/sink"
)

// Recorder receives pipeline measurements. Every method is called from the
// audio callback goroutine and must not block.
type Recorder interface {
	RecordSamples(n int)
	RecordFrame(analysis time.Duration)
	RecordDeliveryError(dropped bool)
	RecordStatus(status StatusFlags)
	RecordStreamError()
}

type nopRecorder struct{}

func (nopRecorder) RecordSamples(int) {}
func (nopRecorder) RecordFrame(time.Duration) {}
func (nopRecorder) RecordDeliveryError(bool) {}
func (nopRecorder) RecordStatus(StatusFlags) {}
func (nopRecorder) RecordStreamError() {}

// Driver owns the input stream of one capture pipeline. It binds the
// default input device, reduces interleaved input to a single channel,
// accumulates frames, analyzes each full frame and delivers the spectrum to
// the injected sink.
type Driver struct {
	backend         Backend
	sink            sink.Sink
	frameSize       int
	framesPerBuffer int
	transform       audio.TransformFactory
	stallTimeout    time.Duration
	recorder        Recorder
	logger          logging.Logger

	mu      sync.Mutex
	started bool
}

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the driver logger
func WithLogger(logger logging.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(d *Driver) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithFrameSize overrides the analysis frame length. The default is audio.FrameSize.
func WithFrameSize(n int) Option {
	return func(d *Driver) {
		d.frameSize = n
	}
}

// WithFramesPerBuffer requests a hardware buffer size; 0 leaves it to the backend
func WithFramesPerBuffer(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.framesPerBuffer = n
		}
	}
}

// WithTransform selects the FFT implementation used by the analyzer
func WithTransform(factory audio.TransformFactory) Option {
	return func(d *Driver) {
		d.transform = factory
	}
}

// WithStallTimeout sets how long the stream may go without delivering a
// buffer before it is reported as failed. 0 derives the timeout from the
// buffer size and a negative value disables the check.
func WithStallTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.stallTimeout = timeout
	}
}

const (
	stallBuffers    = 16
	minStallTimeout = 2 * time.Second
)

// stallTimeout is the larger of stallBuffers buffer periods and minStallTimeout
func stallTimeout(cfg StreamConfig, override time.Duration) time.Duration {
	if override != 0 {
		return override
	}
	timeout := minStallTimeout
	if cfg.FramesPerBuffer > 0 && cfg.SampleRate > 0 {
		period := time.Duration(float64(cfg.FramesPerBuffer) / cfg.SampleRate * float64(time.Second))
		if p := stallBuffers * period; p > timeout {
			timeout = p
		}
	}
	return timeout
}

// NewDriver creates a capture driver that reads from backend and delivers
// every completed spectrum to out.
func NewDriver(backend Backend, out sink.Sink, opts ...Option) (*Driver, error) {
	if backend == nil {
		return nil, fmt.Errorf("capture backend is required")
	}
	if out == nil {
		return nil, fmt.Errorf("spectrum sink is required")
	}

	d := &Driver{
		backend:   backend,
		sink:      out,
		frameSize: audio.FrameSize,
		transform: audio.NewPlanTransform,
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.WithFields(logging.Fields{
			"component": "capture_driver",
			"backend":   backend.Name(),
		})
	}

	return d, nil
}

// Start binds the default input device, opens and starts the input stream
// and returns the live session. Startup failures are returned as
// *CaptureError values matching ErrNoDeviceFound or
// ErrUnsupportedConfiguration. The session ends when ctx is done or
// Session.Stop is called.
func (d *Driver) Start(ctx context.Context) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil, ErrAlreadyStarted
	}

	backendName := d.backend.Name()
	logger := d.logger.WithFields(logging.Fields{
		"function": "Start",
	})

	dev, err := d.backend.DefaultInputDevice()
	if err != nil || dev == nil {
		if errors.Is(err, ErrNoDeviceFound) {
			return nil, err
		}
		return nil, NewCaptureError(ErrCodeNoDevice, backendName, "",
			"no input device available", err)
	}

	cfg, err := d.backend.DefaultInputConfig(dev)
	if err != nil {
		return nil, NewCaptureError(ErrCodeUnsupportedConfig, backendName, dev.Name,
			"failed to get default input config", err)
	}
	if cfg.SampleRate <= 0 {
		return nil, NewCaptureError(ErrCodeUnsupportedConfig, backendName, dev.Name,
			fmt.Sprintf("invalid sample rate %.0f", cfg.SampleRate), nil)
	}
	if d.framesPerBuffer > 0 {
		cfg.FramesPerBuffer = d.framesPerBuffer
	}

	channels, err := NewChannelConfig(cfg.Channels)
	if err != nil {
		return nil, NewCaptureError(ErrCodeUnsupportedConfig, backendName, dev.Name,
			"invalid channel layout", err)
	}

	analyzer, err := audio.NewSpectralAnalyzer(d.frameSize,
		audio.WithTransform(d.transform),
		audio.WithAnalyzerLogger(d.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectral analyzer: %w", err)
	}

	session := newSession(ctx, dev, cfg, channels, d.recorder, d.logger)
	session.stallTimeout = stallTimeout(cfg, d.stallTimeout)
	proc := &processor{
		channels: channels,
		acc:      audio.NewAccumulator(d.frameSize),
		analyzer: analyzer,
		sink:     d.sink,
		recorder: d.recorder,
		session:  session,
		logger:   d.logger,
	}

	stream, err := d.backend.OpenInput(dev, cfg, StreamHandler{
		OnData:  session.dataHandler(proc.process),
		OnError: session.fail,
	})
	if err != nil {
		session.cancel()
		return nil, NewCaptureError(ErrCodeUnsupportedConfig, backendName, dev.Name,
			"failed to build input stream", err)
	}
	session.stream = stream

	if err := stream.Start(); err != nil {
		session.cancel()
		if closeErr := stream.Close(); closeErr != nil {
			logger.Warn("Failed to close stream after start failure", logging.Fields{
				"error": closeErr.Error(),
			})
		}
		return nil, NewCaptureError(ErrCodeStreamFailed, backendName, dev.Name,
			"failed to start input stream", err)
	}

	d.started = true
	go session.keepAlive()

	logger.Info("Audio capture started", logging.Fields{
		"device":            dev.Name,
		"sample_rate":       cfg.SampleRate,
		"channels":          channels.Channels,
		"frames_per_buffer": cfg.FramesPerBuffer,
		"frame_size":        d.frameSize,
	})
	if channels.Channels > 1 {
		logger.Debug("Multi-channel input reduced to channel 0", logging.Fields{
			"discarded_channels": channels.Channels - 1,
		})
	}

	return session, nil
}

// processor is the per-buffer callback state. It is only ever touched by
// the backend's audio thread, which serializes invocations.
type processor struct {
	channels ChannelConfig
	acc      *audio.Accumulator
	analyzer *audio.SpectralAnalyzer
	sink     sink.Sink
	recorder Recorder
	session  *Session
	logger   logging.Logger
}

// process consumes one interleaved hardware buffer. It may complete zero,
// one or several frames.
func (p *processor) process(in []float32) {
	stride := p.channels.Channels
	for i := p.channels.Channel; i < len(in); i += stride {
		frame, full := p.acc.PushDrain(in[i])
		if !full {
			continue
		}
		p.complete(frame)
	}
	p.recorder.RecordSamples(p.channels.Samples(len(in)))
}

func (p *processor) complete(frame audio.AudioFrame) {
	start := time.Now()
	spectrum, err := p.analyzer.Analyze(frame)
	if err != nil {
		// unreachable while the accumulator and analyzer share a size
		p.logger.Error(err, "Frame analysis failed")
		return
	}
	p.recorder.RecordFrame(time.Since(start))
	p.session.frames.Add(1)

	if err := p.sink.Deliver(spectrum); err != nil {
		dropped := errors.Is(err, sink.ErrFrameDropped)
		p.recorder.RecordDeliveryError(dropped)
		if !dropped {
			p.session.deliveryErrors.Add(1)
		}
	}
}
