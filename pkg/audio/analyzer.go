package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// SpectralAnalyzer turns one AudioFrame into a SpectrumFrame of size/2 magnitudes.
//
// The transform plan and the complex scratch buffers are built once and
// reused across frames, so an analyzer must only be used from one goroutine.
// Frames are transformed as-is (rectangular window).
type SpectralAnalyzer struct {
	size      int
	transform Transform
	input     []complex128
	output    []complex128
	sequence  uint64
	now       func() time.Time
	logger    logging.Logger
}

// AnalyzerOption configures a SpectralAnalyzer
type AnalyzerOption func(*analyzerOptions)

type analyzerOptions struct {
	factory TransformFactory
	now     func() time.Time
	logger  logging.Logger
}

// WithTransform selects the FFT implementation. The default is NewPlanTransform.
func WithTransform(factory TransformFactory) AnalyzerOption {
	return func(o *analyzerOptions) {
		if factory != nil {
			o.factory = factory
		}
	}
}

// WithClock overrides the clock used to timestamp spectra
func WithClock(now func() time.Time) AnalyzerOption {
	return func(o *analyzerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAnalyzerLogger sets the logger used by the analyzer
func WithAnalyzerLogger(logger logging.Logger) AnalyzerOption {
	return func(o *analyzerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewSpectralAnalyzer creates an analyzer for frames of size samples
func NewSpectralAnalyzer(size int, opts ...AnalyzerOption) (*SpectralAnalyzer, error) {
	if size < 2 || size%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFrameSize, size)
	}

	o := analyzerOptions{
		factory: NewPlanTransform,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.WithFields(logging.Fields{
			"component": "spectral_analyzer",
		})
	}

	transform, err := o.factory(size)
	if err != nil {
		return nil, fmt.Errorf("failed to build fft plan: %w", err)
	}
	if transform.Size() != size {
		return nil, fmt.Errorf("fft plan size %d does not match frame size %d", transform.Size(), size)
	}

	o.logger.Debug("Spectral analyzer ready", logging.Fields{
		"frame_size": size,
		"bins":       size / 2,
	})

	return &SpectralAnalyzer{
		size:      size,
		transform: transform,
		input:     make([]complex128, size),
		output:    make([]complex128, size),
		now:       o.now,
		logger:    o.logger,
	}, nil
}

// Size returns the frame length the analyzer accepts
func (sa *SpectralAnalyzer) Size() int {
	return sa.size
}

// Bins returns the number of magnitudes in every produced spectrum
func (sa *SpectralAnalyzer) Bins() int {
	return sa.size / 2
}

// Analyze computes the magnitude spectrum of frame. Bins 0 through size/2-1
// are kept; the mirrored upper half is discarded. Non-finite magnitudes are
// clamped so every spectrum stays encodable: NaN becomes 0 and overflow
// becomes math.MaxFloat32.
func (sa *SpectralAnalyzer) Analyze(frame AudioFrame) (SpectrumFrame, error) {
	if len(frame) != sa.size {
		return SpectrumFrame{}, fmt.Errorf("%w: got %d, want %d", ErrFrameSize, len(frame), sa.size)
	}

	for i, s := range frame {
		sa.input[i] = complex(float64(s), 0)
	}

	out := sa.transform.Forward(sa.output, sa.input)

	magnitudes := make([]float32, sa.size/2)
	for i := range magnitudes {
		re, im := real(out[i]), imag(out[i])
		magnitudes[i] = finite(math.Sqrt(re*re + im*im))
	}

	sa.sequence++
	return SpectrumFrame{
		Sequence:   sa.sequence,
		Timestamp:  sa.now(),
		Magnitudes: magnitudes,
	}, nil
}

func finite(m float64) float32 {
	switch {
	case math.IsNaN(m):
		return 0
	case m > math.MaxFloat32:
		return math.MaxFloat32
	}
	return float32(m)
}

// FrequencyResolution returns the width of one bin in Hz
func (sa *SpectralAnalyzer) FrequencyResolution(sampleRate float64) float64 {
	return sampleRate / float64(sa.size)
}

// BinFrequency returns the center frequency of bin in Hz
func (sa *SpectralAnalyzer) BinFrequency(bin int, sampleRate float64) float64 {
	return float64(bin) * sa.FrequencyResolution(sampleRate)
}
