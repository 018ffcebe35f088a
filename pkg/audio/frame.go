package audio

import (
	"errors"
	"time"
)

// FrameSize is the number of single-channel samples in every analyzed frame.
const FrameSize = 1024

// SpectrumEvent is the event name every completed spectrum is published under.
const SpectrumEvent = "audio-data"

var (
	// ErrFrameNotFull is returned when a frame is drained before it holds FrameSize samples
	ErrFrameNotFull = errors.New("audio: frame not full")

	// ErrFrameSize is returned when a frame handed to the analyzer has the wrong length
	ErrFrameSize = errors.New("audio: frame length does not match analyzer size")

	// ErrInvalidFrameSize is returned for analyzer or accumulator sizes that cannot be transformed
	ErrInvalidFrameSize = errors.New("audio: frame size must be even and at least 2")
)

// AudioFrame is a full run of single-channel samples awaiting transform.
// Frames produced by an Accumulator alias its buffer and are only valid until
// the next sample is pushed.
type AudioFrame []float32

// SpectrumFrame holds the magnitude of each positive frequency bin of one
// AudioFrame, DC first. Magnitudes are unnormalized.
type SpectrumFrame struct {
	Sequence   uint64    `json:"sequence" yaml:"sequence"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Magnitudes []float32 `json:"payload" yaml:"payload"`
}

// Bins returns the number of frequency bins in the spectrum
func (s SpectrumFrame) Bins() int {
	return len(s.Magnitudes)
}
