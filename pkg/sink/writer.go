package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
)

// Format selects how a Writer encodes frames
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported sink format: %q", s)
	}
}

// Event is the envelope a spectrum is published in
type Event struct {
	Event     string                 `json:"event" yaml:"event"`
	Sequence  uint64                 `json:"sequence" yaml:"sequence"`
	Timestamp int64                  `json:"timestamp_ms" yaml:"timestamp_ms"`
	Payload   []float32              `json:"payload" yaml:"payload,flow"`
	Summary   *audio.SpectrumSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// NewEvent wraps frame in the audio-data envelope
func NewEvent(frame audio.SpectrumFrame) Event {
	return Event{
		Event:     audio.SpectrumEvent,
		Sequence:  frame.Sequence,
		Timestamp: frame.Timestamp.UnixMilli(),
		Payload:   frame.Magnitudes,
	}
}

// Writer encodes each frame as one JSON line or one YAML document. Writes
// can stall, so a Writer should sit behind a Channel rather than directly on
// the capture callback.
type Writer struct {
	mu         sync.Mutex
	format     Format
	json       *json.Encoder
	yaml       *yaml.Encoder
	summarizer *audio.Summarizer
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithSummary attaches peak, centroid and rolloff descriptors computed for
// sampleRate to every event
func WithSummary(sampleRate float64) WriterOption {
	return func(w *Writer) {
		if sampleRate > 0 {
			w.summarizer = audio.NewSummarizer(sampleRate)
		}
	}
}

// NewWriter creates a Writer encoding to out
func NewWriter(out io.Writer, format Format, opts ...WriterOption) (*Writer, error) {
	w := &Writer{format: format}

	switch format {
	case FormatJSON:
		w.json = json.NewEncoder(out)
	case FormatYAML:
		w.yaml = yaml.NewEncoder(out)
	default:
		return nil, fmt.Errorf("unsupported sink format: %q", format)
	}

	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Deliver encodes frame
func (w *Writer) Deliver(frame audio.SpectrumFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event := NewEvent(frame)
	if w.summarizer != nil {
		summary := w.summarizer.Summarize(frame)
		event.Summary = &summary
	}

	if w.format == FormatYAML {
		if err := w.yaml.Encode(event); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", frame.Sequence, err)
		}
		return nil
	}

	if err := w.json.Encode(event); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Sequence, err)
	}
	return nil
}

// Close flushes a YAML stream. JSON output needs no flushing.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.yaml != nil {
		return w.yaml.Close()
	}
	return nil
}
