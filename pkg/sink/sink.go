// Package sink defines the boundary every completed spectrum is delivered
// through, plus the delivery targets the CLI wires behind it.
//
// A Sink is called on the capture callback goroutine. Implementations must
// return quickly; anything slow belongs behind a Channel.
package sink

import (
	"errors"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
)

// ErrFrameDropped is returned when a sink discards a frame instead of blocking
var ErrFrameDropped = errors.New("sink: frame dropped")

// ErrClosed is returned when delivering to a sink that has been closed
var ErrClosed = errors.New("sink: closed")

// Sink receives completed spectrum frames. Ownership of the frame moves to
// the sink; the producer keeps no reference to it.
type Sink interface {
	Deliver(frame audio.SpectrumFrame) error
}

// Func adapts a plain function to the Sink interface
type Func func(frame audio.SpectrumFrame) error

// Deliver calls f(frame)
func (f Func) Deliver(frame audio.SpectrumFrame) error {
	return f(frame)
}

// Multi delivers every frame to each of its sinks in order. A failing sink
// does not stop delivery to the others; all errors are joined.
type Multi []Sink

// Deliver hands frame to every sink
func (m Multi) Deliver(frame audio.SpectrumFrame) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Deliver(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every frame
var Discard Sink = Func(func(audio.SpectrumFrame) error { return nil })
