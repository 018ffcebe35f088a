package audio

// Accumulator collects single-channel samples into fixed-length frames.
//
// An Accumulator has exactly one writer, the capture callback that owns it,
// so it carries no lock. Callers that need to hand frames to another goroutine
// should send the derived SpectrumFrame, never the AudioFrame itself.
type Accumulator struct {
	buf  []float32
	size int
}

// NewAccumulator creates an accumulator that yields frames of size samples.
// A size below 1 falls back to FrameSize.
func NewAccumulator(size int) *Accumulator {
	if size < 1 {
		size = FrameSize
	}

	return &Accumulator{
		buf:  make([]float32, 0, size),
		size: size,
	}
}

// Push appends one sample and reports whether the frame is now full.
// Pushing into a full frame discards the sample and keeps reporting full
// until the frame is drained.
func (a *Accumulator) Push(sample float32) bool {
	if len(a.buf) >= a.size {
		return true
	}
	a.buf = append(a.buf, sample)
	return len(a.buf) == a.size
}

// Drain returns the current frame and resets the accumulator to empty.
// It fails with ErrFrameNotFull unless Push has just reported a full frame.
func (a *Accumulator) Drain() (AudioFrame, error) {
	if len(a.buf) < a.size {
		return nil, ErrFrameNotFull
	}
	frame := AudioFrame(a.buf[:a.size])
	a.buf = a.buf[:0]
	return frame, nil
}

// PushDrain appends one sample and, when that completes the frame, drains it
// in the same step. The returned frame is valid until the next push.
func (a *Accumulator) PushDrain(sample float32) (AudioFrame, bool) {
	if !a.Push(sample) {
		return nil, false
	}
	frame, _ := a.Drain()
	return frame, true
}

// Len returns the number of samples collected for the current frame
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Size returns the frame length
func (a *Accumulator) Size() int {
	return a.size
}

// Reset discards any partially collected frame
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
}
