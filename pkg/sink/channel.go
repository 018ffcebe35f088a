package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
)

// DefaultChannelBuffer is the handoff depth used when none is configured
const DefaultChannelBuffer = 16

// Channel hands frames from the capture goroutine to a consumer goroutine.
// Deliver never blocks: when the consumer falls behind the frame is dropped
// and counted, so the audio callback keeps its cadence.
type Channel struct {
	frames  chan audio.SpectrumFrame
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	sent    atomic.Uint64
	logger  logging.Logger
}

// NewChannel creates a handoff with room for buffer pending frames
func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = DefaultChannelBuffer
	}

	return &Channel{
		frames: make(chan audio.SpectrumFrame, buffer),
		logger: logging.WithFields(logging.Fields{
			"component": "sink_channel",
			"buffer":    buffer,
		}),
	}
}

// Deliver queues frame for the consumer without blocking
func (c *Channel) Deliver(frame audio.SpectrumFrame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.frames <- frame:
		c.sent.Add(1)
		return nil
	default:
		c.dropped.Add(1)
		return ErrFrameDropped
	}
}

// Frames returns the receive side of the handoff. It is closed by Close.
func (c *Channel) Frames() <-chan audio.SpectrumFrame {
	return c.frames
}

// Forward delivers queued frames to dst until the channel is closed or ctx
// is done. Delivery errors are logged and do not stop forwarding.
func (c *Channel) Forward(ctx context.Context, dst Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-c.frames:
			if !ok {
				return nil
			}
			if err := dst.Deliver(frame); err != nil {
				c.logger.Warn("Downstream delivery failed", logging.Fields{
					"sequence": frame.Sequence,
					"error":    err.Error(),
				})
			}
		}
	}
}

// Close stops accepting frames and closes the receive side. It is safe to
// call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.frames)

	c.logger.Debug("Channel sink closed", logging.Fields{
		"sent":    c.sent.Load(),
		"dropped": c.dropped.Load(),
	})
	return nil
}

// Dropped returns how many frames were discarded because the consumer was behind
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// Sent returns how many frames were queued for the consumer
func (c *Channel) Sent() uint64 {
	return c.sent.Load()
}
