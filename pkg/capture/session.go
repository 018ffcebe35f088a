package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Session is the live binding between one input device and the pipeline.
// It lives until its context is done or Stop is called; it is never
// restarted or repaired after a stream error.
type Session struct {
	device   *Device
	config   StreamConfig
	channels ChannelConfig
	stream   Stream

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	stallTimeout time.Duration
	lastData     atomic.Int64

	stopped        atomic.Bool
	frames         atomic.Uint64
	statusEvents   atomic.Uint64
	deliveryErrors atomic.Uint64

	mu        sync.Mutex
	streamErr error
	closeErr  error

	recorder Recorder
	logger   logging.Logger
}

func newSession(ctx context.Context, dev *Device, cfg StreamConfig, channels ChannelConfig, recorder Recorder, logger logging.Logger) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		device:   dev,
		config:   cfg,
		channels: channels,
		ctx:      sctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		recorder: recorder,
		logger: logger.WithFields(logging.Fields{
			"device": dev.Name,
		}),
	}
	s.lastData.Store(time.Now().UnixNano())
	return s
}

// dataHandler wraps the buffer callback so that nothing is processed once
// the session is stopping.
func (s *Session) dataHandler(process func(in []float32)) func(in []float32, status StatusFlags) {
	return func(in []float32, status StatusFlags) {
		if s.stopped.Load() {
			return
		}
		s.lastData.Store(time.Now().UnixNano())
		if status != 0 {
			s.statusEvents.Add(1)
			s.recorder.RecordStatus(status)
		}
		process(in)
	}
}

// fail records a stream-level error reported by the backend. The first
// error is kept; the stream is left as it is.
func (s *Session) fail(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	first := s.streamErr == nil
	if first {
		s.streamErr = NewCaptureError(ErrCodeStreamFailed, "", s.device.Name, "input stream failed", err)
	}
	s.mu.Unlock()

	s.recorder.RecordStreamError()
	s.logger.Error(err, "An error occurred on the input stream", logging.Fields{
		"first_error": first,
	})
}

// keepAlive holds the stream open until the session is cancelled, then
// tears it down.
func (s *Session) keepAlive() {
	s.watch()
	s.stopped.Store(true)

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	closeErr := errors.Join(errs...)

	s.mu.Lock()
	s.closeErr = closeErr
	s.mu.Unlock()

	fields := logging.Fields{
		"frames":          s.frames.Load(),
		"status_events":   s.statusEvents.Load(),
		"delivery_errors": s.deliveryErrors.Load(),
	}
	if closeErr != nil {
		s.logger.Error(closeErr, "Input stream teardown failed", fields)
	} else {
		s.logger.Info("Audio capture stopped", fields)
	}

	close(s.done)
}

// watch blocks until the session is cancelled. A stream that delivers no
// buffer for stallTimeout is reported as failed, once; capture is not
// restarted.
func (s *Session) watch() {
	if s.stallTimeout <= 0 {
		<-s.ctx.Done()
		return
	}

	ticker := time.NewTicker(max(s.stallTimeout/4, time.Millisecond))
	defer ticker.Stop()

	stalled := false
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if stalled {
				continue
			}
			idle := now.Sub(time.Unix(0, s.lastData.Load()))
			if idle >= s.stallTimeout {
				stalled = true
				s.fail(fmt.Errorf("no input received for %s", idle.Round(time.Millisecond)))
			}
		}
	}
}

// Stop cancels the session and waits for the stream to be torn down. It
// returns any teardown error and is safe to call more than once.
func (s *Session) Stop() error {
	s.cancel()
	return s.Wait()
}

// Wait blocks until the session has ended and returns any teardown error
func (s *Session) Wait() error {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Done is closed once the session has been torn down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the first stream error reported while running, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamErr
}

// Device returns the bound input device
func (s *Session) Device() *Device {
	return s.device
}

// Config returns the negotiated stream configuration
func (s *Session) Config() StreamConfig {
	return s.config
}

// SampleRate returns the negotiated sample rate in Hz
func (s *Session) SampleRate() float64 {
	return s.config.SampleRate
}

// ChannelConfig returns the extraction rule used for this session
func (s *Session) ChannelConfig() ChannelConfig {
	return s.channels
}

// Frames returns the number of completed frames
func (s *Session) Frames() uint64 {
	return s.frames.Load()
}

// StatusEvents returns how many buffers arrived with overflow or underflow flags
func (s *Session) StatusEvents() uint64 {
	return s.statusEvents.Load()
}
