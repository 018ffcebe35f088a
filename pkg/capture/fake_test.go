package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
)

// fakeBackend captures the handler so tests can drive the callback by hand
type fakeBackend struct {
	device     *Device
	deviceErr  error
	config     StreamConfig
	configErr  error
	openErr    error
	startErr   error
	stopErr    error
	handler    StreamHandler
	stream     *fakeStream
	openCalled bool
}

func newFakeBackend(channels int) *fakeBackend {
	return &fakeBackend{
		device: &Device{Index: 3, Name: "fake mic", MaxInputChannels: channels, DefaultSampleRate: 48000},
		config: StreamConfig{Channels: channels, SampleRate: 48000},
	}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Devices() ([]*Device, error) {
	if b.device == nil {
		return nil, nil
	}
	return []*Device{b.device}, nil
}

func (b *fakeBackend) DefaultInputDevice() (*Device, error) {
	return b.device, b.deviceErr
}

func (b *fakeBackend) DefaultInputConfig(dev *Device) (StreamConfig, error) {
	return b.config, b.configErr
}

func (b *fakeBackend) OpenInput(dev *Device, cfg StreamConfig, handler StreamHandler) (Stream, error) {
	b.openCalled = true
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.handler = handler
	b.config = cfg
	b.stream = &fakeStream{startErr: b.startErr, stopErr: b.stopErr}
	return b.stream, nil
}

func (b *fakeBackend) Close() error { return nil }

// feed invokes the data callback the way an audio thread would
func (b *fakeBackend) feed(in []float32) {
	b.handler.OnData(in, 0)
}

type fakeStream struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	started  bool
	stopped  bool
	closed   bool
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return s.stopErr
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) state() (started, stopped, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped, s.closed
}

// collectSink keeps delivered spectra
type collectSink struct {
	mu     sync.Mutex
	frames []audio.SpectrumFrame
	err    error
}

func (c *collectSink) Deliver(frame audio.SpectrumFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return c.err
}

func (c *collectSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *collectSink) all() []audio.SpectrumFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.SpectrumFrame(nil), c.frames...)
}

// countingRecorder tallies recorder calls
type countingRecorder struct {
	mu             sync.Mutex
	samples        int
	frames         int
	dropped        int
	failed         int
	statuses       []StatusFlags
	streamErrors   int
	analysisLatest time.Duration
}

func (r *countingRecorder) RecordSamples(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples += n
}

func (r *countingRecorder) RecordFrame(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.analysisLatest = d
}

func (r *countingRecorder) RecordDeliveryError(dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dropped {
		r.dropped++
	} else {
		r.failed++
	}
}

func (r *countingRecorder) RecordStatus(status StatusFlags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *countingRecorder) RecordStreamError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamErrors++
}

func (r *countingRecorder) streamErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamErrors
}

var errBoom = errors.New("boom")

// interleave builds a buffer of frames groups where channel c holds values[c]
func interleave(frames int, values ...float32) []float32 {
	buf := make([]float32, 0, frames*len(values))
	for i := 0; i < frames; i++ {
		buf = append(buf, values...)
	}
	return buf
}
