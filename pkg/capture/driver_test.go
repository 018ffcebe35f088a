package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
	"github.com/RyanBlaney/mic-spectrum/pkg/sink"
)

func startDriver(t *testing.T, backend *fakeBackend, out sink.Sink, opts ...Option) *Session {
	t.Helper()

	d, err := NewDriver(backend, out, opts...)
	require.NoError(t, err)

	session, err := d.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Stop() })
	return session
}

func TestNewDriverRequiresBackendAndSink(t *testing.T) {
	_, err := NewDriver(nil, sink.Discard)
	assert.Error(t, err)

	_, err = NewDriver(newFakeBackend(1), nil)
	assert.Error(t, err)
}

func TestStereoBufferYieldsOneDCFrame(t *testing.T) {
	backend := newFakeBackend(2)
	out := &collectSink{}
	startDriver(t, backend, out)

	backend.feed(interleave(1024, 1.0, -1.0))

	frames := out.all()
	require.Len(t, frames, 1)

	spectrum := frames[0]
	require.Len(t, spectrum.Magnitudes, 512)
	assert.InDelta(t, 1024.0, spectrum.Magnitudes[0], 1e-3)
	for k := 1; k < len(spectrum.Magnitudes); k++ {
		assert.InDelta(t, 0.0, spectrum.Magnitudes[k], 1e-3, "bin %d", k)
	}
}

func TestOnlyChannelZeroIsAnalyzed(t *testing.T) {
	for _, channels := range []int{1, 2, 4} {
		backend := newFakeBackend(channels)
		out := &collectSink{}
		startDriver(t, backend, out, WithFrameSize(8))

		values := make([]float32, channels)
		values[0] = 0.25
		for c := 1; c < channels; c++ {
			values[c] = 100
		}
		backend.feed(interleave(8, values...))

		frames := out.all()
		require.Len(t, frames, 1, "channels=%d", channels)
		assert.InDelta(t, 2.0, frames[0].Magnitudes[0], 1e-9, "channels=%d", channels)
	}
}

func TestPartialTrailingGroupContributesChannelZero(t *testing.T) {
	backend := newFakeBackend(2)
	out := &collectSink{}
	rec := &countingRecorder{}
	startDriver(t, backend, out, WithFrameSize(4), WithRecorder(rec))

	// three full groups plus a lone channel-0 sample
	backend.feed([]float32{1, -1, 1, -1, 1, -1, 1})

	require.Equal(t, 1, out.count())
	assert.Equal(t, 4, rec.samples)
}

func TestCompletionsPerCallback(t *testing.T) {
	backend := newFakeBackend(1)
	out := &collectSink{}
	rec := &countingRecorder{}
	session := startDriver(t, backend, out, WithFrameSize(8), WithRecorder(rec))

	backend.feed(make([]float32, 5))
	assert.Equal(t, 0, out.count())

	backend.feed(make([]float32, 3))
	assert.Equal(t, 1, out.count())

	backend.feed(make([]float32, 20))
	assert.Equal(t, 3, out.count())

	backend.feed(make([]float32, 4))
	assert.Equal(t, 4, out.count())

	frames := out.all()
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Sequence)
		assert.Len(t, f.Magnitudes, 4)
	}
	assert.Equal(t, uint64(4), session.Frames())
	assert.Equal(t, 32, rec.samples)
	assert.Equal(t, 4, rec.frames)
}

func TestFramesArePartitionedInOrder(t *testing.T) {
	backend := newFakeBackend(1)
	out := &collectSink{}
	startDriver(t, backend, out, WithFrameSize(4))

	// frame DC values 4, 8, 12 identify which samples landed where
	backend.feed([]float32{1, 1, 1, 1, 2, 2})
	backend.feed([]float32{2, 2, 3, 3, 3, 3})

	frames := out.all()
	require.Len(t, frames, 3)
	assert.InDelta(t, 4.0, frames[0].Magnitudes[0], 1e-9)
	assert.InDelta(t, 8.0, frames[1].Magnitudes[0], 1e-9)
	assert.InDelta(t, 12.0, frames[2].Magnitudes[0], 1e-9)
}

func TestDeliveryErrorsDoNotStopCapture(t *testing.T) {
	backend := newFakeBackend(1)
	out := &collectSink{err: sink.ErrFrameDropped}
	rec := &countingRecorder{}
	session := startDriver(t, backend, out, WithFrameSize(4), WithRecorder(rec))

	backend.feed(make([]float32, 8))
	out.err = errBoom
	backend.feed(make([]float32, 4))

	assert.Equal(t, 3, out.count())
	assert.Equal(t, 2, rec.dropped)
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, uint64(3), session.Frames())
}

func TestStartNoDevice(t *testing.T) {
	backend := newFakeBackend(1)
	backend.device = nil

	d, err := NewDriver(backend, sink.Discard)
	require.NoError(t, err)

	_, err = d.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoDeviceFound)
	assert.False(t, backend.openCalled)
}

func TestStartNoDevicePassesBackendError(t *testing.T) {
	backend := newFakeBackend(1)
	backend.device = nil
	backend.deviceErr = NewCaptureError(ErrCodeNoDevice, "fake", "", "host has no inputs", nil)

	d, err := NewDriver(backend, sink.Discard)
	require.NoError(t, err)

	_, err = d.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoDeviceFound)
	assert.ErrorContains(t, err, "host has no inputs")
}

func TestStartUnsupportedConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *fakeBackend)
	}{
		{"config query fails", func(b *fakeBackend) { b.configErr = errBoom }},
		{"zero sample rate", func(b *fakeBackend) { b.config.SampleRate = 0 }},
		{"zero channels", func(b *fakeBackend) { b.config.Channels = 0 }},
		{"stream build fails", func(b *fakeBackend) { b.openErr = errBoom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend(2)
			tt.setup(backend)

			d, err := NewDriver(backend, sink.Discard)
			require.NoError(t, err)

			_, err = d.Start(context.Background())
			assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
			assert.NotErrorIs(t, err, ErrNoDeviceFound)
		})
	}
}

func TestStartStreamFailure(t *testing.T) {
	backend := newFakeBackend(1)
	backend.startErr = errBoom

	d, err := NewDriver(backend, sink.Discard)
	require.NoError(t, err)

	_, err = d.Start(context.Background())
	assert.ErrorIs(t, err, ErrStreamFailed)
	assert.ErrorIs(t, err, errBoom)

	_, _, closed := backend.stream.state()
	assert.True(t, closed)
}

func TestStartTwice(t *testing.T) {
	backend := newFakeBackend(1)
	d, err := NewDriver(backend, sink.Discard)
	require.NoError(t, err)

	session, err := d.Start(context.Background())
	require.NoError(t, err)
	defer session.Stop()

	_, err = d.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestFramesPerBufferOverride(t *testing.T) {
	backend := newFakeBackend(1)
	startDriver(t, backend, sink.Discard, WithFramesPerBuffer(256))
	assert.Equal(t, 256, backend.config.FramesPerBuffer)
}

func TestRadixTransformDriver(t *testing.T) {
	backend := newFakeBackend(1)
	out := &collectSink{}
	startDriver(t, backend, out, WithTransform(audio.NewRadixTransform))

	buf := make([]float32, audio.FrameSize)
	for i := range buf {
		buf[i] = 1
	}
	backend.feed(buf)

	frames := out.all()
	require.Len(t, frames, 1)
	assert.InDelta(t, float32(audio.FrameSize), frames[0].Magnitudes[0], 1e-3)
}
