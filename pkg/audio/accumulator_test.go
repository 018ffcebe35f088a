package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccumulator(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"default frame size", FrameSize, FrameSize},
		{"small frame", 4, 4},
		{"zero falls back", 0, FrameSize},
		{"negative falls back", -8, FrameSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator(tt.size)
			assert.Equal(t, tt.want, acc.Size())
			assert.Equal(t, 0, acc.Len())
		})
	}
}

func TestAccumulatorSignalsFullOnlyOnLastPush(t *testing.T) {
	acc := NewAccumulator(FrameSize)

	fullAt := []int{}
	for i := 1; i <= FrameSize; i++ {
		if acc.Push(float32(i)) {
			fullAt = append(fullAt, i)
		}
	}

	assert.Equal(t, []int{FrameSize}, fullAt)
	assert.Equal(t, FrameSize, acc.Len())
}

func TestAccumulatorOverflowStartsNextFrame(t *testing.T) {
	acc := NewAccumulator(FrameSize)

	fullSignals := 0
	for i := 0; i < FrameSize+1; i++ {
		frame, full := acc.PushDrain(float32(i))
		if full {
			fullSignals++
			require.Len(t, frame, FrameSize)
			assert.Equal(t, float32(0), frame[0])
			assert.Equal(t, float32(FrameSize-1), frame[FrameSize-1])
		}
	}

	assert.Equal(t, 1, fullSignals)
	assert.Equal(t, 1, acc.Len())
}

func TestAccumulatorDrain(t *testing.T) {
	acc := NewAccumulator(4)

	acc.Push(1)
	acc.Push(2)
	_, err := acc.Drain()
	assert.ErrorIs(t, err, ErrFrameNotFull)
	assert.Equal(t, 2, acc.Len(), "failed drain must not reset the frame")

	acc.Push(3)
	require.True(t, acc.Push(4))

	frame, err := acc.Drain()
	require.NoError(t, err)
	assert.Equal(t, AudioFrame{1, 2, 3, 4}, frame)
	assert.Equal(t, 0, acc.Len())
}

func TestAccumulatorPushOnFullFrame(t *testing.T) {
	acc := NewAccumulator(2)

	assert.False(t, acc.Push(1))
	assert.True(t, acc.Push(2))
	assert.True(t, acc.Push(3), "full frame keeps reporting full until drained")
	assert.Equal(t, 2, acc.Len())

	frame, err := acc.Drain()
	require.NoError(t, err)
	assert.Equal(t, AudioFrame{1, 2}, frame)
}

func TestAccumulatorMultipleFrames(t *testing.T) {
	acc := NewAccumulator(8)

	completed := 0
	for i := 0; i < 8*5+3; i++ {
		if _, full := acc.PushDrain(1); full {
			completed++
		}
	}

	assert.Equal(t, 5, completed)
	assert.Equal(t, 3, acc.Len())

	acc.Reset()
	assert.Equal(t, 0, acc.Len())
}
