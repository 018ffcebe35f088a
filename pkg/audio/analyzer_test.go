package audio

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var transforms = map[string]TransformFactory{
	"gonum_plan": NewPlanTransform,
	"go_dsp":     NewRadixTransform,
}

// sineFrame builds a frame holding amplitude*cos(2*pi*bin*n/size)
func sineFrame(size, bin int, amplitude float64) AudioFrame {
	frame := make(AudioFrame, size)
	for n := range frame {
		frame[n] = float32(amplitude * math.Cos(2*math.Pi*float64(bin)*float64(n)/float64(size)))
	}
	return frame
}

func randomFrame(size int, seed int64) AudioFrame {
	rng := rand.New(rand.NewSource(seed))
	frame := make(AudioFrame, size)
	for i := range frame {
		frame[i] = float32(rng.Float64()*2 - 1)
	}
	return frame
}

type AnalyzerTestSuite struct {
	suite.Suite
	analyzer *SpectralAnalyzer
}

func (s *AnalyzerTestSuite) SetupTest() {
	analyzer, err := NewSpectralAnalyzer(FrameSize)
	s.Require().NoError(err)
	s.analyzer = analyzer
}

func (s *AnalyzerTestSuite) TestSilentFrame() {
	spectrum, err := s.analyzer.Analyze(make(AudioFrame, FrameSize))
	s.Require().NoError(err)

	s.Len(spectrum.Magnitudes, FrameSize/2)
	for i, m := range spectrum.Magnitudes {
		s.Zerof(m, "bin %d", i)
	}
}

func (s *AnalyzerTestSuite) TestConstantFrameIsPureDC() {
	frame := make(AudioFrame, FrameSize)
	for i := range frame {
		frame[i] = 1
	}

	spectrum, err := s.analyzer.Analyze(frame)
	s.Require().NoError(err)

	s.InDelta(float64(FrameSize), float64(spectrum.Magnitudes[0]), 1e-3)
	for i := 1; i < len(spectrum.Magnitudes); i++ {
		s.InDeltaf(0, float64(spectrum.Magnitudes[i]), 1e-3, "bin %d", i)
	}
}

func (s *AnalyzerTestSuite) TestSinusoidPeaksAtItsBin() {
	const amplitude = 0.5

	for _, bin := range []int{1, 5, 64, 200, FrameSize/2 - 1} {
		spectrum, err := s.analyzer.Analyze(sineFrame(FrameSize, bin, amplitude))
		s.Require().NoError(err)

		want := amplitude * FrameSize / 2
		s.InDeltaf(want, float64(spectrum.Magnitudes[bin]), 1e-2, "bin %d", bin)

		for i, m := range spectrum.Magnitudes {
			if i == bin {
				continue
			}
			s.Lessf(float64(m), 1e-2, "leakage into bin %d for tone at bin %d", i, bin)
		}
	}
}

func (s *AnalyzerTestSuite) TestWrongFrameLength() {
	_, err := s.analyzer.Analyze(make(AudioFrame, FrameSize-1))
	s.ErrorIs(err, ErrFrameSize)

	_, err = s.analyzer.Analyze(nil)
	s.ErrorIs(err, ErrFrameSize)
}

func (s *AnalyzerTestSuite) TestSequenceAndTimestamp() {
	first, err := s.analyzer.Analyze(make(AudioFrame, FrameSize))
	s.Require().NoError(err)
	second, err := s.analyzer.Analyze(make(AudioFrame, FrameSize))
	s.Require().NoError(err)

	s.Equal(uint64(1), first.Sequence)
	s.Equal(uint64(2), second.Sequence)
	s.False(first.Timestamp.IsZero())
}

func (s *AnalyzerTestSuite) TestFrequencyHelpers() {
	s.InDelta(46.875, s.analyzer.FrequencyResolution(48000), 1e-9)
	s.InDelta(468.75, s.analyzer.BinFrequency(10, 48000), 1e-9)
	s.Equal(FrameSize/2, s.analyzer.Bins())
	s.Equal(FrameSize, s.analyzer.Size())
}

func TestAnalyzerTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerTestSuite))
}

func TestNewSpectralAnalyzerRejectsBadSizes(t *testing.T) {
	for _, size := range []int{-2, 0, 1, 3, 1023} {
		_, err := NewSpectralAnalyzer(size)
		assert.ErrorIsf(t, err, ErrInvalidFrameSize, "size %d", size)
	}
}

func TestAnalyzerOutputShape(t *testing.T) {
	sizes := []int{2, 4, 8, 16, 64, 256, 1024, 2048, 4096, 6, 12, 1000}

	for name, factory := range transforms {
		for _, size := range sizes {
			analyzer, err := NewSpectralAnalyzer(size, WithTransform(factory))
			require.NoErrorf(t, err, "%s size %d", name, size)

			spectrum, err := analyzer.Analyze(randomFrame(size, int64(size)))
			require.NoError(t, err)

			assert.Lenf(t, spectrum.Magnitudes, size/2, "%s size %d", name, size)
			for i, m := range spectrum.Magnitudes {
				assert.GreaterOrEqualf(t, m, float32(0), "%s size %d bin %d", name, size, i)
				assert.Falsef(t, math.IsNaN(float64(m)), "%s size %d bin %d is NaN", name, size, i)
			}
		}
	}
}

func TestAnalyzerDeterminism(t *testing.T) {
	frame := randomFrame(FrameSize, 42)

	reused, err := NewSpectralAnalyzer(FrameSize)
	require.NoError(t, err)

	first, err := reused.Analyze(frame)
	require.NoError(t, err)

	// run unrelated frames through the reused plan before repeating
	for i := 0; i < 3; i++ {
		_, err := reused.Analyze(randomFrame(FrameSize, int64(i)))
		require.NoError(t, err)
	}

	again, err := reused.Analyze(frame)
	require.NoError(t, err)
	assert.Equal(t, first.Magnitudes, again.Magnitudes, "reused plan must be reproducible")

	fresh, err := NewSpectralAnalyzer(FrameSize)
	require.NoError(t, err)
	fromFresh, err := fresh.Analyze(frame)
	require.NoError(t, err)
	assert.Equal(t, first.Magnitudes, fromFresh.Magnitudes, "fresh plan must match reused plan")
}

func TestTransformsAgree(t *testing.T) {
	frame := randomFrame(FrameSize, 7)

	plan, err := NewSpectralAnalyzer(FrameSize, WithTransform(NewPlanTransform))
	require.NoError(t, err)
	radix, err := NewSpectralAnalyzer(FrameSize, WithTransform(NewRadixTransform))
	require.NoError(t, err)

	a, err := plan.Analyze(frame)
	require.NoError(t, err)
	b, err := radix.Analyze(frame)
	require.NoError(t, err)

	require.Len(t, b.Magnitudes, len(a.Magnitudes))
	for i := range a.Magnitudes {
		assert.InDeltaf(t, float64(a.Magnitudes[i]), float64(b.Magnitudes[i]), 1e-3, "bin %d", i)
	}
}

func TestAnalyzerDoesNotModifyFrame(t *testing.T) {
	frame := randomFrame(FrameSize, 3)
	snapshot := append(AudioFrame(nil), frame...)

	analyzer, err := NewSpectralAnalyzer(FrameSize)
	require.NoError(t, err)
	_, err = analyzer.Analyze(frame)
	require.NoError(t, err)

	assert.Equal(t, snapshot, frame)
}

func TestSpectrumDoesNotAliasScratch(t *testing.T) {
	analyzer, err := NewSpectralAnalyzer(8)
	require.NoError(t, err)

	first, err := analyzer.Analyze(AudioFrame{1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, err)
	kept := append([]float32(nil), first.Magnitudes...)

	_, err = analyzer.Analyze(make(AudioFrame, 8))
	require.NoError(t, err)

	assert.Equal(t, kept, first.Magnitudes, "delivered spectra must stay immutable")
}

func TestWithClock(t *testing.T) {
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	analyzer, err := NewSpectralAnalyzer(4, WithClock(func() time.Time { return stamp }))
	require.NoError(t, err)

	spectrum, err := analyzer.Analyze(make(AudioFrame, 4))
	require.NoError(t, err)
	assert.Equal(t, stamp, spectrum.Timestamp)
}

func TestAnalyzerClampsNonFiniteMagnitudes(t *testing.T) {
	analyzer, err := NewSpectralAnalyzer(8)
	require.NoError(t, err)

	frames := map[string]AudioFrame{
		"nan":      {float32(math.NaN()), 0, 0, 0, 0, 0, 0, 0},
		"inf":      {float32(math.Inf(1)), 1, 0, 0, 0, 0, 0, 0},
		"overflow": {math.MaxFloat32, math.MaxFloat32, math.MaxFloat32, math.MaxFloat32, math.MaxFloat32, math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			spectrum, err := analyzer.Analyze(frame)
			require.NoError(t, err)

			for i, m := range spectrum.Magnitudes {
				v := float64(m)
				assert.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "bin %d is %v", i, m)
			}

			_, err = json.Marshal(spectrum.Magnitudes)
			assert.NoError(t, err)
		})
	}

	spectrum, err := analyzer.Analyze(frames["overflow"])
	require.NoError(t, err)
	assert.Equal(t, float32(math.MaxFloat32), spectrum.Magnitudes[0])
}
