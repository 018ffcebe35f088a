package audio

import (
	"math"

	"github.com/RyanBlaney/sonido-sonar/fingerprint/analyzers"
)

// SpectrumSummary holds a few scalar descriptors of one spectrum frame
type SpectrumSummary struct {
	PeakBin          int     `json:"peak_bin" yaml:"peak_bin"`
	PeakFrequency    float64 `json:"peak_hz" yaml:"peak_hz"`
	PeakMagnitude    float64 `json:"peak_magnitude" yaml:"peak_magnitude"`
	SpectralCentroid float64 `json:"spectral_centroid" yaml:"spectral_centroid"`
	SpectralRolloff  float64 `json:"spectral_rolloff" yaml:"spectral_rolloff"`
	Energy           float64 `json:"energy" yaml:"energy"`
}

// Summarizer computes SpectrumSummary values for spectra captured at one
// sample rate. It reuses its scratch buffer and must only be used from one
// goroutine.
type Summarizer struct {
	sampleRate float64
	spectral   *analyzers.SpectralAnalyzer
	scratch    []float64
}

// NewSummarizer creates a Summarizer for spectra captured at sampleRate
func NewSummarizer(sampleRate float64) *Summarizer {
	return &Summarizer{
		sampleRate: sampleRate,
		spectral:   analyzers.NewSpectralAnalyzer(int(math.Round(sampleRate))),
	}
}

// Summarize computes descriptors for spectrum. The transform size is taken
// as twice the bin count.
func (s *Summarizer) Summarize(spectrum SpectrumFrame) SpectrumSummary {
	var summary SpectrumSummary

	bins := spectrum.Bins()
	if bins == 0 {
		return summary
	}

	// a frame stops short of the Nyquist bin; a zero stands in for it so
	// the analyzer's bin frequencies are i*rate/(2*bins)
	if cap(s.scratch) < bins+1 {
		s.scratch = make([]float64, bins+1)
	}
	mags := s.scratch[:bins+1]
	mags[bins] = 0

	for i, m := range spectrum.Magnitudes {
		mag := float64(m)
		mags[i] = mag
		if mag > summary.PeakMagnitude {
			summary.PeakMagnitude = mag
			summary.PeakBin = i
		}
	}
	summary.PeakFrequency = float64(summary.PeakBin) * s.sampleRate / float64(2*bins)

	features := s.spectral.ExtractFrameFeatures(mags)
	summary.SpectralCentroid = features.SpectralCentroid
	summary.SpectralRolloff = features.SpectralRolloff
	summary.Energy = features.Energy

	return summary
}

// Summarize computes descriptors for one spectrum captured at sampleRate
func Summarize(spectrum SpectrumFrame, sampleRate float64) SpectrumSummary {
	return NewSummarizer(sampleRate).Summarize(spectrum)
}
