package audio

import (
	"fmt"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform computes a forward discrete Fourier transform of a fixed size
type Transform interface {
	// Size returns the transform length
	Size() int
	// Forward writes the unnormalized forward DFT of src into dst and returns dst.
	// Both slices must have length Size().
	Forward(dst, src []complex128) []complex128
}

// TransformFactory builds a Transform for a given size
type TransformFactory func(size int) (Transform, error)

// PlanTransform wraps a gonum FFT plan. The factorization and twiddle tables
// are computed once and reused for every frame. A plan is not safe for
// concurrent use.
type PlanTransform struct {
	plan *fourier.CmplxFFT
	size int
}

// NewPlanTransform creates a reusable FFT plan of the given size
func NewPlanTransform(size int) (Transform, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid transform size %d", size)
	}
	return &PlanTransform{
		plan: fourier.NewCmplxFFT(size),
		size: size,
	}, nil
}

// Size returns the transform length
func (t *PlanTransform) Size() int { return t.size }

// Forward computes the forward transform using the stored plan
func (t *PlanTransform) Forward(dst, src []complex128) []complex128 {
	return t.plan.Coefficients(dst, src)
}

// RadixTransform computes the transform with mjibson/go-dsp. Radix-2 factors
// for the size are prepared when the transform is built so the first frame
// does not pay for them.
type RadixTransform struct {
	size int
}

// NewRadixTransform creates a go-dsp backed transform of the given size
func NewRadixTransform(size int) (Transform, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid transform size %d", size)
	}
	if size&(size-1) == 0 {
		dspfft.EnsureRadix2Factors(size)
	}
	return &RadixTransform{size: size}, nil
}

// Size returns the transform length
func (t *RadixTransform) Size() int { return t.size }

// Forward computes the forward transform. go-dsp allocates its own output,
// which is copied into dst.
func (t *RadixTransform) Forward(dst, src []complex128) []complex128 {
	out := dspfft.FFT(src)
	if dst == nil {
		return out
	}
	copy(dst, out)
	return dst
}
