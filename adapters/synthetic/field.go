// Package synthetic provides harmonic-kernel implementations of the sample
// ports: a density field with a known autocorrelation, a trial generator
// drawing Gaussian event kernels around it, and a scrambler that turns real
// data into background realizations. It backs both the test fixtures and
// sensitivity studies that need samples with known truth.
package synthetic

import (
	"math"

	"skyxcorr/internal/errors"
)

// Field is a density field defined directly by its harmonic content.
type Field struct {
	name      string
	harmonics []float64
	auto      []float64
	mask      []bool
}

// NewField builds a field from its fine auto-power spectrum and pixel mask.
// The harmonic amplitudes are the square roots of the auto spectrum.
func NewField(name string, auto []float64, mask []bool) (*Field, error) {
	if len(auto) == 0 {
		return nil, errors.ConfigInvalid("field auto spectrum is empty")
	}
	harmonics := make([]float64, len(auto))
	for l, c := range auto {
		if c < 0 {
			return nil, errors.ConfigInvalid("field auto spectrum has a negative entry")
		}
		harmonics[l] = math.Sqrt(c)
	}
	return &Field{
		name:      name,
		harmonics: harmonics,
		auto:      append([]float64(nil), auto...),
		mask:      append([]bool(nil), mask...),
	}, nil
}

// PowerLawAuto returns a smoothly falling auto spectrum C_l = amp/(l+1),
// the shape of a clustered density field at large scales.
func PowerLawAuto(nFine int, amp float64) []float64 {
	auto := make([]float64, nFine)
	for l := range auto {
		auto[l] = amp / float64(l+1)
	}
	return auto
}

func (f *Field) Name() string { return f.name }

func (f *Field) OverdensityHarmonics() ([]float64, error) {
	return append([]float64(nil), f.harmonics...), nil
}

func (f *Field) AutoCorrelation() ([]float64, error) {
	return append([]float64(nil), f.auto...), nil
}

func (f *Field) Mask() ([]bool, error) {
	return append([]bool(nil), f.mask...), nil
}

// Detector is a fixed acceptance mask with an exposure.
type Detector struct {
	mask  []bool
	years float64
}

func NewDetector(mask []bool, years float64) *Detector {
	return &Detector{mask: append([]bool(nil), mask...), years: years}
}

func (d *Detector) Mask() ([]bool, error) {
	return append([]bool(nil), d.mask...), nil
}

func (d *Detector) ExposureYears() float64 { return d.years }

// UniformMask returns an all-usable mask of n pixels.
func UniformMask(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

// BandMask returns an n-pixel mask with the first masked*n pixels excluded,
// a crude stand-in for a detector that cannot see part of the sky.
func BandMask(n int, masked float64) []bool {
	mask := make([]bool, n)
	cut := int(masked * float64(n))
	for i := cut; i < n; i++ {
		mask[i] = true
	}
	return mask
}
