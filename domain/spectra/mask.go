package spectra

import (
	"skyxcorr/internal/errors"
)

// SkyMask is the merged usable-pixel set of one analysis, built once from the
// detector acceptance mask and the density-field mask. It is immutable after
// construction.
type SkyMask struct {
	valid      []bool
	validCount int
}

// BuildSkyMask merges a detector-acceptance mask and a field mask into one
// usable-pixel set. Both inputs mark usable pixels true; a pixel survives
// only when both masks keep it. The masks must cover the same pixelization.
func BuildSkyMask(detector, field []bool) (*SkyMask, error) {
	if len(detector) == 0 {
		return nil, errors.ConfigInvalid("detector mask is empty")
	}
	if len(detector) != len(field) {
		return nil, errors.ConfigInvalid("detector and field masks cover different pixelizations")
	}

	valid := make([]bool, len(detector))
	count := 0
	for i := range detector {
		if detector[i] && field[i] {
			valid[i] = true
			count++
		}
	}
	return &SkyMask{valid: valid, validCount: count}, nil
}

// ValidCount returns the number of usable pixels.
func (m *SkyMask) ValidCount() int {
	return m.validCount
}

// NumPixels returns the total pixel count of the pixelization.
func (m *SkyMask) NumPixels() int {
	return len(m.valid)
}

// Valid reports whether pixel i survives the mask.
func (m *SkyMask) Valid(i int) bool {
	return m.valid[i]
}

// SkyFraction returns the retained fraction of the sky. A fully masked sky
// yields zero; callers dividing by the fraction must reject that case.
func (m *SkyMask) SkyFraction() float64 {
	return float64(m.validCount) / float64(len(m.valid))
}

// CheckUsable fails explicitly when the mask retains no sky, so downstream
// sky-fraction corrections never divide by zero.
func (m *SkyMask) CheckUsable() error {
	if m.validCount == 0 {
		return errors.Numerical("sky mask is degenerate: no usable pixels remain")
	}
	return nil
}
