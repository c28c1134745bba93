package likelihood

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/testkit"
)

func TestEstimatorCorrectsForSkyFraction(t *testing.T) {
	cfg := testkit.Config()
	src := testSample(t, cfg, 200, 0.5)

	full, err := NewEstimator(cfg, testkit.Mask(100), nil).CrossSpectrum(context.Background(), src, 0)
	require.NoError(t, err)

	// Half the sky masked away doubles the corrected spectrum.
	half := make([]bool, 100)
	for i := 50; i < 100; i++ {
		half[i] = true
	}
	halfMask, err := spectra.BuildSkyMask(half, half)
	require.NoError(t, err)

	halved, err := NewEstimator(cfg, halfMask, nil).CrossSpectrum(context.Background(), src, 0)
	require.NoError(t, err)

	for i := range full.Values {
		assert.InDelta(t, 2*full.Values[i], halved.Values[i], 1e-9, "bin %d", i)
		assert.InDelta(t, 4*full.Cov.At(i, i), halved.Cov.At(i, i), 1e-9, "bin %d", i)
	}
}

func TestEstimatorRejectsDegenerateMask(t *testing.T) {
	cfg := testkit.Config()
	src := testSample(t, cfg, 50, 0.5)

	none := make([]bool, 100)
	none[0] = true // build a valid mask, then mask everything via the field
	empty, err := spectra.BuildSkyMask(none, make([]bool, 100))
	require.NoError(t, err)

	_, err = NewEstimator(cfg, empty, nil).CrossSpectrum(context.Background(), src, 0)
	assert.Error(t, err)
}

func TestEstimatorCoarseShape(t *testing.T) {
	cfg := testkit.Config()
	src := testSample(t, cfg, 50, 0.5)

	spec, err := NewEstimator(cfg, testkit.Mask(100), nil).CrossSpectrum(context.Background(), src, 0)
	require.NoError(t, err)

	assert.Len(t, spec.Values, testkit.NCoarse)
	assert.Len(t, spec.Centers, testkit.NCoarse)
	assert.Equal(t, testkit.NCoarse, spec.Cov.SymmetricDim())
	assert.Len(t, spec.Std(), testkit.NCoarse)
}
