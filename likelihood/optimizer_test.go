package likelihood

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/testkit"
)

func TestNumericFitAgreesWithClosedForm(t *testing.T) {
	cfg := testkit.Config()

	for seed := int64(1); seed <= 6; seed++ {
		rng := rand.New(rand.NewSource(seed))

		engine, err := NewEngine(cfg, testkit.Mask(100), testkit.Templates(cfg, 0, 5), nil)
		require.NoError(t, err)
		spec := testkit.NoisySpectrum(cfg, 0, 0.3*5, rng)
		require.NoError(t, engine.IngestSpectra([]*spectra.CrossSpectrum{spec}, []float64{1000}))

		opt := NewOptimizer(cfg, engine, nil)
		analytic, err := opt.FitAnalytic()
		require.NoError(t, err)
		numeric, err := opt.Fit(rng)
		require.NoError(t, err)
		require.True(t, numeric.Converged)

		assert.InDelta(t, analytic.Fractions[0], numeric.Fractions[0], 1e-3, "seed %d", seed)
	}
}

func TestFitOnBackgroundDataYieldsZero(t *testing.T) {
	cfg := testkit.Config()
	engine := newTestEngine(t, cfg, 1, 5, 1) // data equals background exactly
	opt := NewOptimizer(cfg, engine, nil)

	res, err := opt.Fit(rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.True(t, res.Converged)

	assert.InDelta(t, 0, res.Fractions[0], 1e-3)
	assert.LessOrEqual(t, res.TS, 1e-6)
}

func TestFitRecoversFullSignal(t *testing.T) {
	cfg := testkit.Config()
	engine := newTestEngine(t, cfg, 0, 5, 5) // data equals the signal template
	opt := NewOptimizer(cfg, engine, nil)

	res, err := opt.Fit(rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	require.True(t, res.Converged)

	assert.InDelta(t, 1, res.Fractions[0], 1e-3)
	assert.Greater(t, res.TS, 4.0)
	assert.True(t, res.AtBoundary)
}

func TestTSNeverNegative(t *testing.T) {
	cfg := testkit.Config()

	for seed := int64(10); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		engine, err := NewEngine(cfg, testkit.Mask(100), testkit.Templates(cfg, 0, 5), nil)
		require.NoError(t, err)
		spec := testkit.NoisySpectrum(cfg, 0, 0, rng)
		require.NoError(t, engine.IngestSpectra([]*spectra.CrossSpectrum{spec}, []float64{1000}))

		res, err := NewOptimizer(cfg, engine, nil).Fit(rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.TS, 0.0)
	}
}

func TestFittedCountsScaleWithFraction(t *testing.T) {
	cfg := testkit.Config()
	engine := newTestEngine(t, cfg, 0, 5, 2.5)
	opt := NewOptimizer(cfg, engine, nil)

	res, err := opt.Fit(rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.InDelta(t, res.Fractions[0]*1000, res.FittedCounts[0], 1e-6)
}

func TestFitAnalyticRequiresDistinctTemplates(t *testing.T) {
	cfg := testkit.Config()
	engine := newTestEngine(t, cfg, 2, 2, 2) // signal identical to background
	_, err := NewOptimizer(cfg, engine, nil).FitAnalytic()
	assert.Error(t, err)
}

func TestFitFreeIndexStaysInBounds(t *testing.T) {
	cfg := testkit.Config()
	cfg.EbinMax = 3
	engine := newTestEngine(t, cfg, 0, 5, 2.5)
	opt := NewOptimizer(cfg, engine, nil)

	res, err := opt.FitFreeIndex(rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.True(t, res.HasIndex)

	for _, f := range res.Fractions {
		assert.GreaterOrEqual(t, f, -4.0)
		assert.LessOrEqual(t, f, 4.0)
	}
	assert.GreaterOrEqual(t, res.SpectralIndex, 1.5)
	assert.LessOrEqual(t, res.SpectralIndex, 4.0)
	assert.GreaterOrEqual(t, res.TS, 0.0)
}

func TestFitRequiresIngestedData(t *testing.T) {
	cfg := testkit.Config()
	engine, err := NewEngine(cfg, testkit.Mask(100), testkit.Templates(cfg, 0, 5), nil)
	require.NoError(t, err)

	opt := NewOptimizer(cfg, engine, nil)
	_, err = opt.Fit(rand.New(rand.NewSource(1)))
	assert.Error(t, err)
	_, err = opt.FitAnalytic()
	assert.Error(t, err)
}
