package synthetic

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyxcorr/internal/config"
	"skyxcorr/internal/testkit"
	"skyxcorr/ports"
)

func testGenerator(t *testing.T, cfg config.AnalysisConfig, n int, noise float64) *Generator {
	t.Helper()
	field, err := NewField(cfg.FieldName, PowerLawAuto(cfg.NFine, 1.0), UniformMask(100))
	require.NoError(t, err)

	counts := make([]int, cfg.Binning.NumBins())
	for i := range counts {
		counts[i] = n
	}
	gen, err := NewGenerator(cfg, field, testkit.Mask(100), counts, noise)
	require.NoError(t, err)
	return gen
}

func TestSignalTrialTracksTheFieldAutoCorrelation(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 2000, 0.2)

	src, err := gen.SignalTrial(rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	fine, err := src.CrossSpectrum(0)
	require.NoError(t, err)
	for l := 0; l < 10; l++ {
		assert.InDelta(t, 1.0/float64(l+1), fine[l], 0.03, "l=%d", l)
	}
}

func TestBackgroundTrialCentersOnZero(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 2000, 0.2)

	src, err := gen.BackgroundTrial(rand.New(rand.NewSource(12)))
	require.NoError(t, err)

	fine, err := src.CrossSpectrum(0)
	require.NoError(t, err)
	for l := range fine {
		assert.InDelta(t, 0, fine[l], 0.03, "l=%d", l)
	}
}

func TestMixedTrialInterpolates(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 2000, 0.2)

	src, err := gen.MixedTrial(0.5, rand.New(rand.NewSource(13)))
	require.NoError(t, err)

	fine, err := src.CrossSpectrum(0)
	require.NoError(t, err)
	for l := 0; l < 5; l++ {
		assert.InDelta(t, 0.5/float64(l+1), fine[l], 0.03, "l=%d", l)
	}
}

func TestMixedTrialRejectsBadFraction(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 100, 0.2)
	rng := rand.New(rand.NewSource(1))

	_, err := gen.MixedTrial(-0.1, rng)
	assert.Error(t, err)
	_, err = gen.MixedTrial(1.5, rng)
	assert.Error(t, err)
}

func TestSpectrumIsLinearInEvents(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 100, 0.5)

	src, err := gen.BackgroundTrial(rand.New(rand.NewSource(14)))
	require.NoError(t, err)
	events, err := src.Events(0)
	require.NoError(t, err)

	// The spectrum of the full list is the count-weighted mean of the
	// spectra of any partition.
	left, err := src.SpectrumFromEvents(events[:40], 0)
	require.NoError(t, err)
	right, err := src.SpectrumFromEvents(events[40:], 0)
	require.NoError(t, err)
	whole, err := src.CrossSpectrum(0)
	require.NoError(t, err)

	for l := range whole {
		combined := (40*left[l] + 60*right[l]) / 100
		assert.InDelta(t, combined, whole[l], 1e-12, "l=%d", l)
	}
}

func TestScrambledEventsPreserveEnergies(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 100, 0.5)

	src, err := gen.SignalTrial(rand.New(rand.NewSource(15)))
	require.NoError(t, err)
	original, err := src.Events(0)
	require.NoError(t, err)

	scrambled, err := src.ScrambledEvents(0, rand.New(rand.NewSource(16)))
	require.NoError(t, err)
	require.Len(t, scrambled, len(original))

	kernelChanged := false
	for i := range scrambled {
		assert.Equal(t, original[i].Log10Energy, scrambled[i].Log10Energy)
		if !assert.ObjectsAreEqual(original[i].Kernel, scrambled[i].Kernel) {
			kernelChanged = true
		}
	}
	assert.True(t, kernelChanged)
}

func TestScrambledSampleLosesTheCorrelation(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 2000, 0.2)

	observed, err := gen.SignalTrial(rand.New(rand.NewSource(17)))
	require.NoError(t, err)

	scrambler := NewScrambler(cfg, observed)
	trial, err := scrambler.BackgroundTrial(rand.New(rand.NewSource(18)))
	require.NoError(t, err)

	fine, err := trial.CrossSpectrum(0)
	require.NoError(t, err)
	for l := 0; l < 5; l++ {
		assert.InDelta(t, 0, fine[l], 0.03, "l=%d", l)
	}

	counts, err := trial.EventCounts()
	require.NoError(t, err)
	want, err := observed.EventCounts()
	require.NoError(t, err)
	assert.Equal(t, want, counts)
}

func TestScramblerRefusesSignalTrials(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 10, 0.5)
	observed, err := gen.BackgroundTrial(rand.New(rand.NewSource(19)))
	require.NoError(t, err)

	scrambler := NewScrambler(cfg, observed)
	rng := rand.New(rand.NewSource(20))
	_, err = scrambler.SignalTrial(rng)
	assert.Error(t, err)
	_, err = scrambler.MixedTrial(0.5, rng)
	assert.Error(t, err)
}

func TestParametricCovarianceShrinksWithSampleSize(t *testing.T) {
	cfg := testkit.Config()

	small, err := testGenerator(t, cfg, 100, 0.5).BackgroundTrial(rand.New(rand.NewSource(21)))
	require.NoError(t, err)
	large, err := testGenerator(t, cfg, 1600, 0.5).BackgroundTrial(rand.New(rand.NewSource(21)))
	require.NoError(t, err)

	smallCov, err := small.CrossSpectrumCovariance(0)
	require.NoError(t, err)
	largeCov, err := large.CrossSpectrumCovariance(0)
	require.NoError(t, err)

	// Variance of the mean kernel scales as 1/n.
	for l := 0; l < 5; l++ {
		ratio := smallCov.At(l, l) / largeCov.At(l, l)
		assert.InEpsilon(t, 16.0, ratio, 0.9, "l=%d", l)
	}
}

func TestFluxFromCountsScalesWithExposure(t *testing.T) {
	cfg := testkit.Config()
	gen := testGenerator(t, cfg, 100, 0.5)

	f1, err := gen.FluxFromCounts(100, 0)
	require.NoError(t, err)
	assert.Greater(t, f1, 0.0)

	doubled := cfg
	doubled.ExposureYears = 2 * cfg.ExposureYears
	gen2 := testGenerator(t, doubled, 100, 0.5)
	f2, err := gen2.FluxFromCounts(100, 0)
	require.NoError(t, err)
	assert.InDelta(t, f1/2, f2, 1e-18)

	_, err = gen.FluxFromCounts(10, 99)
	assert.Error(t, err)
}

var _ ports.TrialGenerator = (*Generator)(nil)
var _ ports.TrialGenerator = (*Scrambler)(nil)
var _ ports.EventSampleSource = (*Sample)(nil)
var _ ports.FieldSampleSource = (*Field)(nil)
var _ ports.DetectorSource = (*Detector)(nil)
