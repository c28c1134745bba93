// Package testkit builds small deterministic fixtures: a reduced multipole
// range, a field with a known autocorrelation, and template sets with known
// background and signal levels, so likelihood behavior can be checked
// against hand-computable expectations.
package testkit

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/config"
)

// NFine is the reduced fine-multipole count of the fixtures: width 4 yields
// ten coarse bins.
const NFine = 41

// NCoarse is the coarse bin count of the fixtures.
const NCoarse = 10

// Config returns a small, fully in-memory analysis configuration.
func Config() config.AnalysisConfig {
	cfg := config.Default()
	cfg.FieldName = "fixture"
	cfg.NFine = NFine
	cfg.Lmin = 0
	cfg.LbinWidth = 4
	cfg.EbinMin = 0
	cfg.EbinMax = 1
	cfg.BootstrapIter = 50
	cfg.TemplateTrials = 20
	cfg.Workers = 2
	cfg.BaseSeed = 1234
	return cfg
}

// Mask returns a fully usable sky of n pixels.
func Mask(n int) *spectra.SkyMask {
	all := make([]bool, n)
	for i := range all {
		all[i] = true
	}
	mask, err := spectra.BuildSkyMask(all, all)
	if err != nil {
		panic(err)
	}
	return mask
}

// Templates returns a template set with flat background and signal levels:
// background bgLevel everywhere, signal sigLevel everywhere, unit spread.
func Templates(cfg config.AnalysisConfig, bgLevel, sigLevel float64) *spectra.TemplateSet {
	nEbins := cfg.Binning.NumBins()
	nCoarse := cfg.MultipoleBinning().NumBins(cfg.NFine)

	flat := func(level float64) [][]float64 {
		rows := make([][]float64, nEbins)
		for e := range rows {
			row := make([]float64, nCoarse)
			for l := range row {
				row[l] = level
			}
			rows[e] = row
		}
		return rows
	}

	counts := make([]float64, nEbins)
	for e := range counts {
		counts[e] = 1000
	}
	return &spectra.TemplateSet{
		BackgroundMean:   flat(bgLevel),
		BackgroundStd:    flat(1),
		SignalMean:       flat(sigLevel),
		SignalStd:        flat(1),
		BackgroundCounts: counts,
	}
}

// Spectrum returns a coarse cross spectrum at a flat level with independent
// unit variances.
func Spectrum(cfg config.AnalysisConfig, ebin int, level float64) *spectra.CrossSpectrum {
	return NoisySpectrum(cfg, ebin, level, nil)
}

// NoisySpectrum returns a coarse spectrum at a flat level with independent
// unit variances, plus standard normal noise when an RNG is given.
func NoisySpectrum(cfg config.AnalysisConfig, ebin int, level float64, rng *rand.Rand) *spectra.CrossSpectrum {
	nCoarse := cfg.MultipoleBinning().NumBins(cfg.NFine)
	centers := make([]float64, nCoarse)
	values := make([]float64, nCoarse)
	cov := mat.NewSymDense(nCoarse, nil)
	for i := 0; i < nCoarse; i++ {
		centers[i] = float64(i*cfg.LbinWidth) + float64(cfg.LbinWidth-1)/2
		values[i] = level
		if rng != nil {
			values[i] += rng.NormFloat64()
		}
		cov.SetSym(i, i, 1)
	}
	return &spectra.CrossSpectrum{Ebin: ebin, Centers: centers, Values: values, Cov: cov}
}
