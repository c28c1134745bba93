package synthetic

import (
	"math"
	"math/rand"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// Generator draws synthetic event samples against a Field. Every event
// carries a Gaussian harmonic kernel: signal events center on the masked
// field autocorrelation, background events on zero, so a sample with
// fraction f of signal events has expected sky-corrected cross spectrum
// f times the field autocorrelation.
type Generator struct {
	cfg   config.AnalysisConfig
	field *Field

	// counts is the expected event count per energy bin; fixed per trial.
	counts []int

	// noise is the per-multipole kernel standard deviation at masked level.
	noise float64

	skyFraction float64

	// aeff is the reference effective area (m^2) for counts-to-flux
	// conversion.
	aeff float64
}

// NewGenerator builds a generator for the field under the given mask. The
// counts slice gives the per-energy-bin event count of one realization.
func NewGenerator(cfg config.AnalysisConfig, field *Field, mask *spectra.SkyMask, counts []int, noise float64) (*Generator, error) {
	if len(counts) != cfg.Binning.NumBins() {
		return nil, errors.ConfigInvalid("trial counts do not match the energy binning")
	}
	for _, n := range counts {
		if n < 1 {
			return nil, errors.ConfigInvalid("trial counts must be positive")
		}
	}
	if err := mask.CheckUsable(); err != nil {
		return nil, err
	}
	return &Generator{
		cfg:         cfg,
		field:       field,
		counts:      append([]int(nil), counts...),
		noise:       noise,
		skyFraction: mask.SkyFraction(),
		aeff:        1.0,
	}, nil
}

func (g *Generator) BackgroundTrial(rng *rand.Rand) (ports.EventSampleSource, error) {
	return g.MixedTrial(0, rng)
}

func (g *Generator) SignalTrial(rng *rand.Rand) (ports.EventSampleSource, error) {
	return g.MixedTrial(1, rng)
}

// MixedTrial draws a sample in which a fraction of each bin's events carries
// the field's signature and the rest is isotropic background.
func (g *Generator) MixedTrial(fraction float64, rng *rand.Rand) (ports.EventSampleSource, error) {
	if fraction < 0 || fraction > 1 {
		return nil, errors.ConfigInvalid("injected fraction must lie in [0,1]")
	}
	auto, err := g.field.AutoCorrelation()
	if err != nil {
		return nil, err
	}

	nEbins := g.cfg.Binning.NumBins()
	events := make([][]ports.Event, nEbins)
	for ebin := 0; ebin < nEbins; ebin++ {
		n := g.counts[ebin]
		nSig := int(math.Round(fraction * float64(n)))
		bin := make([]ports.Event, n)
		for i := 0; i < n; i++ {
			logE := g.cfg.Binning.LogEdges[ebin] +
				rng.Float64()*(g.cfg.Binning.LogEdges[ebin+1]-g.cfg.Binning.LogEdges[ebin])
			kernel := make([]float64, len(auto))
			for l := range kernel {
				mean := 0.0
				if i < nSig {
					mean = g.skyFraction * auto[l]
				}
				kernel[l] = mean + g.noise*rng.NormFloat64()
			}
			bin[i] = ports.Event{Log10Energy: logE, Kernel: kernel}
		}
		events[ebin] = bin
	}
	return &Sample{events: events, nFine: len(auto), noise: g.noise}, nil
}

// FluxFromCounts converts a fitted event count into dN/dE at the bin's
// center energy, spread over the bin's energy width and the exposure.
func (g *Generator) FluxFromCounts(counts float64, ebin int) (float64, error) {
	if ebin < 0 || ebin >= g.cfg.Binning.NumBins() {
		return 0, errors.ConfigInvalid("energy bin out of range")
	}
	lo := math.Pow(10, g.cfg.Binning.LogEdges[ebin])
	hi := math.Pow(10, g.cfg.Binning.LogEdges[ebin+1])
	livetime := g.cfg.ExposureYears * spectra.SecondsPerYear
	return counts / (g.aeff * livetime * (hi - lo)), nil
}
