package synthetic

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// Scrambler turns an observed event sample into a background trial
// generator: each realization scrambles the sample's sky positions,
// destroying the field correlation while keeping the measured energy
// distribution. This is how the null-hypothesis template is built from
// data instead of simulation.
type Scrambler struct {
	cfg config.AnalysisConfig
	src ports.EventSampleSource
}

func NewScrambler(cfg config.AnalysisConfig, src ports.EventSampleSource) *Scrambler {
	return &Scrambler{cfg: cfg, src: src}
}

func (s *Scrambler) BackgroundTrial(rng *rand.Rand) (ports.EventSampleSource, error) {
	nEbins := s.cfg.Binning.NumBins()
	events := make([][]ports.Event, nEbins)
	for ebin := 0; ebin < nEbins; ebin++ {
		scrambled, err := s.src.ScrambledEvents(ebin, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "scrambling energy bin %d", ebin)
		}
		events[ebin] = scrambled
	}
	return &scrambledSample{base: s.src, events: events}, nil
}

// SignalTrial is unavailable: scrambled data carries no signal.
func (s *Scrambler) SignalTrial(rng *rand.Rand) (ports.EventSampleSource, error) {
	return nil, errors.ConfigInvalid("scrambled data provides only background realizations")
}

// MixedTrial is unavailable for the same reason.
func (s *Scrambler) MixedTrial(fraction float64, rng *rand.Rand) (ports.EventSampleSource, error) {
	return nil, errors.ConfigInvalid("scrambled data provides only background realizations")
}

// FluxFromCounts is unavailable: the scrambler has no exposure model.
func (s *Scrambler) FluxFromCounts(counts float64, ebin int) (float64, error) {
	return 0, errors.ConfigInvalid("scrambled data provides no flux conversion")
}

// scrambledSample serves spectra computed from the scrambled event list,
// delegating event-kernel arithmetic to the base sample.
type scrambledSample struct {
	base   ports.EventSampleSource
	events [][]ports.Event
}

func (s *scrambledSample) CrossSpectrum(ebin int) ([]float64, error) {
	events, err := s.binEvents(ebin)
	if err != nil {
		return nil, err
	}
	return s.base.SpectrumFromEvents(events, ebin)
}

func (s *scrambledSample) CrossSpectrumCovariance(ebin int) (*mat.SymDense, error) {
	return s.base.CrossSpectrumCovariance(ebin)
}

func (s *scrambledSample) EventCounts() ([]float64, error) {
	counts := make([]float64, len(s.events))
	for i, bin := range s.events {
		counts[i] = float64(len(bin))
	}
	return counts, nil
}

func (s *scrambledSample) Events(ebin int) ([]ports.Event, error) {
	events, err := s.binEvents(ebin)
	if err != nil {
		return nil, err
	}
	return append([]ports.Event(nil), events...), nil
}

func (s *scrambledSample) SpectrumFromEvents(events []ports.Event, ebin int) ([]float64, error) {
	return s.base.SpectrumFromEvents(events, ebin)
}

func (s *scrambledSample) ScrambledEvents(ebin int, rng *rand.Rand) ([]ports.Event, error) {
	return s.base.ScrambledEvents(ebin, rng)
}

func (s *scrambledSample) binEvents(ebin int) ([]ports.Event, error) {
	if ebin < 0 || ebin >= len(s.events) {
		return nil, errors.ConfigInvalid("energy bin out of range")
	}
	return s.events[ebin], nil
}
