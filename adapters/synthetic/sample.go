package synthetic

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// Sample is an event sample whose cross spectrum is the mean of its events'
// harmonic kernels. Linearity in the events is what makes resampling and
// scrambling exact: any subset's spectrum is the subset's mean kernel.
type Sample struct {
	events [][]ports.Event
	nFine  int
	noise  float64
}

// NewSample wraps an existing per-energy-bin event list.
func NewSample(events [][]ports.Event, nFine int) *Sample {
	return &Sample{events: events, nFine: nFine}
}

func (s *Sample) CrossSpectrum(ebin int) ([]float64, error) {
	bin, err := s.bin(ebin)
	if err != nil {
		return nil, err
	}
	return s.meanKernel(bin)
}

func (s *Sample) SpectrumFromEvents(events []ports.Event, ebin int) ([]float64, error) {
	if _, err := s.bin(ebin); err != nil {
		return nil, err
	}
	return s.meanKernel(events)
}

// CrossSpectrumCovariance is the parametric covariance of the mean kernel:
// the sample covariance of the events' kernels divided by the event count.
func (s *Sample) CrossSpectrumCovariance(ebin int) (*mat.SymDense, error) {
	bin, err := s.bin(ebin)
	if err != nil {
		return nil, err
	}
	n := len(bin)
	if n < 2 {
		return nil, errors.DataError("covariance needs at least two events")
	}

	kernels := mat.NewDense(n, s.nFine, nil)
	for i, ev := range bin {
		kernels.SetRow(i, ev.Kernel)
	}
	cov := mat.NewSymDense(s.nFine, nil)
	stat.CovarianceMatrix(cov, kernels, nil)
	cov.ScaleSym(1/float64(n), cov)
	return cov, nil
}

func (s *Sample) EventCounts() ([]float64, error) {
	counts := make([]float64, len(s.events))
	for i, bin := range s.events {
		counts[i] = float64(len(bin))
	}
	return counts, nil
}

func (s *Sample) Events(ebin int) ([]ports.Event, error) {
	bin, err := s.bin(ebin)
	if err != nil {
		return nil, err
	}
	return append([]ports.Event(nil), bin...), nil
}

// ScrambledEvents redraws every event's kernel from the isotropic
// background distribution while keeping its energy, which is what
// randomizing sky positions does to a real sample.
func (s *Sample) ScrambledEvents(ebin int, rng *rand.Rand) ([]ports.Event, error) {
	bin, err := s.bin(ebin)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Event, len(bin))
	for i, ev := range bin {
		kernel := make([]float64, s.nFine)
		for l := range kernel {
			kernel[l] = s.noise * rng.NormFloat64()
		}
		out[i] = ports.Event{Log10Energy: ev.Log10Energy, Kernel: kernel}
	}
	return out, nil
}

func (s *Sample) bin(ebin int) ([]ports.Event, error) {
	if ebin < 0 || ebin >= len(s.events) {
		return nil, errors.ConfigInvalid("energy bin out of range")
	}
	return s.events[ebin], nil
}

func (s *Sample) meanKernel(events []ports.Event) ([]float64, error) {
	if len(events) == 0 {
		return nil, errors.DataError("energy bin has no events")
	}
	mean := make([]float64, s.nFine)
	for _, ev := range events {
		if len(ev.Kernel) != s.nFine {
			return nil, errors.DataError("event kernel has wrong multipole count")
		}
		for l, v := range ev.Kernel {
			mean[l] += v
		}
	}
	for l := range mean {
		mean[l] /= float64(len(events))
	}
	return mean, nil
}
