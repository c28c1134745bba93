package ports

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Event is one detected sky event: its energy and its fine-multipole
// cross-correlation kernel against the density field. The sample spectrum of
// an energy bin is the mean kernel over that bin's events, which is what
// makes resampling the event list well defined.
type Event struct {
	Log10Energy float64
	Kernel      []float64
}

// EventSampleSource provides the observed event sample of one exposure:
// per-energy-bin cross spectra against the density field, event counts, and
// the event list itself for resampling.
type EventSampleSource interface {
	// CrossSpectrum returns the fine masked cross spectrum of the energy
	// bin, uncorrected for the retained sky fraction.
	CrossSpectrum(ebin int) ([]float64, error)

	// CrossSpectrumCovariance returns the parametric fine-multipole
	// covariance of the same estimate.
	CrossSpectrumCovariance(ebin int) (*mat.SymDense, error)

	// EventCounts returns the observed event count per energy bin.
	EventCounts() ([]float64, error)

	// Events returns the event list of one energy bin.
	Events(ebin int) ([]Event, error)

	// SpectrumFromEvents computes the fine cross spectrum of an arbitrary
	// event subset, so a resample of the list yields a resampled spectrum.
	SpectrumFromEvents(events []Event, ebin int) ([]float64, error)

	// ScrambledEvents returns a realization of the bin's events with sky
	// positions randomized, destroying any correlation with the field
	// while preserving the energy distribution.
	ScrambledEvents(ebin int, rng *rand.Rand) ([]Event, error)
}

// FieldSampleSource provides the density field side of the correlation: its
// harmonic content, its analytic autocorrelation, and its pixel mask.
type FieldSampleSource interface {
	Name() string

	// OverdensityHarmonics returns the field's harmonic coefficients, one
	// amplitude per fine multipole, for building signal realizations.
	OverdensityHarmonics() ([]float64, error)

	// AutoCorrelation returns the fine auto-power spectrum of the field
	// overdensity, used for the analytic signal template.
	AutoCorrelation() ([]float64, error)

	// Mask returns the field's usable-pixel mask, true where usable.
	Mask() ([]bool, error)
}

// DetectorSource provides the detector acceptance side of the analysis.
type DetectorSource interface {
	// Mask returns the detector acceptance mask, true where usable.
	Mask() ([]bool, error)

	// ExposureYears returns the livetime the sample was accumulated over.
	ExposureYears() float64
}
