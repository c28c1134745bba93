package ports

import "math/rand"

// TrialGenerator produces synthetic event samples for template building,
// test-statistic distributions, and sensitivity studies. Implementations are
// deterministic given the supplied RNG.
type TrialGenerator interface {
	// BackgroundTrial returns a sample drawn from the null hypothesis:
	// events uncorrelated with the density field.
	BackgroundTrial(rng *rand.Rand) (EventSampleSource, error)

	// SignalTrial returns a sample in which every event traces the field.
	SignalTrial(rng *rand.Rand) (EventSampleSource, error)

	// MixedTrial returns a sample in which the given fraction of each
	// energy bin's events traces the field and the rest is background.
	MixedTrial(fraction float64, rng *rand.Rand) (EventSampleSource, error)

	// FluxFromCounts converts a fitted event count in an energy bin to a
	// physical flux at the bin's center energy.
	FluxFromCounts(counts float64, ebin int) (float64, error)
}
