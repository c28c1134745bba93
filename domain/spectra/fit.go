package spectra

// FitResult is the outcome of one maximum-likelihood fit. It is ephemeral:
// a new ingestion invalidates it.
type FitResult struct {
	// Fractions is the best-fit correlated fraction per active energy bin.
	Fractions []float64

	// SpectralIndex is the fitted shared index; meaningful only when
	// HasIndex is true (free-index fits).
	SpectralIndex float64
	HasIndex      bool

	// TS is the likelihood-ratio test statistic 2*(logL(fhat)-logL(0)),
	// clamped at zero. TSClamped records that the clamp fired.
	TS        float64
	TSClamped bool

	// Converged is false when the minimizer failed to converge; AtBoundary
	// is set when the optimum sits on a domain bound, which is reported
	// distinctly from non-convergence.
	Converged  bool
	AtBoundary bool
	Restarts   int

	// Diagnostic carries the optimizer's failure detail when Converged is
	// false.
	Diagnostic string

	// FittedCounts is fhat times the observed event count per bin;
	// FittedFlux is its physical flux conversion when a trial generator
	// provides one.
	FittedCounts []float64
	FittedFlux   []float64
}

// TSDistribution summarizes an empirical test-statistic distribution built
// from repeated synthetic trials.
type TSDistribution struct {
	InjectedFraction float64
	Values           []float64
	Median           float64
	P90              float64
	P99              float64

	// FractionAbove maps a TS threshold to the fraction of trials
	// exceeding it.
	FractionAbove map[float64]float64
}
