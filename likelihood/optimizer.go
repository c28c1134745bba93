package likelihood

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
)

const (
	boundaryTol  = 1e-6
	maxRestarts  = 3
	tsClampFloor = 0.0
)

// Optimizer maximizes the ingested likelihood over the correlated fraction
// of each active energy bin, with or without a shared free spectral index.
type Optimizer struct {
	cfg    config.AnalysisConfig
	engine *Engine
	logger *internal.Logger
}

func NewOptimizer(cfg config.AnalysisConfig, engine *Engine, logger *internal.Logger) *Optimizer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Optimizer{cfg: cfg, engine: engine, logger: logger}
}

// FitAnalytic solves the per-bin weighted least squares in closed form
// against the diagonal uncertainties. It ignores off-diagonal covariance,
// so it is exact in diagonal mode and a fast approximation otherwise.
func (o *Optimizer) FitAnalytic() (*spectra.FitResult, error) {
	if !o.engine.Ingested() {
		return nil, errors.DataError("no sample ingested")
	}

	fractions := make([]float64, o.engine.NumBins())
	for i := range fractions {
		b := &o.engine.bins[i]
		num, den := 0.0, 0.0
		for j := range b.data {
			if b.std[j] == 0 {
				continue
			}
			w := 1 / (b.std[j] * b.std[j])
			ds := b.signal[j] - b.bg[j]
			num += ds * (b.data[j] - b.bg[j]) * w
			den += ds * ds * w
		}
		if den == 0 {
			return nil, errors.Numerical("signal and background templates are identical")
		}
		fractions[i] = num / den
	}

	res := o.resultFor(fractions)
	res.Converged = true
	return res, nil
}

// Fit maximizes the likelihood numerically over [0,1] per active bin,
// starting near zero and restarting from fresh random points on failure.
// A failed fit is reported on the result, not as an error.
func (o *Optimizer) Fit(rng *rand.Rand) (*spectra.FitResult, error) {
	if !o.engine.Ingested() {
		return nil, errors.DataError("no sample ingested")
	}

	k := o.engine.NumBins()
	lo := make([]float64, k)
	hi := make([]float64, k)
	for i := range hi {
		hi[i] = 1
	}
	obj := func(x []float64) float64 {
		if outside(x, lo, hi) {
			return math.Inf(1)
		}
		return -o.engine.LogLikelihood(x)
	}
	start := func() []float64 {
		x := make([]float64, k)
		for i := range x {
			x[i] = clamp(0.1+0.1*rng.NormFloat64(), lo[i]+boundaryTol, hi[i]-boundaryTol)
		}
		return x
	}

	best, restarts, diag := o.minimize(obj, start)
	if best == nil {
		return &spectra.FitResult{Converged: false, Restarts: restarts, Diagnostic: diag}, nil
	}

	res := o.resultFor(best)
	res.Converged = true
	res.Restarts = restarts
	res.AtBoundary = atBoundary(best, lo, hi)
	return res, nil
}

// FitFreeIndex maximizes over an extended vector: one fraction per bin in
// [-4,4] plus a shared spectral index in [GammaMin,GammaMax]. The widened
// fraction box lets background fluctuations pull below zero instead of
// piling the fit on a bound.
func (o *Optimizer) FitFreeIndex(rng *rand.Rand) (*spectra.FitResult, error) {
	if !o.engine.Ingested() {
		return nil, errors.DataError("no sample ingested")
	}

	k := o.engine.NumBins()
	lo := make([]float64, k+1)
	hi := make([]float64, k+1)
	for i := 0; i < k; i++ {
		lo[i], hi[i] = -4, 4
	}
	lo[k], hi[k] = config.GammaMin, config.GammaMax

	obj := func(x []float64) float64 {
		if outside(x, lo, hi) {
			return math.Inf(1)
		}
		return -o.engine.LogLikelihoodFreeIndex(x)
	}
	start := func() []float64 {
		x := make([]float64, k+1)
		for i := 0; i < k; i++ {
			x[i] = clamp(0.5+0.1*rng.NormFloat64(), lo[i]+boundaryTol, hi[i]-boundaryTol)
		}
		x[k] = 2.5
		return x
	}

	best, restarts, diag := o.minimize(obj, start)
	if best == nil {
		return &spectra.FitResult{Converged: false, Restarts: restarts, Diagnostic: diag}, nil
	}

	res := o.resultFor(best[:k])
	res.SpectralIndex = best[k]
	res.HasIndex = true
	res.Converged = true
	res.Restarts = restarts
	res.AtBoundary = atBoundary(best, lo, hi)

	// TS against the same extended model at zero fractions.
	zero := make([]float64, k+1)
	zero[k] = best[k]
	ts := 2 * (o.engine.LogLikelihoodFreeIndex(best) - o.engine.LogLikelihoodFreeIndex(zero))
	res.TS, res.TSClamped = clampTS(ts)
	return res, nil
}

// minimize runs Nelder-Mead from a fresh start up to maxRestarts+1 times and
// returns the best converged point, the restart count, and the last failure
// diagnostic when nothing converged.
func (o *Optimizer) minimize(obj func([]float64) float64, start func() []float64) ([]float64, int, string) {
	problem := optimize.Problem{Func: obj}

	diag := ""
	for attempt := 0; attempt <= maxRestarts; attempt++ {
		res, err := optimize.Minimize(problem, start(), nil, &optimize.NelderMead{})
		if err != nil {
			diag = err.Error()
			o.logger.Debug("minimization attempt %d failed: %v", attempt+1, err)
			continue
		}
		return append([]float64(nil), res.X...), attempt, ""
	}
	return nil, maxRestarts, diag
}

// resultFor fills the shared FitResult fields for a fraction vector.
func (o *Optimizer) resultFor(fractions []float64) *spectra.FitResult {
	zero := make([]float64, len(fractions))
	ts := 2 * (o.engine.LogLikelihood(fractions) - o.engine.LogLikelihood(zero))
	tsVal, clamped := clampTS(ts)

	counts := o.engine.Counts()
	fitted := make([]float64, len(fractions))
	for i := range fitted {
		fitted[i] = fractions[i] * counts[i]
	}

	return &spectra.FitResult{
		Fractions:    append([]float64(nil), fractions...),
		TS:           tsVal,
		TSClamped:    clamped,
		FittedCounts: fitted,
	}
}

func clampTS(ts float64) (float64, bool) {
	if ts < tsClampFloor {
		return tsClampFloor, true
	}
	return ts, false
}

func outside(x, lo, hi []float64) bool {
	for i := range x {
		if x[i] < lo[i] || x[i] > hi[i] {
			return true
		}
	}
	return false
}

func atBoundary(x, lo, hi []float64) bool {
	for i := range x {
		if x[i]-lo[i] < boundaryTol || hi[i]-x[i] < boundaryTol {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
