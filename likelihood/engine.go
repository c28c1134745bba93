// Package likelihood implements the cross-correlation likelihood: per
// energy bin, the coarse-binned masked cross spectrum of the event sample
// against a density field is compared to a mixture of a background template
// and a signal template, and the mixture fraction is estimated.
package likelihood

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// binState is the cached evaluation state of one active energy bin: the
// template and data windows restricted to l >= Lmin, and the factorized
// covariance over that window.
type binState struct {
	data   []float64
	signal []float64
	bg     []float64

	chol   *mat.Cholesky
	logDet float64
	std    []float64
	count  float64
}

// Engine evaluates the mixture log-likelihood against ingested data. Build
// it once per analysis, ingest a sample, then evaluate; evaluation is pure
// and safe for concurrent use. Ingesting again replaces the data state.
type Engine struct {
	cfg       config.AnalysisConfig
	mask      *spectra.SkyMask
	templates *spectra.TemplateSet
	estimator *Estimator
	logger    *internal.Logger

	// sigWin and bgWin are the template windows shared by every ingest,
	// indexed by active bin.
	sigWin [][]float64
	bgWin  [][]float64

	lminCoarse int
	nCoarse    int
	nWindow    int
	refEnergy  float64

	bins     []binState
	ingested bool
}

// NewEngine validates the template set against the configured binning and
// precomputes the restricted template windows.
func NewEngine(cfg config.AnalysisConfig, mask *spectra.SkyMask, templates *spectra.TemplateSet, logger *internal.Logger) (*Engine, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	nCoarse := cfg.MultipoleBinning().NumBins(cfg.NFine)
	if err := templates.Validate(cfg.Binning.NumBins(), nCoarse); err != nil {
		return nil, err
	}
	lminCoarse := cfg.Lmin / cfg.LbinWidth
	if lminCoarse >= nCoarse {
		return nil, errors.ConfigInvalid("minimum multipole excludes every coarse bin")
	}

	e := &Engine{
		cfg:        cfg,
		mask:       mask,
		templates:  templates,
		estimator:  NewEstimator(cfg, mask, logger),
		logger:     logger,
		lminCoarse: lminCoarse,
		nCoarse:    nCoarse,
		nWindow:    nCoarse - lminCoarse,
		refEnergy:  cfg.Binning.GeometricCenter(cfg.EbinMin, cfg.EbinMax),
	}
	for ebin := cfg.EbinMin; ebin < cfg.EbinMax; ebin++ {
		e.sigWin = append(e.sigWin, templates.SignalMean[ebin][lminCoarse:])
		e.bgWin = append(e.bgWin, templates.BackgroundMean[ebin][lminCoarse:])
	}
	return e, nil
}

// Ingest estimates the coarse cross spectrum of every active energy bin from
// the sample source and caches the factorized covariances.
func (e *Engine) Ingest(ctx context.Context, src ports.EventSampleSource) error {
	counts, err := src.EventCounts()
	if err != nil {
		return errors.Wrap(err, "reading event counts")
	}
	if len(counts) != e.cfg.Binning.NumBins() {
		return errors.DataError("event counts do not match the energy binning")
	}

	specs := make([]*spectra.CrossSpectrum, 0, e.cfg.NumActiveBins())
	active := make([]float64, 0, e.cfg.NumActiveBins())
	for ebin := e.cfg.EbinMin; ebin < e.cfg.EbinMax; ebin++ {
		spec, err := e.estimator.CrossSpectrum(ctx, src, ebin)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
		active = append(active, counts[ebin])
	}
	return e.IngestSpectra(specs, active)
}

// IngestSpectra installs already-estimated coarse spectra, one per active
// energy bin in order, with the observed event count per bin. The covariance
// of each spectrum is restricted to the likelihood window, reduced per the
// configured covariance mode, and Cholesky-factorized once.
func (e *Engine) IngestSpectra(specs []*spectra.CrossSpectrum, counts []float64) error {
	if len(specs) != e.cfg.NumActiveBins() || len(counts) != len(specs) {
		return errors.DataError("spectrum set does not match the active energy bins")
	}

	bins := make([]binState, len(specs))
	for i, spec := range specs {
		if len(spec.Values) != e.nCoarse {
			return errors.DataError("cross spectrum does not match the coarse binning")
		}
		if spec.Cov == nil || spec.Cov.SymmetricDim() != e.nCoarse {
			return errors.DataError("cross-spectrum covariance does not match the coarse binning")
		}

		window := spec.Cov.SliceSym(e.lminCoarse, e.nCoarse).(*mat.SymDense)
		if e.cfg.CovMode == config.CovDiagonal {
			diag := mat.NewSymDense(e.nWindow, nil)
			for j := 0; j < e.nWindow; j++ {
				diag.SetSym(j, j, window.At(j, j))
			}
			window = diag
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(window); !ok {
			return errors.Numerical("cross-spectrum covariance is not positive definite")
		}

		std := make([]float64, e.nWindow)
		for j := range std {
			std[j] = math.Sqrt(window.At(j, j))
		}

		bins[i] = binState{
			data:   spec.Values[e.lminCoarse:],
			signal: e.sigWin[i],
			bg:     e.bgWin[i],
			chol:   &chol,
			logDet: chol.LogDet(),
			std:    std,
			count:  counts[i],
		}
	}

	e.bins = bins
	e.ingested = true
	return nil
}

// Ingested reports whether the engine holds data.
func (e *Engine) Ingested() bool {
	return e.ingested
}

// Counts returns the observed event count per active energy bin.
func (e *Engine) Counts() []float64 {
	out := make([]float64, len(e.bins))
	for i := range e.bins {
		out[i] = e.bins[i].count
	}
	return out
}

// LogLikelihoodBin evaluates one active bin at fraction f: the multivariate
// normal log-density of the data around the mixture mean f*S + (1-f)*B.
func (e *Engine) LogLikelihoodBin(f float64, bin int) float64 {
	b := &e.bins[bin]
	d := mat.NewVecDense(e.nWindow, nil)
	for j := 0; j < e.nWindow; j++ {
		mean := f*b.signal[j] + (1-f)*b.bg[j]
		d.SetVec(j, b.data[j]-mean)
	}
	return e.logDensity(b, d)
}

// LogLikelihood evaluates the joint log-likelihood of one fraction per
// active bin, summed over bins.
func (e *Engine) LogLikelihood(f []float64) float64 {
	total := 0.0
	for i := range e.bins {
		total += e.LogLikelihoodBin(f[i], i)
	}
	return total
}

// LogLikelihoodFreeIndex evaluates the extended parameter vector
// (f_0..f_{k-1}, gamma): the signal template of each bin is rescaled by
// (E_bin/E_ref)^(gamma_ref - gamma) before mixing, tilting the template
// built at the reference index toward the candidate index.
func (e *Engine) LogLikelihoodFreeIndex(params []float64) float64 {
	k := len(e.bins)
	gamma := params[k]
	total := 0.0
	for i := range e.bins {
		ebin := e.cfg.EbinMin + i
		scale := math.Pow(e.cfg.Binning.Center(ebin)/e.refEnergy, e.cfg.Gamma-gamma)
		b := &e.bins[i]
		d := mat.NewVecDense(e.nWindow, nil)
		for j := 0; j < e.nWindow; j++ {
			mean := params[i]*scale*b.signal[j] + (1-params[i])*b.bg[j]
			d.SetVec(j, b.data[j]-mean)
		}
		total += e.logDensity(b, d)
	}
	return total
}

// ChiSquare returns the Mahalanobis distance of one active bin's data from
// the mixture mean at fraction f. Against the factorized covariance it is
// chi-squared distributed with one degree of freedom per coarse bin.
func (e *Engine) ChiSquare(f float64, bin int) float64 {
	b := &e.bins[bin]
	d := mat.NewVecDense(e.nWindow, nil)
	for j := 0; j < e.nWindow; j++ {
		mean := f*b.signal[j] + (1-f)*b.bg[j]
		d.SetVec(j, b.data[j]-mean)
	}
	return e.quadForm(b, d)
}

// WindowSize returns the number of coarse bins entering each bin's
// likelihood.
func (e *Engine) WindowSize() int {
	return e.nWindow
}

// NumBins returns the number of active energy bins.
func (e *Engine) NumBins() int {
	return len(e.bins)
}

// Fork returns an engine sharing the immutable configuration, mask, and
// template windows, with empty data state. Forks ingest and evaluate
// independently, which is what per-trial parallel fits need.
func (e *Engine) Fork() *Engine {
	clone := *e
	clone.bins = nil
	clone.ingested = false
	return &clone
}

func (e *Engine) logDensity(b *binState, d *mat.VecDense) float64 {
	quad := e.quadForm(b, d)
	n := float64(e.nWindow)
	return -0.5 * (n*math.Log(2*math.Pi) + b.logDet + quad)
}

func (e *Engine) quadForm(b *binState, d *mat.VecDense) float64 {
	var x mat.VecDense
	if err := b.chol.SolveVecTo(&x, d); err != nil {
		// Factorization succeeded at ingest, so the solve cannot fail
		// except through numerical degeneracy; surface it as +Inf
		// distance rather than a panic mid-optimization.
		e.logger.Warn("covariance solve failed: %v", err)
		return math.Inf(1)
	}
	return mat.Dot(d, &x)
}
