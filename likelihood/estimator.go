package likelihood

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/internal/rebin"
	"skyxcorr/ports"
)

// Estimator turns the raw masked cross spectrum of one energy bin into the
// coarse-binned, sky-fraction-corrected spectrum the likelihood consumes,
// with its covariance from the configured error mode.
type Estimator struct {
	cfg       config.AnalysisConfig
	mask      *spectra.SkyMask
	bootstrap *Bootstrap
	logger    *internal.Logger
}

func NewEstimator(cfg config.AnalysisConfig, mask *spectra.SkyMask, logger *internal.Logger) *Estimator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Estimator{
		cfg:       cfg,
		mask:      mask,
		bootstrap: NewBootstrap(cfg, mask, logger),
		logger:    logger,
	}
}

// CrossSpectrum estimates the coarse cross spectrum of one energy bin.
// The masked estimate is divided by the retained sky fraction, then block
// averaged; the covariance comes from the analytic estimate (parametric
// mode) or from resampling the event list (bootstrap mode).
func (e *Estimator) CrossSpectrum(ctx context.Context, src ports.EventSampleSource, ebin int) (*spectra.CrossSpectrum, error) {
	if err := e.mask.CheckUsable(); err != nil {
		return nil, err
	}
	fsky := e.mask.SkyFraction()

	fine, err := src.CrossSpectrum(ebin)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cross spectrum of energy bin %d", ebin)
	}
	corrected := make([]float64, len(fine))
	for i, v := range fine {
		corrected[i] = v / fsky
	}

	centers, values, err := rebin.Rebin(corrected, e.cfg.LbinWidth)
	if err != nil {
		return nil, err
	}

	var cov *mat.SymDense
	switch e.cfg.ErrorMode {
	case config.ErrBootstrap:
		cov, err = e.bootstrap.Covariance(ctx, src, ebin)
		if err != nil {
			return nil, err
		}
	default:
		fineCov, err := src.CrossSpectrumCovariance(ebin)
		if err != nil {
			return nil, errors.Wrapf(err, "reading covariance of energy bin %d", ebin)
		}
		scaled := mat.NewSymDense(fineCov.SymmetricDim(), nil)
		scaled.ScaleSym(1/(fsky*fsky), fineCov)
		cov, err = rebin.RebinCovariance(scaled, e.cfg.LbinWidth)
		if err != nil {
			return nil, err
		}
	}

	if len(values) != cov.SymmetricDim() {
		return nil, errors.DataError("covariance does not match the coarse spectrum")
	}
	return &spectra.CrossSpectrum{Ebin: ebin, Centers: centers, Values: values, Cov: cov}, nil
}
