// Package app wires the likelihood engine, templates, and stores into the
// two entry points of the pipeline: fitting an observed sample and mapping
// the test-statistic distribution over synthetic trials.
package app

import (
	"context"
	"math/rand"

	"github.com/google/uuid"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/likelihood"
	"skyxcorr/ports"
)

// AnalysisReport is the outcome of one fit over an ingested sample.
type AnalysisReport struct {
	RunID        uuid.UUID
	Fit          *spectra.FitResult
	ChiSquare    []float64
	Significance []float64
}

// AnalysisService owns one configured analysis: the merged sky mask and the
// templates are built at construction, samples are ingested and fit on
// demand.
type AnalysisService struct {
	cfg       config.AnalysisConfig
	logger    *internal.Logger
	mask      *spectra.SkyMask
	templates *spectra.TemplateSet
	engine    *likelihood.Engine
	optimizer *likelihood.Optimizer
	trials    ports.TrialGenerator
}

// NewAnalysisService merges the masks, builds (or loads) the templates, and
// prepares the engine. Everything heavyweight happens here; the returned
// service only ingests and fits.
func NewAnalysisService(ctx context.Context, cfg config.AnalysisConfig, detector ports.DetectorSource, field ports.FieldSampleSource, trials ports.TrialGenerator, cache ports.TemplateCache, logger *internal.Logger) (*AnalysisService, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}

	detMask, err := detector.Mask()
	if err != nil {
		return nil, errors.Wrap(err, "reading detector mask")
	}
	fieldMask, err := field.Mask()
	if err != nil {
		return nil, errors.Wrap(err, "reading field mask")
	}
	mask, err := spectra.BuildSkyMask(detMask, fieldMask)
	if err != nil {
		return nil, err
	}
	if err := mask.CheckUsable(); err != nil {
		return nil, err
	}
	logger.Info("sky mask retains %d of %d pixels (f_sky=%.3f)",
		mask.ValidCount(), mask.NumPixels(), mask.SkyFraction())

	builder := likelihood.NewTemplateBuilder(cfg, mask, field, trials, cache, logger)
	templates, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := likelihood.NewEngine(cfg, mask, templates, logger)
	if err != nil {
		return nil, err
	}

	return &AnalysisService{
		cfg:       cfg,
		logger:    logger,
		mask:      mask,
		templates: templates,
		engine:    engine,
		optimizer: likelihood.NewOptimizer(cfg, engine, logger),
		trials:    trials,
	}, nil
}

// Mask returns the merged sky mask.
func (s *AnalysisService) Mask() *spectra.SkyMask {
	return s.mask
}

// Templates returns the template set in use.
func (s *AnalysisService) Templates() *spectra.TemplateSet {
	return s.templates
}

// Engine exposes the underlying likelihood engine for sampling.
func (s *AnalysisService) Engine() *likelihood.Engine {
	return s.engine
}

// Ingest estimates and installs the sample's spectra. A second call
// replaces the previous sample.
func (s *AnalysisService) Ingest(ctx context.Context, src ports.EventSampleSource) error {
	return s.engine.Ingest(ctx, src)
}

// Run fits the ingested sample over [0,1] per active bin and reports the
// per-bin goodness of fit at the optimum as a z-score.
func (s *AnalysisService) Run(rng *rand.Rand) (*AnalysisReport, error) {
	fit, err := s.optimizer.Fit(rng)
	if err != nil {
		return nil, err
	}
	return s.report(fit)
}

// RunFreeIndex fits with the shared free spectral index.
func (s *AnalysisService) RunFreeIndex(rng *rand.Rand) (*AnalysisReport, error) {
	fit, err := s.optimizer.FitFreeIndex(rng)
	if err != nil {
		return nil, err
	}
	return s.report(fit)
}

func (s *AnalysisService) report(fit *spectra.FitResult) (*AnalysisReport, error) {
	report := &AnalysisReport{RunID: uuid.New(), Fit: fit}
	if !fit.Converged {
		s.logger.Warn("fit did not converge after %d restarts: %s", fit.Restarts, fit.Diagnostic)
		return report, nil
	}

	report.ChiSquare = make([]float64, len(fit.Fractions))
	report.Significance = make([]float64, len(fit.Fractions))
	for i, f := range fit.Fractions {
		chi2 := s.engine.ChiSquare(f, i)
		report.ChiSquare[i] = chi2
		report.Significance[i] = likelihood.Significance(chi2, s.engine.WindowSize())
	}

	fit.FittedFlux = make([]float64, len(fit.FittedCounts))
	for i, n := range fit.FittedCounts {
		ebin := s.cfg.EbinMin + i
		flux, err := s.trials.FluxFromCounts(n, ebin)
		if err != nil {
			s.logger.Debug("no flux conversion available: %v", err)
			fit.FittedFlux = nil
			break
		}
		fit.FittedFlux[i] = flux
	}
	return report, nil
}
