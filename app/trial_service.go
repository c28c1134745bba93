package app

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/likelihood"
	"skyxcorr/ports"
)

// tsThresholds are the reference points reported in every distribution
// summary, in units of TS.
var tsThresholds = []float64{1, 4, 9, 16, 25}

// TrialService maps the empirical test-statistic distribution: it draws
// synthetic samples at a fixed injected fraction, runs the full ingest and
// fit per trial on a forked engine, and records the resulting TS values.
type TrialService struct {
	cfg    config.AnalysisConfig
	engine *likelihood.Engine
	trials ports.TrialGenerator
	store  ports.TSStore
	logger *internal.Logger
}

func NewTrialService(cfg config.AnalysisConfig, engine *likelihood.Engine, trials ports.TrialGenerator, store ports.TSStore, logger *internal.Logger) *TrialService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &TrialService{cfg: cfg, engine: engine, trials: trials, store: store, logger: logger}
}

// Run executes nTrials independent realizations at the injected fraction
// and appends their TS values under the model tag. Trials run across a
// bounded worker pool with pre-assigned seeds, so the recorded multiset is
// identical regardless of the worker count; failed trials surface as one
// aggregate error after the batch.
func (s *TrialService) Run(ctx context.Context, injected float64, nTrials int, model string) (*spectra.TSDistribution, error) {
	if nTrials < 1 {
		return nil, errors.ConfigInvalid("trial count must be positive")
	}

	seedStream := s.cfg.Stream(fmt.Sprintf("trials/%s/f%.4f", model, injected))
	seeds := make([]int64, nTrials)
	for i := range seeds {
		seeds[i] = seedStream.Int63()
	}

	values := make([]float64, nTrials)
	failures := make([]error, nTrials)
	sem := semaphore.NewWeighted(int64(s.cfg.Workers))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < nTrials; i++ {
		i := i
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			failures[i] = func() error {
				rng := rand.New(rand.NewSource(seeds[i]))
				src, err := s.trials.MixedTrial(injected, rng)
				if err != nil {
					return err
				}
				eng := s.engine.Fork()
				if err := eng.Ingest(ctx, src); err != nil {
					return err
				}
				fit, err := likelihood.NewOptimizer(s.cfg, eng, s.logger).Fit(rng)
				if err != nil {
					return err
				}
				if !fit.Converged {
					return errors.OptimizationFailure("trial fit did not converge: " + fit.Diagnostic)
				}
				values[i] = fit.TS
				return nil
			}()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.ResourceError("trial batch interrupted", err)
	}

	nFailed := 0
	var first error
	for _, err := range failures {
		if err != nil {
			nFailed++
			if first == nil {
				first = err
			}
		}
	}
	if nFailed > 0 {
		return nil, errors.ResourceError(
			fmt.Sprintf("%d of %d trials failed", nFailed, nTrials), first)
	}

	key := s.key(injected, model)
	if err := s.store.Append(key, values); err != nil {
		return nil, err
	}
	return s.Distribution(injected, model)
}

// Distribution summarizes every TS value recorded so far under the key.
func (s *TrialService) Distribution(injected float64, model string) (*spectra.TSDistribution, error) {
	values, err := s.store.Values(s.key(injected, model))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.NotFound("recorded trials for this model and fraction")
	}

	median, err := stats.Median(values)
	if err != nil {
		return nil, errors.Numerical("summarizing trial distribution failed")
	}
	p90, err := stats.Percentile(values, 90)
	if err != nil {
		return nil, errors.Numerical("summarizing trial distribution failed")
	}
	p99, err := stats.Percentile(values, 99)
	if err != nil {
		return nil, errors.Numerical("summarizing trial distribution failed")
	}

	above := make(map[float64]float64, len(tsThresholds))
	for _, threshold := range tsThresholds {
		n := 0
		for _, v := range values {
			if v > threshold {
				n++
			}
		}
		above[threshold] = float64(n) / float64(len(values))
	}

	return &spectra.TSDistribution{
		InjectedFraction: injected,
		Values:           values,
		Median:           median,
		P90:              p90,
		P99:              p99,
		FractionAbove:    above,
	}, nil
}

func (s *TrialService) key(injected float64, model string) ports.TSKey {
	return ports.TSKey{
		InjectedFraction: injected,
		FieldName:        s.cfg.FieldName,
		ExposureYears:    s.cfg.ExposureYears,
		Model:            model,
	}
}
