package likelihood

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/internal/rebin"
	"skyxcorr/ports"
)

// TemplateBuilder produces the background and signal expectation spectra of
// one analysis. Templates depend only on the field sample, the exposure,
// and the binnings, so they are cached across runs.
type TemplateBuilder struct {
	cfg    config.AnalysisConfig
	mask   *spectra.SkyMask
	field  ports.FieldSampleSource
	trials ports.TrialGenerator
	cache  ports.TemplateCache
	logger *internal.Logger
}

func NewTemplateBuilder(cfg config.AnalysisConfig, mask *spectra.SkyMask, field ports.FieldSampleSource, trials ports.TrialGenerator, cache ports.TemplateCache, logger *internal.Logger) *TemplateBuilder {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &TemplateBuilder{cfg: cfg, mask: mask, field: field, trials: trials, cache: cache, logger: logger}
}

// Key returns the cache key of the current configuration.
func (tb *TemplateBuilder) Key() ports.TemplateKey {
	return ports.TemplateKey{
		FieldName:     tb.field.Name(),
		ExposureYears: tb.cfg.ExposureYears,
		EnergyBins:    tb.cfg.Binning.NumBins(),
		LbinWidth:     tb.cfg.LbinWidth,
	}
}

// Build returns the template set, from the cache when possible. A cached
// set with the wrong shape is reported as a data error, never silently
// recomputed; the force-recompute flag bypasses the cache entirely.
func (tb *TemplateBuilder) Build(ctx context.Context) (*spectra.TemplateSet, error) {
	nCoarse := tb.cfg.MultipoleBinning().NumBins(tb.cfg.NFine)
	key := tb.Key()

	if !tb.cfg.Recompute && tb.cache != nil {
		set, err := tb.cache.Load(key)
		switch {
		case err == nil:
			if verr := set.Validate(tb.cfg.Binning.NumBins(), nCoarse); verr != nil {
				return nil, verr
			}
			tb.logger.Debug("template cache hit for field %s", key.FieldName)
			return set, nil
		case errors.IsCode(err, errors.CodeNotFound):
			// compute below
		default:
			return nil, err
		}
	}

	tb.logger.Info("building templates for field %s from %d realizations", key.FieldName, tb.cfg.TemplateTrials)
	set, err := tb.compute(ctx, nCoarse)
	if err != nil {
		return nil, err
	}

	if tb.cache != nil {
		if err := tb.cache.Store(key, set); err != nil {
			tb.logger.Warn("storing templates failed: %v", err)
		}
	}
	return set, nil
}

func (tb *TemplateBuilder) compute(ctx context.Context, nCoarse int) (*spectra.TemplateSet, error) {
	nEbins := tb.cfg.Binning.NumBins()

	bgMean, bgStd, bgCounts, err := tb.realize(ctx, nCoarse, "templates/background",
		func(rng *rand.Rand) (ports.EventSampleSource, error) { return tb.trials.BackgroundTrial(rng) })
	if err != nil {
		return nil, err
	}

	set := &spectra.TemplateSet{
		BackgroundMean:   bgMean,
		BackgroundStd:    bgStd,
		BackgroundCounts: bgCounts,
	}

	if tb.cfg.SignalMode == config.TemplateSynthetic {
		sigMean, sigStd, _, err := tb.realize(ctx, nCoarse, "templates/signal",
			func(rng *rand.Rand) (ports.EventSampleSource, error) { return tb.trials.SignalTrial(rng) })
		if err != nil {
			return nil, err
		}
		set.SignalMean, set.SignalStd = sigMean, sigStd
	} else {
		sigMean, err := tb.analyticSignal(nCoarse)
		if err != nil {
			return nil, err
		}
		// Zero std marks the template as exact; the likelihood takes its
		// uncertainty from the data covariance, never from template spread.
		sigStd := make([][]float64, nEbins)
		for i := range sigStd {
			sigStd[i] = make([]float64, nCoarse)
		}
		set.SignalMean, set.SignalStd = sigMean, sigStd
	}

	return set, set.Validate(nEbins, nCoarse)
}

// analyticSignal is the field autocorrelation rebinned and repeated for
// every energy bin: a fully correlated sample traces the field identically
// at all energies at the reference spectral index. The autocorrelation is
// the true spectrum, on the same footing as the sky-corrected data, so no
// further sky-fraction correction applies here.
func (tb *TemplateBuilder) analyticSignal(nCoarse int) ([][]float64, error) {
	auto, err := tb.field.AutoCorrelation()
	if err != nil {
		return nil, errors.Wrap(err, "reading field autocorrelation")
	}
	_, coarse, err := rebin.Rebin(auto, tb.cfg.LbinWidth)
	if err != nil {
		return nil, err
	}
	if len(coarse) != nCoarse {
		return nil, errors.DataError("field autocorrelation does not match the coarse binning")
	}

	rows := make([][]float64, tb.cfg.Binning.NumBins())
	for i := range rows {
		row := make([]float64, nCoarse)
		copy(row, coarse)
		rows[i] = row
	}
	return rows, nil
}

// realize draws TemplateTrials samples from the generator and aggregates the
// per-bin coarse spectra into mean and standard deviation, plus the mean
// event count per energy bin. Iterations carry pre-assigned seeds and write
// to their own slots, so the result is worker-count invariant.
func (tb *TemplateBuilder) realize(ctx context.Context, nCoarse int, streamName string, draw func(*rand.Rand) (ports.EventSampleSource, error)) (mean, std [][]float64, counts []float64, err error) {
	if err := tb.mask.CheckUsable(); err != nil {
		return nil, nil, nil, err
	}
	fsky := tb.mask.SkyFraction()
	nEbins := tb.cfg.Binning.NumBins()
	nTrials := tb.cfg.TemplateTrials

	seedStream := tb.cfg.Stream(streamName)
	seeds := make([]int64, nTrials)
	for i := range seeds {
		seeds[i] = seedStream.Int63()
	}

	// draws[ebin][trial] is one coarse spectrum; countDraws[ebin][trial]
	// the event count of that realization.
	draws := make([][][]float64, nEbins)
	countDraws := make([][]float64, nEbins)
	for e := range draws {
		draws[e] = make([][]float64, nTrials)
		countDraws[e] = make([]float64, nTrials)
	}
	failures := make([]error, nTrials)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tb.cfg.Workers)
	for t := 0; t < nTrials; t++ {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[t]))
			src, err := draw(rng)
			if err != nil {
				failures[t] = err
				return nil
			}
			trialCounts, err := src.EventCounts()
			if err != nil {
				failures[t] = err
				return nil
			}
			for e := 0; e < nEbins; e++ {
				fine, err := src.CrossSpectrum(e)
				if err != nil {
					failures[t] = err
					return nil
				}
				corrected := make([]float64, len(fine))
				for j, v := range fine {
					corrected[j] = v / fsky
				}
				_, coarse, err := rebin.Rebin(corrected, tb.cfg.LbinWidth)
				if err != nil {
					failures[t] = err
					return nil
				}
				draws[e][t] = coarse
				countDraws[e][t] = trialCounts[e]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, errors.ResourceError("template realization interrupted", err)
	}

	nFailed := 0
	var first error
	for _, ferr := range failures {
		if ferr != nil {
			nFailed++
			if first == nil {
				first = ferr
			}
		}
	}
	if nFailed > 0 {
		return nil, nil, nil, errors.ResourceError(
			fmt.Sprintf("%d of %d template realizations failed", nFailed, nTrials), first)
	}

	mean = make([][]float64, nEbins)
	std = make([][]float64, nEbins)
	counts = make([]float64, nEbins)
	column := make([]float64, nTrials)
	for e := 0; e < nEbins; e++ {
		mean[e] = make([]float64, nCoarse)
		std[e] = make([]float64, nCoarse)
		for l := 0; l < nCoarse; l++ {
			for t := 0; t < nTrials; t++ {
				column[t] = draws[e][t][l]
			}
			m, err := stats.Mean(column)
			if err != nil {
				return nil, nil, nil, errors.Numerical("aggregating template realizations failed")
			}
			s, err := stats.StandardDeviationSample(column)
			if err != nil {
				return nil, nil, nil, errors.Numerical("aggregating template realizations failed")
			}
			mean[e][l], std[e][l] = m, s
		}
		c, err := stats.Mean(countDraws[e])
		if err != nil {
			return nil, nil, nil, errors.Numerical("aggregating template counts failed")
		}
		counts[e] = c
	}
	return mean, std, counts, nil
}
