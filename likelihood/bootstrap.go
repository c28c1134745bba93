package likelihood

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/internal/rebin"
	"skyxcorr/ports"
)

// Bootstrap estimates the coarse cross-spectrum covariance empirically by
// resampling the flat event list with replacement and recomputing the
// spectrum through the same pipeline each time.
type Bootstrap struct {
	cfg    config.AnalysisConfig
	mask   *spectra.SkyMask
	logger *internal.Logger
}

func NewBootstrap(cfg config.AnalysisConfig, mask *spectra.SkyMask, logger *internal.Logger) *Bootstrap {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Bootstrap{cfg: cfg, mask: mask, logger: logger}
}

// Covariance resamples the bin's event list BootstrapIter times and returns
// the sample covariance of the resulting coarse spectra. Every iteration
// carries a pre-assigned seed and writes to its own slot, so the aggregate
// is identical regardless of the worker count.
func (b *Bootstrap) Covariance(ctx context.Context, src ports.EventSampleSource, ebin int) (*mat.SymDense, error) {
	if err := b.mask.CheckUsable(); err != nil {
		return nil, err
	}
	fsky := b.mask.SkyFraction()

	events, err := src.Events(ebin)
	if err != nil {
		return nil, errors.Wrapf(err, "reading events of energy bin %d", ebin)
	}
	if len(events) == 0 {
		return nil, errors.DataError("energy bin has no events to resample")
	}

	iters := b.cfg.BootstrapIter
	seedStream := b.cfg.Stream(fmt.Sprintf("bootstrap/e%d", ebin))
	seeds := make([]int64, iters)
	for i := range seeds {
		seeds[i] = seedStream.Int63()
	}

	nCoarse := b.cfg.MultipoleBinning().NumBins(b.cfg.NFine)
	draws := mat.NewDense(iters, nCoarse, nil)
	failures := make([]error, iters)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i := 0; i < iters; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			resampled := make([]ports.Event, len(events))
			for j := range resampled {
				resampled[j] = events[rng.Intn(len(events))]
			}
			fine, err := src.SpectrumFromEvents(resampled, ebin)
			if err != nil {
				failures[i] = err
				return nil
			}
			corrected := make([]float64, len(fine))
			for j, v := range fine {
				corrected[j] = v / fsky
			}
			_, coarse, err := rebin.Rebin(corrected, b.cfg.LbinWidth)
			if err != nil {
				failures[i] = err
				return nil
			}
			draws.SetRow(i, coarse)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.ResourceError("bootstrap resampling interrupted", err)
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
			fmt.Sprintf("%d of %d bootstrap iterations failed", nFailed, iters), first)
	}

	cov := mat.NewSymDense(nCoarse, nil)
	stat.CovarianceMatrix(cov, draws, nil)
	return cov, nil
}
