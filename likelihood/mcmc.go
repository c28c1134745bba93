package likelihood

import (
	"context"
	"math"
	"math/rand"

	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// stretchScale is the stretch-move scale parameter of the ensemble sampler.
const stretchScale = 2.0

// priorLo and priorHi bound the flat prior box on each fraction.
const (
	priorLo = -4.0
	priorHi = 4.0
)

// Sampler draws from the posterior over the correlated fractions with an
// affine-invariant stretch-move ensemble: walkers advance in two halves,
// each proposing along lines through walkers of the other half. Every step
// is appended to the chain store, so a run can resume where it stopped.
type Sampler struct {
	cfg    config.AnalysisConfig
	engine *Engine
	store  ports.ChainStore
	logger *internal.Logger
}

func NewSampler(cfg config.AnalysisConfig, engine *Engine, store ports.ChainStore, logger *internal.Logger) *Sampler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Sampler{cfg: cfg, engine: engine, store: store, logger: logger}
}

// LogPrior is flat over the fraction box and negative infinity outside it.
func (s *Sampler) LogPrior(f []float64) float64 {
	for _, v := range f {
		if v < priorLo || v > priorHi {
			return math.Inf(-1)
		}
	}
	return 0
}

// LogPosterior combines the flat prior with the ingested likelihood. An
// out-of-box point short-circuits before the likelihood is touched.
func (s *Sampler) LogPosterior(f []float64) float64 {
	lp := s.LogPrior(f)
	if math.IsInf(lp, -1) {
		return lp
	}
	return lp + s.engine.LogLikelihood(f)
}

// Run advances the chain under the key by nSteps. With resume set and a
// stored chain present, walkers continue from the last stored positions;
// otherwise the chain is reset and walkers start in a tight ball near the
// expected low-fraction region.
func (s *Sampler) Run(ctx context.Context, key ports.ChainKey, nSteps int, resume bool, rng *rand.Rand) error {
	if !s.engine.Ingested() {
		return errors.DataError("no sample ingested")
	}
	ndim := s.engine.NumBins()
	if key.NDim != ndim {
		return errors.ConfigInvalid("chain dimensionality does not match the active energy bins")
	}
	if key.NWalkers < 2*ndim || key.NWalkers%2 != 0 {
		return errors.ConfigInvalid("walker count must be even and at least twice the dimensionality")
	}

	positions, err := s.initialPositions(key, resume, rng)
	if err != nil {
		return err
	}
	logProb := make([]float64, key.NWalkers)
	for w := range positions {
		logProb[w] = s.LogPosterior(positions[w])
	}

	half := key.NWalkers / 2
	for step := 0; step < nSteps; step++ {
		if err := ctx.Err(); err != nil {
			return errors.ResourceError("sampling interrupted", err)
		}

		s.advanceHalf(positions, logProb, 0, half, half, key.NWalkers, rng)
		s.advanceHalf(positions, logProb, half, key.NWalkers, 0, half, rng)

		if err := s.store.Append(key, positions, logProb); err != nil {
			return errors.Wrap(err, "appending chain step")
		}
	}
	return nil
}

// advanceHalf proposes a stretch move for each walker in [lo,hi) against a
// complementary walker drawn from [cLo,cHi).
func (s *Sampler) advanceHalf(positions [][]float64, logProb []float64, lo, hi, cLo, cHi int, rng *rand.Rand) {
	ndim := s.engine.NumBins()
	for w := lo; w < hi; w++ {
		c := positions[cLo+rng.Intn(cHi-cLo)]

		u := rng.Float64()
		z := (u*(stretchScale-1) + 1)
		z = z * z / stretchScale

		proposal := make([]float64, ndim)
		for d := 0; d < ndim; d++ {
			proposal[d] = c[d] + z*(positions[w][d]-c[d])
		}

		lp := s.LogPosterior(proposal)
		lnAccept := float64(ndim-1)*math.Log(z) + lp - logProb[w]
		if lnAccept >= 0 || math.Log(rng.Float64()) < lnAccept {
			positions[w] = proposal
			logProb[w] = lp
		}
	}
}

func (s *Sampler) initialPositions(key ports.ChainKey, resume bool, rng *rand.Rand) ([][]float64, error) {
	if resume {
		last, err := s.store.LastPositions(key)
		switch {
		case err == nil:
			s.logger.Info("resuming chain %s from stored positions", key.RunTag)
			return last, nil
		case errors.IsCode(err, errors.CodeNotFound):
			// fresh start below
		default:
			return nil, err
		}
	}

	if err := s.store.Reset(key); err != nil {
		return nil, errors.Wrap(err, "resetting chain")
	}
	positions := make([][]float64, key.NWalkers)
	for w := range positions {
		positions[w] = make([]float64, key.NDim)
		for d := range positions[w] {
			positions[w][d] = 0.3 + 0.1*rng.NormFloat64()
		}
	}
	return positions, nil
}
