package config

import (
	"hash/fnv"
	"math/rand"
	"os"
	"strconv"

	"skyxcorr/domain/spectra"
	"skyxcorr/internal/errors"
)

// ErrorMode selects how the cross-spectrum covariance is estimated.
type ErrorMode string

const (
	// ErrParametric uses the analytic masked-spectrum covariance computed
	// alongside the mean.
	ErrParametric ErrorMode = "parametric"
	// ErrBootstrap ignores the analytic covariance and resamples the real
	// event list instead.
	ErrBootstrap ErrorMode = "bootstrap"
)

// CovarianceMode names how the likelihood treats off-diagonal covariance
// terms. There is no implicit per-call-site default: every evaluation reads
// this mode from the one analysis configuration.
type CovarianceMode string

const (
	// CovDiagonal zeroes off-diagonal covariance terms before evaluation.
	CovDiagonal CovarianceMode = "diagonal"
	// CovFull evaluates against the full covariance matrix.
	CovFull CovarianceMode = "full"
)

// TemplateMode selects between the analytic and the simulated signal
// template.
type TemplateMode string

const (
	TemplateAnalytic  TemplateMode = "analytic"
	TemplateSynthetic TemplateMode = "synthetic"
)

// Spectral-index fit bounds shared by the free-index optimizer and sampler.
const (
	GammaMin = 1.5
	GammaMax = 4.0
)

// AnalysisConfig is the single immutable configuration of one analysis.
// It is constructed once and passed explicitly to every component; no other
// process-wide mutable state exists.
type AnalysisConfig struct {
	ExposureYears float64
	FieldName     string

	// EbinMin and EbinMax bound the active energy bins as [EbinMin, EbinMax).
	EbinMin int
	EbinMax int

	// NFine is the number of fine multipoles carried by every spectrum of
	// this analysis.
	NFine int

	// Lmin is the minimum fine multipole entering the likelihood.
	Lmin int

	// Gamma is the reference spectral index the templates are built at.
	Gamma float64

	ErrorMode  ErrorMode
	CovMode    CovarianceMode
	SignalMode TemplateMode

	// LbinWidth is the fine-to-coarse multipole rebinning width.
	LbinWidth int

	BootstrapIter  int
	TemplateTrials int
	Recompute      bool
	Workers        int
	BaseSeed       int64

	Binning spectra.EnergyBinning
}

// Default returns the standard analysis configuration.
func Default() AnalysisConfig {
	return AnalysisConfig{
		ExposureYears:  3,
		FieldName:      "synthetic",
		EbinMin:        0,
		EbinMax:        spectra.NEnergyBins,
		NFine:          spectra.NCl,
		Lmin:           50,
		Gamma:          2.5,
		ErrorMode:      ErrParametric,
		CovMode:        CovDiagonal,
		SignalMode:     TemplateAnalytic,
		LbinWidth:      4,
		BootstrapIter:  100,
		TemplateTrials: 500,
		Recompute:      false,
		Workers:        4,
		BaseSeed:       42,
		Binning:        spectra.DefaultEnergyBinning(),
	}
}

// Load builds the configuration from environment variables on top of the
// defaults and validates it.
func Load() (AnalysisConfig, error) {
	cfg := Default()

	cfg.ExposureYears = envFloat("EXPOSURE_YEARS", cfg.ExposureYears)
	cfg.FieldName = envString("FIELD_SAMPLE", cfg.FieldName)
	cfg.EbinMin = envInt("EBIN_MIN", cfg.EbinMin)
	cfg.EbinMax = envInt("EBIN_MAX", cfg.EbinMax)
	cfg.Lmin = envInt("LMIN", cfg.Lmin)
	cfg.Gamma = envFloat("GAMMA", cfg.Gamma)
	cfg.ErrorMode = ErrorMode(envString("ERROR_MODE", string(cfg.ErrorMode)))
	cfg.CovMode = CovarianceMode(envString("COV_MODE", string(cfg.CovMode)))
	cfg.SignalMode = TemplateMode(envString("SIGNAL_TEMPLATE", string(cfg.SignalMode)))
	cfg.LbinWidth = envInt("LBIN_WIDTH", cfg.LbinWidth)
	cfg.BootstrapIter = envInt("BOOTSTRAP_ITER", cfg.BootstrapIter)
	cfg.TemplateTrials = envInt("TEMPLATE_TRIALS", cfg.TemplateTrials)
	cfg.Recompute = envBool("RECOMPUTE_TEMPLATES", cfg.Recompute)
	cfg.Workers = envInt("WORKERS", cfg.Workers)
	cfg.BaseSeed = int64(envInt("BASE_SEED", int(cfg.BaseSeed)))

	if err := cfg.Validate(); err != nil {
		return AnalysisConfig{}, err
	}
	return cfg, nil
}

// Validate fails fast on configuration errors.
func (c AnalysisConfig) Validate() error {
	if c.ExposureYears <= 0 {
		return errors.ConfigInvalid("exposure years must be positive")
	}
	if c.FieldName == "" {
		return errors.ConfigInvalid("field sample name is required")
	}
	nBins := c.Binning.NumBins()
	if c.EbinMin < 0 || c.EbinMax > nBins || c.EbinMin >= c.EbinMax {
		return errors.ConfigInvalid("energy bin range is out of range")
	}
	if c.NFine < 2 {
		return errors.ConfigInvalid("fine multipole count must be at least 2")
	}
	if c.Lmin < 0 || c.Lmin >= c.NFine {
		return errors.ConfigInvalid("minimum multipole is out of range")
	}
	switch c.ErrorMode {
	case ErrParametric, ErrBootstrap:
	default:
		return errors.ConfigInvalid("unknown error mode " + string(c.ErrorMode))
	}
	switch c.CovMode {
	case CovDiagonal, CovFull:
	default:
		return errors.ConfigInvalid("unknown covariance mode " + string(c.CovMode))
	}
	switch c.SignalMode {
	case TemplateAnalytic, TemplateSynthetic:
	default:
		return errors.ConfigInvalid("unknown signal template mode " + string(c.SignalMode))
	}
	if c.LbinWidth < 1 {
		return errors.ConfigInvalid("multipole bin width must be at least 1")
	}
	if c.BootstrapIter < 2 {
		return errors.ConfigInvalid("bootstrap needs at least two iterations")
	}
	if c.TemplateTrials < 2 {
		return errors.ConfigInvalid("template building needs at least two trials")
	}
	if c.Workers < 1 {
		return errors.ConfigInvalid("worker count must be at least 1")
	}
	return nil
}

// NumActiveBins returns the number of energy bins entering the fit.
func (c AnalysisConfig) NumActiveBins() int {
	return c.EbinMax - c.EbinMin
}

// MultipoleBinning returns the coarse multipole binning of this analysis.
func (c AnalysisConfig) MultipoleBinning() spectra.MultipoleBinning {
	return spectra.MultipoleBinning{Width: c.LbinWidth}
}

// Stream derives a deterministic RNG stream for a named operation from the
// base seed, so a run is reproducible end to end.
func (c AnalysisConfig) Stream(name string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(c.BaseSeed ^ int64(h.Sum64())))
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
