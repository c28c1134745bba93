package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyxcorr/internal/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AnalysisConfig)
	}{
		{"zero exposure", func(c *AnalysisConfig) { c.ExposureYears = 0 }},
		{"empty field", func(c *AnalysisConfig) { c.FieldName = "" }},
		{"inverted energy range", func(c *AnalysisConfig) { c.EbinMin = 2; c.EbinMax = 1 }},
		{"energy range too wide", func(c *AnalysisConfig) { c.EbinMax = 7 }},
		{"negative lmin", func(c *AnalysisConfig) { c.Lmin = -1 }},
		{"lmin beyond range", func(c *AnalysisConfig) { c.Lmin = c.NFine }},
		{"tiny multipole count", func(c *AnalysisConfig) { c.NFine = 1 }},
		{"unknown error mode", func(c *AnalysisConfig) { c.ErrorMode = "jackknife" }},
		{"unknown covariance mode", func(c *AnalysisConfig) { c.CovMode = "sparse" }},
		{"unknown signal mode", func(c *AnalysisConfig) { c.SignalMode = "hybrid" }},
		{"zero bin width", func(c *AnalysisConfig) { c.LbinWidth = 0 }},
		{"single bootstrap iteration", func(c *AnalysisConfig) { c.BootstrapIter = 1 }},
		{"single template trial", func(c *AnalysisConfig) { c.TemplateTrials = 1 }},
		{"zero workers", func(c *AnalysisConfig) { c.Workers = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("EXPOSURE_YEARS", "10")
	t.Setenv("ERROR_MODE", "bootstrap")
	t.Setenv("LBIN_WIDTH", "2")
	t.Setenv("RECOMPUTE_TEMPLATES", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.ExposureYears)
	assert.Equal(t, ErrBootstrap, cfg.ErrorMode)
	assert.Equal(t, 2, cfg.LbinWidth)
	assert.True(t, cfg.Recompute)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("ERROR_MODE", "jackknife")
	_, err := Load()
	assert.Error(t, err)
}

func TestStreamIsDeterministicPerName(t *testing.T) {
	cfg := Default()

	a1 := cfg.Stream("bootstrap").Int63()
	a2 := cfg.Stream("bootstrap").Int63()
	assert.Equal(t, a1, a2)

	b := cfg.Stream("trials").Int63()
	assert.NotEqual(t, a1, b)

	other := cfg
	other.BaseSeed = 7
	assert.NotEqual(t, a1, other.Stream("bootstrap").Int63())
}

func TestNumActiveBins(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3, cfg.NumActiveBins())
	cfg.EbinMin, cfg.EbinMax = 1, 2
	assert.Equal(t, 1, cfg.NumActiveBins())
}
