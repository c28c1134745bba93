package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyxcorr/internal/errors"
	"skyxcorr/internal/testkit"
	"skyxcorr/ports"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := NewInMemoryCache()
	require.NoError(t, err)
	defer c.Close()

	cfg := testkit.Config()
	set := testkit.Templates(cfg, 0.5, 3)
	key := ports.TemplateKey{FieldName: "fixture", ExposureYears: 3, EnergyBins: 3, LbinWidth: 4}

	require.NoError(t, c.Store(key, set))
	got, err := c.Load(key)
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestCacheMissIsNotFound(t *testing.T) {
	c, err := NewInMemoryCache()
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Load(ports.TemplateKey{FieldName: "absent", ExposureYears: 1, EnergyBins: 3, LbinWidth: 4})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestCacheKeysAreDistinct(t *testing.T) {
	c, err := NewInMemoryCache()
	require.NoError(t, err)
	defer c.Close()

	cfg := testkit.Config()
	a := testkit.Templates(cfg, 0, 1)
	b := testkit.Templates(cfg, 0, 2)

	keyA := ports.TemplateKey{FieldName: "f", ExposureYears: 3, EnergyBins: 3, LbinWidth: 4}
	keyB := keyA
	keyB.LbinWidth = 2

	require.NoError(t, c.Store(keyA, a))
	require.NoError(t, c.Store(keyB, b))

	gotA, err := c.Load(keyA)
	require.NoError(t, err)
	gotB, err := c.Load(keyB)
	require.NoError(t, err)
	assert.NotEqual(t, gotA, gotB)
}

func TestCacheOverwrite(t *testing.T) {
	c, err := NewInMemoryCache()
	require.NoError(t, err)
	defer c.Close()

	cfg := testkit.Config()
	key := ports.TemplateKey{FieldName: "f", ExposureYears: 3, EnergyBins: 3, LbinWidth: 4}

	require.NoError(t, c.Store(key, testkit.Templates(cfg, 0, 1)))
	updated := testkit.Templates(cfg, 0, 7)
	require.NoError(t, c.Store(key, updated))

	got, err := c.Load(key)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}
