package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

func appendSteps(t *testing.T, s *ChainStore, key ports.ChainKey, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		positions := [][]float64{
			{float64(i)},
			{float64(i) + 0.5},
		}
		require.NoError(t, s.Append(key, positions, []float64{-1, -2}))
	}
}

func TestChainStoreAppendAndSteps(t *testing.T) {
	s := NewChainStore()
	key := ports.ChainKey{RunTag: "a", NWalkers: 2, NDim: 1}

	appendSteps(t, s, key, 5)
	n, err := s.Steps(key)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestChainStoreLastPositions(t *testing.T) {
	s := NewChainStore()
	key := ports.ChainKey{RunTag: "a", NWalkers: 2, NDim: 1}

	_, err := s.LastPositions(key)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	appendSteps(t, s, key, 3)
	last, err := s.LastPositions(key)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {2.5}}, last)
}

func TestChainStoreDiscardAndThin(t *testing.T) {
	s := NewChainStore()
	key := ports.ChainKey{RunTag: "a", NWalkers: 2, NDim: 1}
	appendSteps(t, s, key, 10)

	// Steps 4, 6, 8 survive discard=4, thin=2; two walkers each.
	chain, err := s.Chain(key, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{4}, {4.5}, {6}, {6.5}, {8}, {8.5}}, chain)

	_, err = s.Chain(key, 10, 1)
	assert.Error(t, err)
	_, err = s.Chain(key, 0, 0)
	assert.Error(t, err)
}

func TestChainStoreCopiesAppendedPositions(t *testing.T) {
	s := NewChainStore()
	key := ports.ChainKey{RunTag: "a", NWalkers: 1, NDim: 1}

	pos := [][]float64{{1}}
	require.NoError(t, s.Append(key, pos, []float64{0}))
	pos[0][0] = 99

	last, err := s.LastPositions(key)
	require.NoError(t, err)
	assert.Equal(t, 1.0, last[0][0])
}

func TestChainStoreResetIsolatesKeys(t *testing.T) {
	s := NewChainStore()
	a := ports.ChainKey{RunTag: "a", NWalkers: 2, NDim: 1}
	b := ports.ChainKey{RunTag: "b", NWalkers: 2, NDim: 1}
	appendSteps(t, s, a, 2)
	appendSteps(t, s, b, 3)

	require.NoError(t, s.Reset(a))
	n, err := s.Steps(a)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Steps(b)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTSStoreAccumulates(t *testing.T) {
	s := NewTSStore()
	key := ports.TSKey{InjectedFraction: 0.1, FieldName: "f", ExposureYears: 3, Model: "numu"}

	require.NoError(t, s.Append(key, []float64{1, 2}))
	require.NoError(t, s.Append(key, []float64{3}))

	values, err := s.Values(key)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, values)

	other, err := s.Values(ports.TSKey{InjectedFraction: 0.2, FieldName: "f", ExposureYears: 3, Model: "numu"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
