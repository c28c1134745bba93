package rebin

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRebinWidthOneDropsOnlyLastMultipole(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fine := make([]float64, 40)
	for i := range fine {
		fine[i] = rng.NormFloat64()
	}

	centers, binned, err := Rebin(fine, 1)
	require.NoError(t, err)
	require.Len(t, binned, len(fine)-1)

	for i := range binned {
		assert.Equal(t, fine[i], binned[i])
		assert.Equal(t, float64(i), centers[i])
	}
}

func TestRebinStandardWidth(t *testing.T) {
	fine := make([]float64, 384)
	for i := range fine {
		fine[i] = float64(i)
	}

	centers, binned, err := Rebin(fine, 4)
	require.NoError(t, err)
	assert.Len(t, binned, 95)

	// Block-averaging a linear sequence gives the band center back.
	for b := range binned {
		assert.InDelta(t, float64(4*b)+1.5, binned[b], 1e-12)
		assert.InDelta(t, float64(4*b)+1.5, centers[b], 1e-12)
	}
}

func TestRebinRejectsBadInput(t *testing.T) {
	_, _, err := Rebin([]float64{1, 2, 3}, 0)
	assert.Error(t, err)

	_, _, err = Rebin([]float64{1, 2, 3}, 4)
	assert.Error(t, err)
}

func TestRebinCovarianceBlockAverage(t *testing.T) {
	fine := mat.NewSymDense(9, nil)
	for i := 0; i < 9; i++ {
		for j := i; j < 9; j++ {
			fine.SetSym(i, j, float64(i+j))
		}
	}

	coarse, err := RebinCovariance(fine, 2)
	require.NoError(t, err)
	require.Equal(t, 4, coarse.SymmetricDim())

	// Block (a,b) of the i+j matrix averages to 2a + 2b + 1.
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			assert.InDelta(t, float64(2*a+2*b+1), coarse.At(a, b), 1e-12)
		}
	}
}
