package likelihood

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignificanceOfZeroIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Significance(0, 1))
	assert.Equal(t, 0.0, Significance(0, 95))
	assert.Equal(t, 0.0, Significance(-1, 10))
}

func TestSignificanceIncreasesWithChiSquare(t *testing.T) {
	prev := 0.0
	for _, chi2 := range []float64{0.5, 1, 2, 5, 10, 50, 100} {
		z := Significance(chi2, 10)
		assert.Greater(t, z, prev, "chi2=%v", chi2)
		prev = z
	}
}

func TestSignificanceDecreasesWithDegreesOfFreedom(t *testing.T) {
	// The same chi-square is less surprising with more bins.
	assert.Greater(t, Significance(20, 5), Significance(20, 50))
}

func TestSignificanceSaturatesInsteadOfOverflowing(t *testing.T) {
	z := Significance(1e6, 10)
	assert.Equal(t, SigmaCap, z)
	assert.False(t, math.IsInf(z, 1))
	assert.False(t, math.IsNaN(z))
}

func TestSignificanceKnownValue(t *testing.T) {
	// One degree of freedom: chi2 = z^2, so chi2=4 maps back to z=2.
	assert.InDelta(t, 2.0, Significance(4, 1), 1e-9)
}

func TestSignificanceFromChi(t *testing.T) {
	assert.Equal(t, 0.0, SignificanceFromChi(nil))
	assert.Equal(t, 0.0, SignificanceFromChi([]float64{0, 0, 0}))

	// Three unit pulls give chi2=3 with dof=3, a mild fluctuation.
	z := SignificanceFromChi([]float64{1, 1, 1})
	assert.Greater(t, z, 0.0)
	assert.Less(t, z, 2.0)

	assert.InDelta(t, 2.0, SignificanceFromChi([]float64{2}), 1e-9)
}
