package spectra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDefaultEnergyBinning(t *testing.T) {
	b := DefaultEnergyBinning()
	require.Equal(t, NEnergyBins, b.NumBins())
	assert.Equal(t, 2.5, b.LogEdges[0])
	assert.Equal(t, 5.5, b.LogEdges[NEnergyEdges-1])

	assert.InDelta(t, 3.0, b.LogCenter(0), 1e-12)
	assert.InDelta(t, math.Pow(10, 4.0), b.Center(1), 1e-6)
}

func TestBinFor(t *testing.T) {
	b := DefaultEnergyBinning()
	assert.Equal(t, 0, b.BinFor(2.5))
	assert.Equal(t, 0, b.BinFor(3.49))
	assert.Equal(t, 1, b.BinFor(3.5))
	assert.Equal(t, 2, b.BinFor(5.49))
	assert.Equal(t, -1, b.BinFor(5.5))
	assert.Equal(t, -1, b.BinFor(2.0))
}

func TestGeometricCenter(t *testing.T) {
	b := DefaultEnergyBinning()
	assert.InDelta(t, math.Pow(10, 3.0), b.GeometricCenter(0, 1), 1e-6)
	assert.InDelta(t, math.Pow(10, 4.0), b.GeometricCenter(0, 3), 1e-6)
}

func TestMultipoleBinningCounts(t *testing.T) {
	assert.Equal(t, 95, MultipoleBinning{Width: 4}.NumBins(NCl))
	assert.Equal(t, NCl-1, MultipoleBinning{Width: 1}.NumBins(NCl))
	assert.Equal(t, 10, MultipoleBinning{Width: 4}.NumBins(41))
	assert.Equal(t, 0, MultipoleBinning{Width: 0}.NumBins(NCl))
	assert.Equal(t, 0, MultipoleBinning{Width: 4}.NumBins(1))
}

func TestBuildSkyMaskMergesInputs(t *testing.T) {
	detector := []bool{true, true, false, true}
	field := []bool{true, false, true, true}

	mask, err := BuildSkyMask(detector, field)
	require.NoError(t, err)

	assert.Equal(t, 2, mask.ValidCount())
	assert.Equal(t, 4, mask.NumPixels())
	assert.True(t, mask.Valid(0))
	assert.False(t, mask.Valid(1))
	assert.False(t, mask.Valid(2))
	assert.True(t, mask.Valid(3))
	assert.InDelta(t, 0.5, mask.SkyFraction(), 1e-12)
	assert.NoError(t, mask.CheckUsable())
}

func TestBuildSkyMaskRejectsBadInput(t *testing.T) {
	_, err := BuildSkyMask(nil, nil)
	assert.Error(t, err)

	_, err = BuildSkyMask([]bool{true}, []bool{true, false})
	assert.Error(t, err)
}

func TestDegenerateMaskIsDetected(t *testing.T) {
	mask, err := BuildSkyMask([]bool{true, false}, []bool{false, true})
	require.NoError(t, err)
	assert.Equal(t, 0, mask.ValidCount())
	assert.Error(t, mask.CheckUsable())
}

func TestCrossSpectrumStd(t *testing.T) {
	cov := mat.NewSymDense(3, nil)
	cov.SetSym(0, 0, 4)
	cov.SetSym(1, 1, 9)
	cov.SetSym(2, 2, 0.25)

	s := CrossSpectrum{Values: []float64{1, 2, 3}, Cov: cov}
	assert.Equal(t, []float64{2, 3, 0.5}, s.Std())

	empty := CrossSpectrum{}
	assert.Nil(t, empty.Std())
}

func TestTemplateSetValidate(t *testing.T) {
	rows := func(ne, nl int) [][]float64 {
		out := make([][]float64, ne)
		for i := range out {
			out[i] = make([]float64, nl)
		}
		return out
	}
	good := TemplateSet{
		BackgroundMean:   rows(3, 10),
		BackgroundStd:    rows(3, 10),
		SignalMean:       rows(3, 10),
		SignalStd:        rows(3, 10),
		BackgroundCounts: make([]float64, 3),
	}
	assert.NoError(t, good.Validate(3, 10))

	bad := good
	bad.SignalMean = rows(3, 9)
	assert.Error(t, bad.Validate(3, 10))

	bad = good
	bad.BackgroundMean = rows(2, 10)
	assert.Error(t, bad.Validate(3, 10))

	bad = good
	bad.BackgroundCounts = make([]float64, 2)
	assert.Error(t, bad.Validate(3, 10))
}
