package spectra

import "math"

// Fixed parameters of the analysis pixelization and binning. The event and
// field maps share one spherical pixelization; all spectra derived from them
// share the multipole range below.
const (
	NSide  = 128               // about 1 square degree pixels
	NPixel = 12 * NSide * NSide

	NCl  = 3 * NSide // number of fine multipoles carried through the analysis
	MaxL = NCl - 1   // largest fine multipole; unreliable in masked estimates

	LogEMin      = 2.5 // log10(E/GeV) of the lowest energy edge
	LogEMax      = 5.5
	NEnergyEdges = 4
	NEnergyBins  = NEnergyEdges - 1

	SecondsPerYear = 3.1536e7
)

// EnergyBinning is the fixed ordered sequence of log-scale energy bin edges
// shared by every component of one analysis.
type EnergyBinning struct {
	LogEdges []float64 // log10(E/GeV), ascending
}

// DefaultEnergyBinning returns the standard three-decade binning.
func DefaultEnergyBinning() EnergyBinning {
	edges := make([]float64, NEnergyEdges)
	step := (LogEMax - LogEMin) / float64(NEnergyEdges-1)
	for i := range edges {
		edges[i] = LogEMin + float64(i)*step
	}
	return EnergyBinning{LogEdges: edges}
}

// NumBins returns the number of energy bins.
func (b EnergyBinning) NumBins() int {
	return len(b.LogEdges) - 1
}

// LogCenter returns the log10 energy at the center of bin i.
func (b EnergyBinning) LogCenter(i int) float64 {
	return (b.LogEdges[i] + b.LogEdges[i+1]) / 2
}

// Center returns the geometric center energy of bin i in GeV.
func (b EnergyBinning) Center(i int) float64 {
	return math.Pow(10, b.LogCenter(i))
}

// BinFor returns the bin index containing logE, or -1 when out of range.
func (b EnergyBinning) BinFor(logE float64) int {
	for i := 0; i < b.NumBins(); i++ {
		if logE >= b.LogEdges[i] && logE < b.LogEdges[i+1] {
			return i
		}
	}
	return -1
}

// GeometricCenter returns the geometric mean energy of bins [min,max) in GeV.
func (b EnergyBinning) GeometricCenter(min, max int) float64 {
	sum := 0.0
	for i := min; i < max; i++ {
		sum += b.LogCenter(i)
	}
	return math.Pow(10, sum/float64(max-min))
}

// MultipoleBinning groups fine harmonic multipoles into coarse bands of
// fixed width. The last fine multipole is excluded before banding and any
// trailing incomplete band is dropped.
type MultipoleBinning struct {
	Width int
}

// NumBins returns the number of usable coarse bins for a fine spectrum of
// length nFine.
func (b MultipoleBinning) NumBins(nFine int) int {
	if b.Width < 1 || nFine < 2 {
		return 0
	}
	return (nFine - 1) / b.Width
}
