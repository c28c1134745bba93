// Package rebin collapses fine multipole spectra into coarse bands by block
// averaging. The last fine multipole never enters a band: masked-sky spectrum
// estimates are unreliable there, so the usable range is the first nFine-1
// entries, and a trailing band that cannot be filled completely is dropped.
package rebin

import (
	"gonum.org/v1/gonum/mat"

	"skyxcorr/internal/errors"
)

// Rebin block-averages a fine spectrum into bands of the given width and
// returns the band centers (mean fine multipole of each band) alongside the
// band means. Width 1 reproduces the input up to the excluded last multipole.
func Rebin(fine []float64, width int) (centers, binned []float64, err error) {
	n, err := usableBins(len(fine), width)
	if err != nil {
		return nil, nil, err
	}

	centers = make([]float64, n)
	binned = make([]float64, n)
	for b := 0; b < n; b++ {
		lo := b * width
		sum, lsum := 0.0, 0.0
		for l := lo; l < lo+width; l++ {
			sum += fine[l]
			lsum += float64(l)
		}
		binned[b] = sum / float64(width)
		centers[b] = lsum / float64(width)
	}
	return centers, binned, nil
}

// RebinCovariance block-averages an nFine x nFine fine-multipole covariance
// into the coarse bands: entry (a,b) is the mean of the width*width block of
// fine covariances the two bands span.
func RebinCovariance(fine *mat.SymDense, width int) (*mat.SymDense, error) {
	n, err := usableBins(fine.SymmetricDim(), width)
	if err != nil {
		return nil, err
	}

	coarse := mat.NewSymDense(n, nil)
	norm := float64(width * width)
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			sum := 0.0
			for i := a * width; i < (a+1)*width; i++ {
				for j := b * width; j < (b+1)*width; j++ {
					sum += fine.At(i, j)
				}
			}
			coarse.SetSym(a, b, sum/norm)
		}
	}
	return coarse, nil
}

func usableBins(nFine, width int) (int, error) {
	if width < 1 {
		return 0, errors.ConfigInvalid("multipole bin width must be at least 1")
	}
	if nFine < width+1 {
		return 0, errors.DataError("spectrum too short for the requested bin width")
	}
	return (nFine - 1) / width, nil
}
