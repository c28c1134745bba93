package spectra

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"skyxcorr/internal/errors"
)

// CrossSpectrum is the coarse-binned masked cross-power spectrum of one
// energy bin, with the symmetric covariance matrix over the same bins.
type CrossSpectrum struct {
	Ebin    int
	Centers []float64 // mean fine multipole of each coarse bin
	Values  []float64
	Cov     *mat.SymDense
}

// Std returns the per-bin standard deviation from the covariance diagonal.
func (s *CrossSpectrum) Std() []float64 {
	if s.Cov == nil {
		return nil
	}
	n := s.Cov.SymmetricDim()
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		std[i] = math.Sqrt(s.Cov.At(i, i))
	}
	return std
}

// TemplateSet holds the background (null hypothesis) and signal (fully
// correlated hypothesis) expectation spectra of one analysis, shaped
// [energy bin][coarse multipole bin]. It is computed once per field sample
// and exposure configuration and cached.
type TemplateSet struct {
	BackgroundMean [][]float64 `json:"background_mean"`
	BackgroundStd  [][]float64 `json:"background_std"`
	SignalMean     [][]float64 `json:"signal_mean"`
	SignalStd      [][]float64 `json:"signal_std"`

	// BackgroundCounts is the mean event count per energy bin under the
	// null hypothesis, tracked alongside the template.
	BackgroundCounts []float64 `json:"background_counts"`
}

// Validate checks the template arrays against the expected shape. A cached
// template with the wrong shape is a data error, not a silent refit.
func (t *TemplateSet) Validate(nEbins, nLbins int) error {
	check := func(name string, a [][]float64) error {
		if len(a) != nEbins {
			return errors.DataError(name + " template has wrong energy-bin count")
		}
		for _, row := range a {
			if len(row) != nLbins {
				return errors.DataError(name + " template has wrong multipole-bin count")
			}
		}
		return nil
	}
	if err := check("background mean", t.BackgroundMean); err != nil {
		return err
	}
	if err := check("background std", t.BackgroundStd); err != nil {
		return err
	}
	if err := check("signal mean", t.SignalMean); err != nil {
		return err
	}
	if err := check("signal std", t.SignalStd); err != nil {
		return err
	}
	if len(t.BackgroundCounts) != nEbins {
		return errors.DataError("background counts have wrong energy-bin count")
	}
	return nil
}
