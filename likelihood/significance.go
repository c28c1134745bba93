package likelihood

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// SigmaCap is the sentinel significance reported when the chi-squared
// survival probability underflows double precision. Values at the cap mean
// "at least this significant", not an exact z-score.
const SigmaCap = 37.5

// pFloor is the smallest survival probability the normal quantile resolves
// before 1-p/2 rounds to 1.
const pFloor = 4.5e-16

// Significance converts a chi-squared statistic with the given degrees of
// freedom into a two-sided z-score: the inverse normal of 1 - p/2 with
// p the chi-squared survival probability. A chi-squared of zero maps to
// exactly zero.
func Significance(chi2 float64, dof int) float64 {
	if chi2 <= 0 {
		return 0
	}
	p := distuv.ChiSquared{K: float64(dof)}.Survival(chi2)
	if p < pFloor {
		return SigmaCap
	}
	return distuv.UnitNormal.Quantile(1 - p/2)
}

// SignificanceFromChi treats the entries of chi as independent standard
// normal pulls: the summed squares are chi-squared with one degree of
// freedom per entry.
func SignificanceFromChi(chi []float64) float64 {
	chi2 := 0.0
	for _, c := range chi {
		chi2 += c * c
	}
	return Significance(chi2, len(chi))
}
