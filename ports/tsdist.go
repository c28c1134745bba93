package ports

// TSKey identifies one test-statistic distribution: trials generated at one
// injected fraction for one field sample, exposure, and fit model.
type TSKey struct {
	InjectedFraction float64
	FieldName        string
	ExposureYears    float64
	Model            string
}

// TSStore accumulates test-statistic values across trial batches and serves
// them back for distribution summaries.
type TSStore interface {
	Append(key TSKey, values []float64) error
	Values(key TSKey) ([]float64, error)
}
