package ports

import "skyxcorr/domain/spectra"

// TemplateKey identifies one cached template set. Templates depend on the
// field sample, the exposure, and both binnings; any other parameter change
// reuses the cache.
type TemplateKey struct {
	FieldName     string
	ExposureYears float64
	EnergyBins    int
	LbinWidth     int
}

// TemplateCache persists computed template sets across runs. Load returns a
// NOT_FOUND application error on a cache miss.
type TemplateCache interface {
	Load(key TemplateKey) (*spectra.TemplateSet, error)
	Store(key TemplateKey, set *spectra.TemplateSet) error
}
