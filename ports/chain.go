package ports

// ChainKey identifies one posterior sampling chain.
type ChainKey struct {
	RunTag   string
	NWalkers int
	NDim     int
}

// ChainStore persists ensemble-sampler chains step by step, so an
// interrupted run can resume from the last stored walker positions.
type ChainStore interface {
	// Reset drops any stored chain under the key.
	Reset(key ChainKey) error

	// Append stores one step: positions is [walker][dim], logProb is the
	// posterior log-density per walker at those positions.
	Append(key ChainKey, positions [][]float64, logProb []float64) error

	// Steps returns the number of stored steps.
	Steps(key ChainKey) (int, error)

	// LastPositions returns the walker positions of the final stored step,
	// or a NOT_FOUND application error when no chain exists.
	LastPositions(key ChainKey) ([][]float64, error)

	// Chain returns the flattened post-burn-in sample: the first discard
	// steps are skipped and every thin-th step of the remainder is kept,
	// walkers interleaved.
	Chain(key ChainKey, discard, thin int) ([][]float64, error)
}
