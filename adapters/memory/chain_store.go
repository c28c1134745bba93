// Package memory provides in-process implementations of the persistence
// ports for tests and single-shot runs.
package memory

import (
	"fmt"
	"sync"

	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

type chainStep struct {
	positions [][]float64
	logProb   []float64
}

// ChainStore keeps sampler chains in memory.
type ChainStore struct {
	mu     sync.Mutex
	chains map[string][]chainStep
}

func NewChainStore() *ChainStore {
	return &ChainStore{chains: make(map[string][]chainStep)}
}

func (s *ChainStore) Reset(key ports.ChainKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chains, chainID(key))
	return nil
}

func (s *ChainStore) Append(key ports.ChainKey, positions [][]float64, logProb []float64) error {
	step := chainStep{
		positions: make([][]float64, len(positions)),
		logProb:   append([]float64(nil), logProb...),
	}
	for w := range positions {
		step.positions[w] = append([]float64(nil), positions[w]...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := chainID(key)
	s.chains[id] = append(s.chains[id], step)
	return nil
}

func (s *ChainStore) Steps(key ports.ChainKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chains[chainID(key)]), nil
}

func (s *ChainStore) LastPositions(key ports.ChainKey) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.chains[chainID(key)]
	if len(steps) == 0 {
		return nil, errors.NotFound("stored chain for run " + key.RunTag)
	}
	last := steps[len(steps)-1]
	out := make([][]float64, len(last.positions))
	for w := range last.positions {
		out[w] = append([]float64(nil), last.positions[w]...)
	}
	return out, nil
}

func (s *ChainStore) Chain(key ports.ChainKey, discard, thin int) ([][]float64, error) {
	if thin < 1 {
		return nil, errors.ConfigInvalid("thinning stride must be at least 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := s.chains[chainID(key)]
	if discard >= len(steps) {
		return nil, errors.DataError("burn-in discard exceeds the stored chain length")
	}

	var out [][]float64
	for i := discard; i < len(steps); i += thin {
		for _, pos := range steps[i].positions {
			out = append(out, append([]float64(nil), pos...))
		}
	}
	return out, nil
}

func chainID(key ports.ChainKey) string {
	return fmt.Sprintf("%s/%dw/%dd", key.RunTag, key.NWalkers, key.NDim)
}
