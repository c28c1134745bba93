package memory

import (
	"fmt"
	"sync"

	"skyxcorr/ports"
)

// TSStore accumulates test-statistic values in memory.
type TSStore struct {
	mu     sync.Mutex
	values map[string][]float64
}

func NewTSStore() *TSStore {
	return &TSStore{values: make(map[string][]float64)}
}

func (s *TSStore) Append(key ports.TSKey, values []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := tsID(key)
	s.values[id] = append(s.values[id], values...)
	return nil
}

func (s *TSStore) Values(key ports.TSKey) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.values[tsID(key)]...), nil
}

func tsID(key ports.TSKey) string {
	return fmt.Sprintf("%s/%.2fyr/%s/f%.4f", key.FieldName, key.ExposureYears, key.Model, key.InjectedFraction)
}
