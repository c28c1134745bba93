// Package postgres implements the persistence ports on PostgreSQL, for runs
// whose chains and trial batches must survive the process.
package postgres

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// ChainStore persists sampler chains step by step.
type ChainStore struct {
	db *sqlx.DB
}

func NewChainStore(db *sqlx.DB) *ChainStore {
	return &ChainStore{db: db}
}

func (s *ChainStore) Reset(key ports.ChainKey) error {
	_, err := s.db.Exec(`
		DELETE FROM chain_steps
		WHERE run_tag = $1 AND n_walkers = $2 AND n_dim = $3`,
		key.RunTag, key.NWalkers, key.NDim)
	if err != nil {
		return errors.ResourceError("resetting chain", err)
	}
	return nil
}

func (s *ChainStore) Append(key ports.ChainKey, positions [][]float64, logProb []float64) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return errors.ResourceError("opening chain transaction", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.Get(&next, `
		SELECT COALESCE(MAX(step_index) + 1, 0) FROM chain_steps
		WHERE run_tag = $1 AND n_walkers = $2 AND n_dim = $3`,
		key.RunTag, key.NWalkers, key.NDim)
	if err != nil {
		return errors.ResourceError("reading chain length", err)
	}

	for w := range positions {
		_, err = tx.Exec(`
			INSERT INTO chain_steps (run_tag, n_walkers, n_dim, step_index, walker, position, log_prob)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			key.RunTag, key.NWalkers, key.NDim, next, w,
			pq.Array(positions[w]), logProb[w])
		if err != nil {
			return errors.ResourceError("appending chain step", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.ResourceError("committing chain step", err)
	}
	return nil
}

func (s *ChainStore) Steps(key ports.ChainKey) (int, error) {
	var n int
	err := s.db.Get(&n, `
		SELECT COUNT(DISTINCT step_index) FROM chain_steps
		WHERE run_tag = $1 AND n_walkers = $2 AND n_dim = $3`,
		key.RunTag, key.NWalkers, key.NDim)
	if err != nil {
		return 0, errors.ResourceError("counting chain steps", err)
	}
	return n, nil
}

func (s *ChainStore) LastPositions(key ports.ChainKey) ([][]float64, error) {
	var last int
	err := s.db.Get(&last, `
		SELECT COALESCE(MAX(step_index), -1) FROM chain_steps
		WHERE run_tag = $1 AND n_walkers = $2 AND n_dim = $3`,
		key.RunTag, key.NWalkers, key.NDim)
	if err != nil {
		return nil, errors.ResourceError("locating last chain step", err)
	}
	if last < 0 {
		return nil, errors.NotFound("stored chain for run " + key.RunTag)
	}

	rows, err := s.db.Query(`
		SELECT walker, position FROM chain_steps
		WHERE run_tag = $1 AND n_walkers = $2 AND n_dim = $3 AND step_index = $4
		ORDER BY walker`,
		key.RunTag, key.NWalkers, key.NDim, last)
	if err != nil {
		return nil, errors.ResourceError("reading last chain step", err)
	}
	defer rows.Close()

	positions := make([][]float64, key.NWalkers)
	for rows.Next() {
		var walker int
		var pos pq.Float64Array
		if err := rows.Scan(&walker, &pos); err != nil {
			return nil, errors.ResourceError("scanning chain position", err)
		}
		if walker < 0 || walker >= key.NWalkers {
			return nil, errors.DataError("stored chain has an out-of-range walker index")
		}
		positions[walker] = []float64(pos)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ResourceError("reading last chain step", err)
	}
	for w := range positions {
		if positions[w] == nil {
			return nil, errors.NotFound("stored chain for run " + key.RunTag)
		}
	}
	return positions, nil
}

func (s *ChainStore) Chain(key ports.ChainKey, discard, thin int) ([][]float64, error) {
	if thin < 1 {
		return nil, errors.ConfigInvalid("thinning stride must be at least 1")
	}
	rows, err := s.db.Query(`
		SELECT position FROM chain_steps
		WHERE run_tag = $1 AND n_walkers = $2 AND n_dim = $3
		  AND step_index >= $4 AND (step_index - $4) % $5 = 0
		ORDER BY step_index, walker`,
		key.RunTag, key.NWalkers, key.NDim, discard, thin)
	if err != nil {
		return nil, errors.ResourceError("reading chain", err)
	}
	defer rows.Close()

	var out [][]float64
	for rows.Next() {
		var pos pq.Float64Array
		if err := rows.Scan(&pos); err != nil {
			return nil, errors.ResourceError("scanning chain position", err)
		}
		out = append(out, []float64(pos))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ResourceError("reading chain", err)
	}
	if len(out) == 0 {
		return nil, errors.DataError("burn-in discard exceeds the stored chain length")
	}
	return out, nil
}
