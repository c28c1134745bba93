package postgres

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"skyxcorr/internal/errors"
	"skyxcorr/ports"
)

// TSStore persists test-statistic values from trial batches.
type TSStore struct {
	db *sqlx.DB
}

func NewTSStore(db *sqlx.DB) *TSStore {
	return &TSStore{db: db}
}

func (s *TSStore) Append(key ports.TSKey, values []float64) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO ts_values (field_name, exposure_years, model, injected_fraction, ts)
		SELECT $1, $2, $3, $4, unnest($5::double precision[])`,
		key.FieldName, key.ExposureYears, key.Model, key.InjectedFraction,
		pq.Array(values))
	if err != nil {
		return errors.ResourceError("appending test-statistic values", err)
	}
	return nil
}

func (s *TSStore) Values(key ports.TSKey) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT ts FROM ts_values
		WHERE field_name = $1 AND exposure_years = $2 AND model = $3 AND injected_fraction = $4
		ORDER BY id`,
		key.FieldName, key.ExposureYears, key.Model, key.InjectedFraction)
	if err != nil {
		return nil, errors.ResourceError("reading test-statistic values", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var ts float64
		if err := rows.Scan(&ts); err != nil {
			return nil, errors.ResourceError("scanning test-statistic value", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ResourceError("reading test-statistic values", err)
	}
	return out, nil
}
