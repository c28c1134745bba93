package migration

import (
	"context"

	"skyxcorr/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createChainStepsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create chain_steps table")
	}

	if err := r.createTSValuesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create ts_values table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createChainStepsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chain_steps (
			id BIGSERIAL PRIMARY KEY,
			run_tag TEXT NOT NULL,
			n_walkers INTEGER NOT NULL,
			n_dim INTEGER NOT NULL,
			step_index INTEGER NOT NULL,
			walker INTEGER NOT NULL,
			position DOUBLE PRECISION[] NOT NULL,
			log_prob DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createTSValuesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ts_values (
			id BIGSERIAL PRIMARY KEY,
			field_name TEXT NOT NULL,
			exposure_years DOUBLE PRECISION NOT NULL,
			model TEXT NOT NULL,
			injected_fraction DOUBLE PRECISION NOT NULL,
			ts DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chain_steps_key
			ON chain_steps(run_tag, n_walkers, n_dim, step_index, walker)`,
		`CREATE INDEX IF NOT EXISTS idx_ts_values_key
			ON ts_values(field_name, exposure_years, model, injected_fraction)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
