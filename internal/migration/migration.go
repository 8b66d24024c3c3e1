package migration

import (
	"context"
	"fmt"

	"gomdp/internal/errors"

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
	if err := r.createModelsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create models table")
	}

	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}

	if err := r.createOutcomesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create outcomes table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// createModelsTable creates the model catalog. The encoded payload is the
// source of truth; the scalar columns mirror it so listings never decode.
func (r *MigrationRunner) createModelsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS models (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			gamma DOUBLE PRECISION NOT NULL,
			state_vars INTEGER NOT NULL,
			action_vars INTEGER NOT NULL,
			reward_factors INTEGER NOT NULL,
			transition_factors INTEGER NOT NULL,
			content_hash VARCHAR(64) UNIQUE NOT NULL,
			payload BYTEA NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			model_id UUID NOT NULL REFERENCES models(id) ON DELETE CASCADE,
			learner VARCHAR(50) NOT NULL,
			seed BIGINT NOT NULL,
			episodes INTEGER NOT NULL,
			timesteps INTEGER NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			error_message TEXT,
			fingerprint VARCHAR(64) NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			finished_at TIMESTAMP WITH TIME ZONE
		)
	`)
	return err
}

// createOutcomesTable creates per-step storage. One row per timestep; the
// factored actions, states, and rewards ride along as JSONB.
func (r *MigrationRunner) createOutcomesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outcomes (
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			episode INTEGER NOT NULL,
			timestep INTEGER NOT NULL,
			act_ns BIGINT NOT NULL,
			update_ns BIGINT NOT NULL,
			total_reward DOUBLE PRECISION NOT NULL,
			detail JSONB,
			PRIMARY KEY (run_id, episode, timestep)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		// Model catalog indexes
		"CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_models_name ON models(name)",

		// Run indexes
		"CREATE INDEX IF NOT EXISTS idx_runs_model_id ON runs(model_id)",
		"CREATE INDEX IF NOT EXISTS idx_runs_model_started ON runs(model_id, started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",

		// Outcome indexes (the primary key already orders by run/episode/timestep)
		"CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
