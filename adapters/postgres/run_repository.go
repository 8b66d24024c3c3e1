package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/models"
	"gomdp/ports"
)

// outcomeChunkSize keeps batched inserts under the driver's parameter limit.
const outcomeChunkSize = 1000

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

var _ ports.RunRepository = (*RunRepositoryImpl)(nil)

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// CreateRun inserts a run in the running state
func (r *RunRepositoryImpl) CreateRun(ctx context.Context, record *models.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, model_id, learner, seed, episodes, timesteps, status, error_message, fingerprint, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID, record.ModelID, record.Learner, record.Seed, record.Episodes, record.Timesteps,
		record.Status, record.Error, record.Fingerprint, record.StartedAt, record.FinishedAt)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun marks a run complete or failed and stamps the finish time
func (r *RunRepositoryImpl) FinishRun(ctx context.Context, id core.RunID, status models.RunStatus, errorMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run: status %q is not terminal", status)
	}

	errColumn := sql.NullString{String: errorMsg, Valid: errorMsg != ""}
	result, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, status, errColumn, models.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if affected == 0 {
		// Either the run does not exist or it already reached a terminal
		// state; look once to tell the two apart.
		if _, err := r.GetRun(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: run %s", core.ErrRunFinished, id)
	}
	return nil
}

// GetRun retrieves a run record by id
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*models.RunRecord, error) {
	var record models.RunRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT id, model_id, learner, seed, episodes, timesteps, status, error_message, fingerprint, started_at, finished_at
		FROM runs
		WHERE id = $1
	`, id)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("run", id.String())
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &record, nil
}

// ListRuns returns the runs of one model, newest first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, modelID core.ModelID, limit int) ([]*models.RunRecord, error) {
	query := `
		SELECT id, model_id, learner, seed, episodes, timesteps, status, error_message, fingerprint, started_at, finished_at
		FROM runs
		WHERE model_id = $1
		ORDER BY started_at DESC
	`
	args := []interface{}{modelID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	records := []*models.RunRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// AppendOutcomes stores a batch of step outcomes for a run
func (r *RunRepositoryImpl) AppendOutcomes(ctx context.Context, id core.RunID, outcomes []experiment.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	records := make([]*models.OutcomeRecord, len(outcomes))
	for i, o := range outcomes {
		records[i] = models.NewOutcomeRecord(id, o)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to append outcomes: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(records); start += outcomeChunkSize {
		end := start + outcomeChunkSize
		if end > len(records) {
			end = len(records)
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO outcomes (run_id, episode, timestep, act_ns, update_ns, total_reward, detail)
			VALUES (:run_id, :episode, :timestep, :act_ns, :update_ns, :total_reward, :detail)
		`, records[start:end])
		if err != nil {
			return fmt.Errorf("failed to append outcomes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to append outcomes: %w", err)
	}
	return nil
}

// ListOutcomes returns every outcome of a run in episode/timestep order
func (r *RunRepositoryImpl) ListOutcomes(ctx context.Context, id core.RunID) ([]experiment.Outcome, error) {
	records := []*models.OutcomeRecord{}
	err := r.db.SelectContext(ctx, &records, `
		SELECT run_id, episode, timestep, act_ns, update_ns, total_reward, detail
		FROM outcomes
		WHERE run_id = $1
		ORDER BY episode, timestep
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}

	outcomes := make([]experiment.Outcome, len(records))
	for i, rec := range records {
		outcomes[i] = rec.Outcome()
	}
	return outcomes, nil
}
