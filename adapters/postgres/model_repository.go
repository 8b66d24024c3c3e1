package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gomdp/domain/core"
	"gomdp/models"
	"gomdp/ports"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// ModelRepositoryImpl implements ModelRepository for PostgreSQL
type ModelRepositoryImpl struct {
	db *sqlx.DB
}

var _ ports.ModelRepository = (*ModelRepositoryImpl)(nil)

// NewModelRepository creates a new PostgreSQL model repository
func NewModelRepository(db *sqlx.DB) ports.ModelRepository {
	return &ModelRepositoryImpl{db: db}
}

// Save stores a model record, payload included
func (r *ModelRepositoryImpl) Save(ctx context.Context, record *models.ModelRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO models (id, name, description, gamma, state_vars, action_vars, reward_factors, transition_factors, content_hash, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID, record.Name, record.Description, record.Gamma, record.StateVars, record.ActionVars,
		record.RewardFactors, record.TransitionFactors, record.Hash, record.Payload, record.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: model with hash %s", core.ErrAlreadyExists, record.Hash.Short())
		}
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// GetByID retrieves a model record by id, payload included
func (r *ModelRepositoryImpl) GetByID(ctx context.Context, id core.ModelID) (*models.ModelRecord, error) {
	var record models.ModelRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT id, name, description, gamma, state_vars, action_vars, reward_factors, transition_factors, content_hash, payload, created_at
		FROM models
		WHERE id = $1
	`, id)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("model", id.String())
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return &record, nil
}

// GetByHash retrieves a model record by its content hash
func (r *ModelRepositoryImpl) GetByHash(ctx context.Context, hash core.ModelHash) (*models.ModelRecord, error) {
	var record models.ModelRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT id, name, description, gamma, state_vars, action_vars, reward_factors, transition_factors, content_hash, payload, created_at
		FROM models
		WHERE content_hash = $1
	`, hash)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("model", hash.Short())
		}
		return nil, fmt.Errorf("failed to get model by hash: %w", err)
	}
	return &record, nil
}

// List returns catalog rows newest first, payloads omitted
func (r *ModelRepositoryImpl) List(ctx context.Context, limit int) ([]*models.ModelRecord, error) {
	query := `
		SELECT id, name, description, gamma, state_vars, action_vars, reward_factors, transition_factors, content_hash, created_at
		FROM models
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	records := []*models.ModelRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return records, nil
}

// Delete removes a model; runs and outcomes cascade through the schema
func (r *ModelRepositoryImpl) Delete(ctx context.Context, id core.ModelID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	if affected == 0 {
		return core.NewNotFoundError("model", id.String())
	}
	return nil
}
