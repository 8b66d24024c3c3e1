package ports

import (
	"context"

	"gomdp/domain/core"
	"gomdp/models"
)

// ModelRepository defines storage for encoded models and their catalog rows.
// The wire payload is the source of truth; catalog columns exist for listing
// and lookup without decoding.
type ModelRepository interface {
	// Save stores a model record, payload included. Saving a payload whose
	// content hash already exists fails.
	Save(ctx context.Context, record *models.ModelRecord) error

	// GetByID retrieves a model record by id, payload included.
	GetByID(ctx context.Context, id core.ModelID) (*models.ModelRecord, error)

	// GetByHash retrieves a model record by its content hash.
	GetByHash(ctx context.Context, hash core.ModelHash) (*models.ModelRecord, error)

	// List returns catalog rows newest first, optionally limited. Payloads
	// are omitted.
	List(ctx context.Context, limit int) ([]*models.ModelRecord, error)

	// Delete removes a model and, through the schema, its runs and outcomes.
	Delete(ctx context.Context, id core.ModelID) error
}
