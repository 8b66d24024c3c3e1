package ports

import (
	"context"

	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/models"
)

// RunRepository defines storage for run records and their recorded outcomes.
type RunRepository interface {
	// CreateRun inserts a run in the running state.
	CreateRun(ctx context.Context, record *models.RunRecord) error

	// FinishRun marks a run complete or failed and stamps the finish time.
	// Finishing a run twice fails with core.ErrRunFinished.
	FinishRun(ctx context.Context, id core.RunID, status models.RunStatus, errorMsg string) error

	// GetRun retrieves a run record by id.
	GetRun(ctx context.Context, id core.RunID) (*models.RunRecord, error)

	// ListRuns returns the runs of one model, newest first, optionally limited.
	ListRuns(ctx context.Context, modelID core.ModelID, limit int) ([]*models.RunRecord, error)

	// AppendOutcomes stores a batch of step outcomes for a run.
	AppendOutcomes(ctx context.Context, id core.RunID, outcomes []experiment.Outcome) error

	// ListOutcomes returns every outcome of a run in episode/timestep order.
	ListOutcomes(ctx context.Context, id core.RunID) ([]experiment.Outcome, error)
}
