package app

import (
	"context"
	"fmt"

	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/internal"
	"gomdp/models"
	"gomdp/ports"
)

// RunService executes experiments against cataloged models and records
// them: a run row is created before the first step, outcomes land in
// storage, and the row reaches a terminal status whether the run finished
// or died.
type RunService struct {
	catalog     *CatalogService
	runs        ports.RunRepository
	experiments *ExperimentService
	results     *ResultsService
	logger      *internal.Logger
}

// NewRunService creates a run service.
func NewRunService(catalog *CatalogService, runs ports.RunRepository, experiments *ExperimentService, results *ResultsService) *RunService {
	return &RunService{
		catalog:     catalog,
		runs:        runs,
		experiments: experiments,
		results:     results,
		logger:      internal.DefaultLogger.WithPrefix("[Runs]"),
	}
}

// ExecuteRequest names a stored model and the experiment to run against it.
type ExecuteRequest struct {
	ModelID     core.ModelID           `json:"model_id"`
	Learner     experiment.LearnerKind `json:"learner"`
	Episodes    int                    `json:"episodes"`
	Timesteps   int                    `json:"timesteps"`
	Seed        int64                  `json:"seed"`
	CodeVersion string                 `json:"code_version"`
}

// ExecuteResult pairs the catalog row with the in-memory run report.
type ExecuteResult struct {
	Run    *models.RunRecord `json:"run"`
	Report *RunReport        `json:"report"`
}

// Execute runs one recorded experiment to completion. The run is visible in
// the catalog from before its first step; failures finish it as failed with
// the error message preserved.
func (s *RunService) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	problem, record, err := s.catalog.LoadModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}

	setup := &experiment.Setup{
		Name:        record.Name,
		Description: record.Description,
		Learner:     req.Learner,
		Episodes:    req.Episodes,
		Timesteps:   req.Timesteps,
		Problem:     problem,
	}
	if err := setup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}

	runID := core.RunID(core.NewID())
	manifest := experiment.NewManifest(runID, record.Hash, setup, req.Seed, req.CodeVersion)
	runRecord := models.NewRunRecord(record.ID, manifest)
	if err := s.runs.CreateRun(ctx, runRecord); err != nil {
		return nil, err
	}

	report, err := s.experiments.Run(ctx, RunRequest{
		Setup:       setup,
		Seed:        req.Seed,
		RunID:       runID,
		ModelHash:   record.Hash,
		CodeVersion: req.CodeVersion,
	})
	if err != nil {
		s.finish(ctx, runID, models.RunStatusFailed, err.Error())
		return nil, fmt.Errorf("run %s failed: %w", runID, err)
	}

	if err := s.runs.AppendOutcomes(ctx, runID, report.Outcomes); err != nil {
		s.finish(ctx, runID, models.RunStatusFailed, err.Error())
		return nil, err
	}
	if err := s.runs.FinishRun(ctx, runID, models.RunStatusComplete, ""); err != nil {
		return nil, err
	}

	finished, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{Run: finished, Report: report}, nil
}

// finish records a terminal status on the bookkeeping path. It must reach
// storage even when the surrounding context is already canceled.
func (s *RunService) finish(ctx context.Context, id core.RunID, status models.RunStatus, errorMsg string) {
	if err := s.runs.FinishRun(context.WithoutCancel(ctx), id, status, errorMsg); err != nil {
		s.logger.Error("Failed to finish run %s as %s: %v", id, status, err)
	}
}

// Summary aggregates a stored run's outcomes. A run that never completed
// still summarizes; Complete reflects its catalog status.
func (s *RunService) Summary(ctx context.Context, id core.RunID) (*RunSummary, error) {
	record, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	outcomes, err := s.runs.ListOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.results.Summarize(outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize run %s: %w", id, err)
	}
	summary.Complete = record.Status == models.RunStatusComplete
	return summary, nil
}
