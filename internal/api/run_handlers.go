package api

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"gomdp/adapters/excel"
	"gomdp/app"
	"gomdp/domain/core"
	"gomdp/domain/experiment"
)

// runRequest is the body of POST /api/models/:id/runs. Omitted fields fall
// back to the configured simulation defaults.
type runRequest struct {
	Learner   string `json:"learner"`
	Episodes  int    `json:"episodes"`
	Timesteps int    `json:"timesteps"`
	Seed      *int64 `json:"seed"`
}

func (s *Server) handleListRuns(c *gin.Context) {
	id, err := core.ParseModelID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	limit, err := queryLimit(c, 50)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runs, err := s.deps.Runs.ListRuns(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleExecuteRun runs one recorded experiment against a stored model and
// responds once every outcome is in the archive.
func (s *Server) handleExecuteRun(c *gin.Context) {
	id, err := core.ParseModelID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	req := runRequest{
		Learner:   experiment.LearnerRandom.String(),
		Episodes:  s.deps.Sim.Episodes,
		Timesteps: s.deps.Sim.Timesteps,
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
	}

	learner, err := experiment.ParseLearner(req.Learner)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Episodes <= 0 || req.Timesteps <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "episodes and timesteps must be positive"})
		return
	}
	seed := s.deps.Sim.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	result, err := s.deps.Runner.Execute(c.Request.Context(), app.ExecuteRequest{
		ModelID:     id,
		Learner:     learner,
		Episodes:    req.Episodes,
		Timesteps:   req.Timesteps,
		Seed:        seed,
		CodeVersion: s.deps.Sim.CodeVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("[API] Run %s recorded for model %s (%d steps)",
		result.Run.ID, id, len(result.Report.Outcomes))
	c.JSON(http.StatusCreated, gin.H{
		"run":          result.Run,
		"steps":        len(result.Report.Outcomes),
		"total_reward": result.Report.TotalReward,
		"runtime_ms":   result.Report.RuntimeMs,
	})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	record, err := s.deps.Runs.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) handleRunOutcomes(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	if _, err := s.deps.Runs.GetRun(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	outcomes, err := s.deps.Runs.ListOutcomes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

func (s *Server) handleRunSummary(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	summary, err := s.deps.Runner.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// handleRunExport writes the run to a workbook under the data directory and
// serves it as a download.
func (s *Server) handleRunExport(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	ctx := c.Request.Context()
	run, err := s.deps.Runs.GetRun(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	problem, record, err := s.deps.Catalog.LoadModel(ctx, run.ModelID)
	if err != nil {
		respondError(c, err)
		return
	}

	learner, err := experiment.ParseLearner(run.Learner)
	if err != nil {
		respondError(c, err)
		return
	}

	outcomes, err := s.deps.Runs.ListOutcomes(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	setup := &experiment.Setup{
		Name:        record.Name,
		Description: record.Description,
		Learner:     learner,
		Episodes:    run.Episodes,
		Timesteps:   run.Timesteps,
		Problem:     problem,
	}

	if err := os.MkdirAll(s.deps.DataDir, 0o755); err != nil {
		respondError(c, err)
		return
	}
	path := filepath.Join(s.deps.DataDir, fmt.Sprintf("run_%s.xlsx", id))

	exporter := excel.NewRunExporter(path)
	if err := exporter.Export(setup, outcomes); err != nil {
		respondError(c, err)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}
