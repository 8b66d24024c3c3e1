// Package api serves the model catalog and run archive as a JSON API.
// Pages are the ui package's job; everything here speaks wire payloads,
// records, and summaries.
package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"gomdp/adapters/wire"
	"gomdp/app"
	"gomdp/domain/core"
	"gomdp/internal/config"
	"gomdp/ports"
)

// Deps carries everything the API serves.
type Deps struct {
	Models  ports.ModelRepository
	Runs    ports.RunRepository
	Catalog *app.CatalogService
	Runner  *app.RunService
	Results *app.ResultsService
	Sim     config.SimConfig // defaults for run requests that omit parameters
	DataDir string           // workbook exports are written here
}

// Server is the JSON API over the catalog.
type Server struct {
	deps   Deps
	router *gin.Engine
}

// NewServer creates the API server and registers its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: gin.Default(),
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying engine for embedding and tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves the API on the given port and blocks.
func (s *Server) Start(port string) error {
	log.Printf("[API] Serving model catalog API on :%s", port)
	return s.router.Run(":" + port)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/models", s.handleListModels)
		api.POST("/models", s.handleUploadModel)
		api.GET("/models/:id", s.handleGetModel)
		api.GET("/models/:id/payload", s.handleModelPayload)
		api.DELETE("/models/:id", s.handleDeleteModel)

		api.GET("/models/:id/runs", s.handleListRuns)
		api.POST("/models/:id/runs", s.handleExecuteRun)

		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/runs/:id/outcomes", s.handleRunOutcomes)
		api.GET("/runs/:id/summary", s.handleRunSummary)
		api.GET("/runs/:id/export", s.handleRunExport)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps domain errors onto HTTP statuses. Anything unmapped is
// an internal error.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var decodeErr *wire.DecodeError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.As(err, &decodeErr):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
