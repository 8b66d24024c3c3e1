package container

import (
	"context"
	"fmt"
	"log"

	"gomdp/adapters/postgres"
	"gomdp/adapters/sim"
	"gomdp/adapters/wire"
	"gomdp/app"
	"gomdp/internal/config"
	"gomdp/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	Models ports.ModelRepository
	Runs   ports.RunRepository

	// Simulation components
	Codec ports.ModelCodec
	RNG   ports.RNG

	// Application services
	Catalog     *app.CatalogService
	Experiments *app.ExperimentService
	RunRecorder *app.RunService
	Results     *app.ResultsService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
	}

	return c, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)

	// Initialize repositories
	c.Models = postgres.NewModelRepository(db)
	c.Runs = postgres.NewRunRepository(db)

	// Initialize services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Printf("Container initialized successfully with database connection")
	return nil
}

// initServices wires the codec, simulation factories, and application
// services over the repositories.
func (c *Container) initServices() error {
	c.Codec = wire.NewCodec()
	c.RNG = sim.NewSeededStreams()

	c.Catalog = app.NewCatalogService(c.Models, c.Codec)
	c.Experiments = app.NewExperimentService(sim.NewEnvironment, sim.PolicyFor, c.RNG)
	c.Results = app.NewResultsService()
	c.RunRecorder = app.NewRunService(c.Catalog, c.Runs, c.Experiments, c.Results)

	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
