package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"gomdp/internal/api"
	"gomdp/internal/config"
	"gomdp/internal/container"
	"gomdp/internal/errors"
	"gomdp/internal/migration"
	"gomdp/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// resetDatabase drops all tables so migrations rebuild the schema from scratch
func resetDatabase(db *sqlx.DB) error {
	log.Println("🔄 Resetting database - dropping all tables...")

	// Drop tables in reverse dependency order
	dropTables := []string{
		"outcomes",
		"runs",
		"models",
	}

	for _, table := range dropTables {
		_, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table))
		if err != nil {
			log.Printf("Warning: failed to drop table %s: %v", table, err)
		}
	}

	log.Println("✅ Database reset complete")
	return nil
}

// initDatabase initializes the PostgreSQL database connection
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	// Optional schema reset for development databases
	if appConfig.Database.Reset {
		if err := resetDatabase(db); err != nil {
			return nil, errors.Wrap(err, "database reset failed")
		}
	}

	// Run migrations
	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDatabase(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// Create dependency injection container
	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// Initialize container with database
	if err := appContainer.InitWithDatabase(db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Serve the JSON API alongside the HTML views
	gin.SetMode(appConfig.Server.GinMode)
	apiServer := api.NewServer(api.Deps{
		Models:  appContainer.Models,
		Runs:    appContainer.Runs,
		Catalog: appContainer.Catalog,
		Runner:  appContainer.RunRecorder,
		Results: appContainer.Results,
		Sim:     appConfig.Sim,
		DataDir: appConfig.Paths.DataDir,
	})
	go func() {
		if err := apiServer.Start(appConfig.Server.APIPort); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			log.Printf("🚀 Performance profiling server starting on :%s", appConfig.Profiling.Port)
			log.Printf("💡 View profiles: go tool pprof -http=:8081 http://localhost:%s/debug/pprof/profile?seconds=30", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				log.Printf("❌ pprof server failed: %v", err)
			}
		}()
	}

	// Initialize the web UI
	uiApp, err := ui.NewApp(ui.Deps{
		Models:  appContainer.Models,
		Runs:    appContainer.Runs,
		Catalog: appContainer.Catalog,
		Runner:  appContainer.RunRecorder,
	})
	if err != nil {
		log.Fatalf("Failed to create UI app: %v", err)
	}

	// Start the server
	log.Printf("🚀 Starting GoMDP server on port %s", appConfig.Server.Port)
	log.Fatal(uiApp.Start(appConfig.Server.Port))
}
