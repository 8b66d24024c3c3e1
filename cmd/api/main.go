package main

import (
	"context"
	"log"

	"gomdp/internal/api"
	"gomdp/internal/config"
	"gomdp/internal/container"
	"gomdp/internal/migration"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Standalone JSON API server. The combined binary at the repository root
// serves the HTML views as well; this one is for headless deployments.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.NewRunner().Run(context.Background(), db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	gin.SetMode(appConfig.Server.GinMode)
	server := api.NewServer(api.Deps{
		Models:  appContainer.Models,
		Runs:    appContainer.Runs,
		Catalog: appContainer.Catalog,
		Runner:  appContainer.RunRecorder,
		Results: appContainer.Results,
		Sim:     appConfig.Sim,
		DataDir: appConfig.Paths.DataDir,
	})

	log.Fatal(server.Start(appConfig.Server.APIPort))
}
