package main

import (
	"context"
	"log"

	"gomdp/internal/config"
	"gomdp/internal/container"
	"gomdp/internal/migration"
	"gomdp/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Standalone HTML UI server for browsing an existing catalog.
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

	app, err := ui.NewApp(ui.Deps{
		Models:  appContainer.Models,
		Runs:    appContainer.Runs,
		Catalog: appContainer.Catalog,
		Runner:  appContainer.RunRecorder,
	})
	if err != nil {
		log.Fatal("Failed to create UI app:", err)
	}

	log.Printf("Starting GoMDP UI on http://localhost:%s", appConfig.Server.Port)
	log.Fatal(app.Start(appConfig.Server.Port))
}
