package main

import (
	"context"
	"errors"
	"log"
	"os"

	"gomdp/adapters/postgres"
	"gomdp/adapters/sim"
	"gomdp/adapters/wire"
	"gomdp/app"
	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/internal/migration"
	"gomdp/internal/testkit"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [demo]")
	}

	databaseURL := os.Args[1]
	seedDemo := len(os.Args) > 2 && os.Args[2] == "demo"

	// Connect to database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	runner := migration.NewRunner()

	log.Printf("Running migrations (schema version %s)", runner.Version())
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations complete")

	if !seedDemo {
		return
	}

	if err := seedDemoCatalog(ctx, db); err != nil {
		log.Fatalf("Demo seeding failed: %v", err)
	}
}

// seedDemoCatalog stores a small synthetic model and records one run against
// it so a fresh install has something to browse.
func seedDemoCatalog(ctx context.Context, db *sqlx.DB) error {
	modelRepo := postgres.NewModelRepository(db)
	runRepo := postgres.NewRunRepository(db)
	catalog := app.NewCatalogService(modelRepo, wire.NewCodec())

	model, err := testkit.NewModelGenerator(testkit.DefaultGeneratorConfig()).Generate()
	if err != nil {
		return err
	}

	record, err := catalog.StoreModel(ctx, model)
	if errors.Is(err, core.ErrAlreadyExists) {
		log.Println("Demo model already present, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Seeded demo model %s (%s)", record.Name, record.Hash.Short())

	experiments := app.NewExperimentService(sim.NewEnvironment, sim.PolicyFor, sim.NewSeededStreams())
	runSvc := app.NewRunService(catalog, runRepo, experiments, app.NewResultsService())

	result, err := runSvc.Execute(ctx, app.ExecuteRequest{
		ModelID:     record.ID,
		Learner:     experiment.LearnerRandom,
		Episodes:    5,
		Timesteps:   50,
		Seed:        42,
		CodeVersion: "migrate-demo",
	})
	if err != nil {
		return err
	}

	log.Printf("Recorded demo run %s: %d steps, total reward %.4f",
		result.Run.ID, len(result.Report.Outcomes), result.Report.TotalReward)
	return nil
}
