package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ghprograms/programs-backend/internal/db"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/seed"
)

// Seeds the catalog from a YAML definition. With no -f flag (and no
// CATALOG_PATH), the embedded demo catalog is used. Re-running against
// the same file is idempotent.
func main() {
	var path string
	flag.StringVar(&path, "f", os.Getenv("CATALOG_PATH"), "path to a catalog yaml file (default: embedded sample)")
	flag.Parse()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	data := seed.SampleCatalog()
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			log.Error("Failed to read catalog file", "path", path, "error", err)
			os.Exit(1)
		}
		log.Info("Seeding from file", "path", path)
	} else {
		log.Info("Seeding embedded sample catalog")
	}

	catalog, err := seed.Parse(data)
	if err != nil {
		log.Error("Invalid catalog", "error", err)
		os.Exit(1)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}

	seeder := seed.NewSeeder(postgresService.DB(), log)
	if _, err := seeder.Apply(context.Background(), catalog); err != nil {
		log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
}
