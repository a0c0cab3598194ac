// ==============================================================================
// SEED DATA - cmd/seed/main.go
// ==============================================================================
// Loads the catalog file into the database and upserts UMA unit values.
// Run after migrations, before starting the engine.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"pld/internal/catalog"
	"pld/internal/domain"
	"pld/internal/repository/postgres"
	"pld/pkg/config"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Official UMA daily values published by INEGI per fiscal year.
var unitValues = map[int]string{
	2024: "108.57",
	2025: "113.14",
	2026: "117.31",
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := os.ReadFile(cfg.Catalog.SeedFile)
	if err != nil {
		log.Fatalf("Failed to read catalog file %s: %v", cfg.Catalog.SeedFile, err)
	}

	var file catalog.File
	if err := json.Unmarshal(data, &file); err != nil {
		log.Fatalf("Failed to parse catalog file: %v", err)
	}

	catalogRepo := postgres.NewCatalogRepository(db)
	if err := catalogRepo.Save(ctx, &file); err != nil {
		log.Fatalf("Failed to save catalog: %v", err)
	}
	log.Printf("Catalog version %s saved (%d activities)", file.Version, len(file.Activities))

	unitValueRepo := postgres.NewUnitValueRepository(db)
	for year, raw := range unitValues {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			log.Fatalf("Invalid unit value for %d: %v", year, err)
		}
		uv := &domain.UnitValue{Year: year, Value: value, CreatedAt: time.Now().UTC()}
		if err := unitValueRepo.Upsert(ctx, uv); err != nil {
			log.Fatalf("Failed to upsert unit value for %d: %v", year, err)
		}
		log.Printf("Unit value %d = %s", year, value.String())
	}

	log.Println("Seed completed")
}
