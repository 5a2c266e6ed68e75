package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/landtitle/titling-backend/internal/config"
	"github.com/landtitle/titling-backend/internal/db"
	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/logger"
	"github.com/landtitle/titling-backend/internal/seeds"
)

func main() {
	_ = godotenv.Load(".env.local")
	logger.Setup()

	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return config.ErrMissingDatabaseURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if err := locality.Migrate(ctx, gdb); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	cat := locality.NewCatalogue(locality.NewPostgresStore(gdb))
	if err := seeds.SeedAll(ctx, cat); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	return nil
}
