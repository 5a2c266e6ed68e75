package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/landtitle/titling-backend/internal/config"
	"github.com/landtitle/titling-backend/internal/db"
	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/logger"
)

var errUsage = errors.New("usage")

func main() {
	_ = godotenv.Load(".env.local")
	logger.Setup()

	err := run()
	if errors.Is(err, errUsage) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		file    = flag.String("file", "", "GeoJSON country boundary (Polygon, MultiPolygon or FeatureCollection)")
		country = flag.String("country", "CMR", "ISO 3166-1 alpha-3 country code")
		name    = flag.String("name", "Cameroon", "boundary display name")
		dryRun  = flag.Bool("dry-run", false, "validate the file only")
		confirm = flag.Bool("confirm", false, "required: replaces the stored boundary")
	)
	flag.Parse()

	if *file == "" {
		return errUsage
	}

	b, err := locality.LoadPolygonBoundaryFile(*file)
	if err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}
	fmt.Printf("%s: %d polygon(s)\n", *file, b.Polygons())
	if *dryRun {
		return nil
	}
	if !*confirm {
		return errors.New("refusing to replace the stored boundary without --confirm")
	}

	geo, err := b.MultiPolygonGeoJSON()
	if err != nil {
		return err
	}

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
		return err
	}
	if err := locality.ReplaceBoundary(ctx, gdb, *country, *name, filepath.Base(*file), geo); err != nil {
		return err
	}
	fmt.Printf("✅ Boundary %s (%s) replaced\n", *country, *name)
	return nil
}
