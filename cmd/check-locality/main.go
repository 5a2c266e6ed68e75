package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
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
		fmt.Println("Usage: go run ./cmd/check-locality [--point --lon X --lat Y] [--type T --q PARTIAL]")
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		lon   = flag.Float64("lon", 0, "longitude to test against the stored boundary")
		lat   = flag.Float64("lat", 0, "latitude to test against the stored boundary")
		point = flag.Bool("point", false, "run the boundary check for --lon/--lat")
		typ   = flag.String("type", "", "locality type to search")
		q     = flag.String("q", "", "partial name to search")
		limit = flag.Int("limit", locality.DefaultSearchLimit, "max suggestions")
	)
	flag.Parse()

	if !*point && *typ == "" {
		return errUsage
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return config.ErrMissingDatabaseURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout*2)
	defer cancel()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if *point {
		start := time.Now()
		checker := locality.NewBoundaryChecker(locality.NewPostGISBoundary(gdb))
		within, err := checker.IsWithinBoundary(ctx, *lon, *lat)
		if err != nil {
			return fmt.Errorf("boundary check: %w", err)
		}
		fmt.Printf("(%v, %v) within boundary: %v [%s]\n", *lon, *lat, within, time.Since(start).Round(time.Millisecond))
	}

	if *typ != "" {
		t, err := locality.ParseLocalityType(*typ)
		if err != nil {
			return err
		}
		ac := locality.NewAutocomplete(locality.NewCatalogue(locality.NewPostgresStore(gdb)), nil, 0)
		names, err := ac.Search(ctx, t, *q, *limit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		fmt.Printf("%s %q: %d match(es)\n", t, *q, len(names))
		if len(names) > 0 {
			fmt.Println("  " + strings.Join(names, "\n  "))
		}
	}
	return nil
}
