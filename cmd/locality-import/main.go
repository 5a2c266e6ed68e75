package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/landtitle/titling-backend/internal/config"
	"github.com/landtitle/titling-backend/internal/db"
	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/localityimport"
	"github.com/landtitle/titling-backend/internal/logger"
)

type pathList []string

func (p *pathList) String() string     { return fmt.Sprint(*p) }
func (p *pathList) Set(v string) error { *p = append(*p, v); return nil }

func main() {
	_ = godotenv.Load(".env.local")
	logger.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 on success, 2 on usage errors, 1 otherwise.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	errLog := log.New(stderr, "", log.LstdFlags)

	fs := flag.NewFlagSet("locality-import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var csvPaths, geoPaths pathList
	fs.Var(&csvPaths, "csv", "CSV dataset with type,name columns (repeatable)")
	fs.Var(&geoPaths, "geojson", "GeoJSON FeatureCollection dataset (repeatable)")
	var (
		nameProp    = fs.String("name-prop", "name", "GeoJSON property holding the locality name")
		typeProp    = fs.String("type-prop", "", "GeoJSON property holding the locality type (optional)")
		defaultType = fs.String("default-type", "arrondissement", "type for GeoJSON features without a type property")
		dbURL       = fs.String("db", "", "DATABASE_URL (defaults to the environment)")
		dryRun      = fs.Bool("dry-run", false, "parse and validate into an in-memory catalogue; no database writes")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(csvPaths) == 0 && len(geoPaths) == 0 {
		fs.Usage()
		return 2
	}

	defType, err := locality.ParseLocalityType(*defaultType)
	if err != nil {
		errLog.Print(err)
		return 2
	}

	var records []localityimport.Record
	for _, p := range csvPaths {
		recs, err := localityimport.ParseCSV(p)
		if err != nil {
			errLog.Printf("%s: %v", p, err)
			return 1
		}
		records = append(records, recs...)
	}
	for _, p := range geoPaths {
		recs, err := localityimport.ParseGeoJSON(p, localityimport.GeoJSONOptions{
			NameProperty: *nameProp,
			TypeProperty: *typeProp,
			DefaultType:  defType,
		})
		if err != nil {
			errLog.Printf("%s: %v", p, err)
			return 1
		}
		records = append(records, recs...)
	}

	var (
		store   locality.Store
		catOpts []locality.CatalogueOption
	)
	if *dryRun {
		store = locality.NewMemoryStore()
	} else {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			errLog.Printf("config: %v", err)
			return 1
		}
		url := *dbURL
		if url == "" {
			url = cfg.DatabaseURL
		}
		if url == "" {
			errLog.Print(config.ErrMissingDatabaseURL)
			return 1
		}

		gdb, err := db.Open(ctx, url)
		if err != nil {
			errLog.Print(err)
			return 1
		}
		defer db.Close(gdb)

		if err := locality.Migrate(ctx, gdb); err != nil {
			errLog.Print(err)
			return 1
		}
		store = locality.NewPostgresStore(gdb)

		// A running server may hold cached suggestions for the types we touch.
		cache, closeCache := locality.OpenSuggestionCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer closeCache()
		if cache != nil {
			catOpts = append(catOpts, locality.WithSuggestionCache(cache))
		}
	}

	st, err := localityimport.Run(ctx, locality.NewCatalogue(store, catOpts...), records)
	if err != nil {
		errLog.Print(err)
		return 1
	}

	mode := "Imported"
	if *dryRun {
		mode = "Dry run"
	}
	fmt.Fprintf(stdout, "%s: read=%d invalid=%d added=%d total=%d\n", mode, st.Read, st.Invalid, st.Added, st.After)
	return 0
}
