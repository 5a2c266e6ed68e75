package main

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/landtitle/titling-backend/internal/logger"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailed     = 1
	exitUsage      = 2
	exitInProgress = 3
)

func main() {
	_ = godotenv.Load(".env.local")
	logger.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	errLog := log.New(stderr, "", log.LstdFlags)

	fs := flag.NewFlagSet("normalize-localities", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dryRun     = fs.Bool("dry-run", false, "report what would be converted without writing")
		configPath = fs.String("config", "", "YAML file with normalization targets (overrides LOCALITY_CONFIG)")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		errLog.Printf("config: %v", err)
		return exitFailed
	}
	if *configPath != "" {
		n, err := config.LoadNormalizationFile(*configPath)
		if err != nil {
			errLog.Print(err)
			return exitFailed
		}
		cfg.Normalization = n
	}
	if cfg.DatabaseURL == "" {
		errLog.Print(config.ErrMissingDatabaseURL)
		return exitFailed
	}
	if err := cfg.Normalization.Validate(); err != nil {
		errLog.Print(err)
		return exitFailed
	}

	defType, err := locality.ParseLocalityType(cfg.Normalization.DefaultType)
	if err != nil {
		errLog.Print(err)
		return exitFailed
	}

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		errLog.Print(err)
		return exitFailed
	}
	defer db.Close(gdb)

	sources := make([]locality.RecordSource, 0, len(cfg.Normalization.Targets))
	for _, t := range cfg.Normalization.Targets {
		sources = append(sources, locality.NewTableSource(gdb, t.Table, t.IDColumn, t.Column))
	}

	n, err := locality.NewNormalizer(sources,
		locality.WithDefaultType(defType),
		locality.WithDryRun(*dryRun),
		locality.WithLocker(locality.NewAdvisoryLocker(gdb, cfg.Normalization.AdvisoryLockKey)),
	)
	if err != nil {
		errLog.Print(err)
		return exitFailed
	}

	res, err := n.NormalizeBatch(ctx)
	return report(res, err, stdout, stderr)
}

// report prints a pass result and maps it to an exit code.
func report(res locality.BatchResult, err error, stdout, stderr io.Writer) int {
	if errors.Is(err, locality.ErrNormalizationInProgress) {
		fmt.Fprintln(stderr, "another normalization pass is running; nothing done")
		return exitInProgress
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintln(stdout, string(out))

	if err := res.Err(); err != nil {
		var pbf *locality.PartialBatchFailure
		if errors.As(err, &pbf) {
			fmt.Fprintf(stderr, "%v: %v\n", err, pbf.IDs())
		}
		return exitFailed
	}
	return exitOK
}
