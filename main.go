package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/landtitle/titling-backend/internal/config"
	"github.com/landtitle/titling-backend/internal/db"
	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/logger"
	"github.com/landtitle/titling-backend/internal/metrics"
	"github.com/landtitle/titling-backend/internal/middleware"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")
	lg := logger.Setup()

	if err := run(lg); err != nil {
		log.Fatal(err)
	}
}

func run(lg *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if err := locality.Migrate(ctx, gdb); err != nil {
		return fmt.Errorf("failed to migrate locality tables: %w", err)
	}

	var cache locality.SuggestionCache
	catOpts := []locality.CatalogueOption{}
	rc, closeCache := locality.OpenSuggestionCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer closeCache()
	if rc != nil {
		cache = rc
		catOpts = append(catOpts, locality.WithSuggestionCache(rc))
		lg.Info("autocomplete_cache_enabled", "addr", cfg.Redis.Addr)
	}

	defType, err := locality.ParseLocalityType(cfg.Normalization.DefaultType)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	sources := make([]locality.RecordSource, 0, len(cfg.Normalization.Targets))
	for _, t := range cfg.Normalization.Targets {
		sources = append(sources, locality.NewTableSource(gdb, t.Table, t.IDColumn, t.Column))
	}
	normalizer, err := locality.NewNormalizer(sources,
		locality.WithDefaultType(defType),
		locality.WithLocker(locality.NewAdvisoryLocker(gdb, cfg.Normalization.AdvisoryLockKey)),
	)
	if err != nil {
		return err
	}

	catalogue := locality.NewCatalogue(locality.NewPostgresStore(gdb), catOpts...)
	limiter := middleware.NewRateLimiter(cfg.SearchRateLimit, cfg.SearchBurst)
	h := &locality.Handler{
		Catalogue:        catalogue,
		Autocomplete:     locality.NewAutocomplete(catalogue, cache, cfg.CacheTTL),
		Checker:          locality.NewBoundaryChecker(locality.NewPostGISBoundary(gdb)),
		Normalizer:       normalizer,
		StoreTimeout:     cfg.StoreTimeout,
		SearchMiddleware: []func(http.Handler) http.Handler{limiter.Middleware},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/localities", locality.SetupRoutes(h))
	r.With(middleware.AdminTokenMiddleware(cfg.AdminTokenHash)).
		Mount("/admin/localities", locality.SetupAdminRoutes(h))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server_failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server_shutdown_failed", "err", err)
	}
	return nil
}
