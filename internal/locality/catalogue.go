package locality

import (
	"context"
	"log/slog"
	"time"

	"github.com/landtitle/titling-backend/internal/logger"
	"github.com/landtitle/titling-backend/internal/metrics"
)

// Catalogue is the canonical store of localities. Records are created once
// and never updated.
type Catalogue struct {
	store Store
	cache SuggestionCache
	log   *slog.Logger
}

// CatalogueOption configures a Catalogue.
type CatalogueOption func(*Catalogue)

// WithSuggestionCache makes the catalogue invalidate cached autocomplete
// results whenever a new locality is created.
func WithSuggestionCache(c SuggestionCache) CatalogueOption {
	return func(cat *Catalogue) { cat.cache = c }
}

// WithCatalogueLogger overrides the default logger.
func WithCatalogueLogger(l *slog.Logger) CatalogueOption {
	return func(cat *Catalogue) { cat.log = l }
}

func NewCatalogue(store Store, opts ...CatalogueOption) *Catalogue {
	c := &Catalogue{store: store, log: logger.L()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpsertLocality inserts (t, name) if absent and returns the stored record
// either way. Duplicates are a no-op, never an error.
func (c *Catalogue) UpsertLocality(ctx context.Context, t LocalityType, name string) (Locality, error) {
	rec, _, err := c.upsert(ctx, t, name)
	return rec, err
}

func (c *Catalogue) upsert(ctx context.Context, t LocalityType, name string) (Locality, bool, error) {
	if err := validateType(t); err != nil {
		return Locality{}, false, err
	}
	canon, err := validateName(name)
	if err != nil {
		return Locality{}, false, err
	}

	rec := Locality{
		ID:        LocalityID(t, canon),
		Type:      t,
		Name:      canon,
		CreatedAt: time.Now().UTC(),
	}

	stored, created, err := c.store.Upsert(ctx, rec)
	if err != nil {
		metrics.LocalityUpsertsTotal.WithLabelValues(string(t), "error").Inc()
		return Locality{}, false, wrapStore("upsert locality", err)
	}

	if !created {
		metrics.LocalityUpsertsTotal.WithLabelValues(string(t), "existing").Inc()
		return stored, false, nil
	}

	metrics.LocalityUpsertsTotal.WithLabelValues(string(t), "created").Inc()
	c.log.Debug("locality_created", "type", t, "name", stored.Name, "id", stored.ID)
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, t); err != nil {
			c.log.Warn("locality_cache_invalidate_failed", "type", t, "err", err)
		}
	}
	return stored, true, nil
}

// ListByType returns every locality of t, ordered by name.
func (c *Catalogue) ListByType(ctx context.Context, t LocalityType) ([]Locality, error) {
	if err := validateType(t); err != nil {
		return nil, err
	}
	out, err := c.store.ListByType(ctx, t)
	if err != nil {
		return nil, wrapStore("list localities", err)
	}
	return out, nil
}

// Count returns the total number of catalogue rows.
func (c *Catalogue) Count(ctx context.Context) (int64, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, wrapStore("count localities", err)
	}
	return n, nil
}
