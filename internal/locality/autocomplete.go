package locality

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/landtitle/titling-backend/internal/logger"
	"github.com/landtitle/titling-backend/internal/metrics"
)

const (
	// DefaultSearchLimit is used when the caller passes a non-positive limit.
	DefaultSearchLimit = 10
	// MaxSearchLimit is the largest limit a caller may ask for.
	MaxSearchLimit = 100
)

// Autocomplete answers partial-name queries for form inputs. It is read-only.
type Autocomplete struct {
	catalogue *Catalogue
	cache     SuggestionCache
	ttl       time.Duration
	log       *slog.Logger
}

// NewAutocomplete builds the service on top of a catalogue. cache may be nil.
func NewAutocomplete(c *Catalogue, cache SuggestionCache, ttl time.Duration) *Autocomplete {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Autocomplete{catalogue: c, cache: cache, ttl: ttl, log: logger.L()}
}

// Search returns up to limit names of type t containing partial, compared
// case-insensitively and sorted ascending. No match yields an empty slice.
// A limit above MaxSearchLimit is a ValidationError.
func (a *Autocomplete) Search(ctx context.Context, t LocalityType, partial string, limit int) ([]string, error) {
	if err := validateType(t); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return nil, &ValidationError{Field: "limit", Reason: "must not exceed " + strconv.Itoa(MaxSearchLimit)}
	}
	partial = CanonicalName(partial)

	start := time.Now()
	defer func() {
		metrics.LocalitySearchDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()
	metrics.LocalitySearchesTotal.WithLabelValues(string(t)).Inc()

	key := suggestionKey(t, partial, limit)
	var gen int64
	cacheOK := false
	if a.cache != nil {
		lookup, err := a.cache.Get(ctx, t, key)
		switch {
		case err != nil:
			metrics.LocalitySearchCacheTotal.WithLabelValues("error").Inc()
			a.log.Warn("locality_cache_get_failed", "type", t, "err", err)
		case lookup.Hit:
			metrics.LocalitySearchCacheTotal.WithLabelValues("hit").Inc()
			return lookup.Names, nil
		default:
			metrics.LocalitySearchCacheTotal.WithLabelValues("miss").Inc()
			gen, cacheOK = lookup.Generation, true
		}
	}

	names, err := a.catalogue.store.Search(ctx, t, partial, limit)
	if err != nil {
		return nil, wrapStore("search localities", err)
	}
	if names == nil {
		names = []string{}
	}

	// Only fill after a clean miss: the generation read then is the one the
	// store result belongs to.
	if cacheOK {
		if err := a.cache.Set(ctx, t, key, gen, names, a.ttl); err != nil {
			a.log.Warn("locality_cache_set_failed", "type", t, "err", err)
		}
	}
	return names, nil
}

func suggestionKey(t LocalityType, partial string, limit int) string {
	return string(t) + ":" + strconv.Itoa(limit) + ":" + foldName(partial)
}
