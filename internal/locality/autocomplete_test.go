package locality_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landtitle/titling-backend/internal/locality"
)

func seededCatalogue(t *testing.T, opts ...locality.CatalogueOption) *locality.Catalogue {
	t.Helper()
	cat := locality.NewCatalogue(locality.NewMemoryStore(), opts...)
	for _, n := range []string{"Soa", "Sotuba", "Obala", "Mbankomo"} {
		_, err := cat.UpsertLocality(context.Background(), locality.District, n)
		require.NoError(t, err)
	}
	_, err := cat.UpsertLocality(context.Background(), locality.Department, "Mefou-et-Afamba")
	require.NoError(t, err)
	return cat
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	ac := locality.NewAutocomplete(seededCatalogue(t), nil, 0)

	got, err := ac.Search(context.Background(), locality.District, "so", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soa", "Sotuba"}, got)

	got, err = ac.Search(context.Background(), locality.District, "OT", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sotuba"}, got)
}

func TestSearch_NoMatchIsEmpty(t *testing.T) {
	ac := locality.NewAutocomplete(seededCatalogue(t), nil, 0)

	got, err := ac.Search(context.Background(), locality.District, "zzz", 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearch_TypeScoped(t *testing.T) {
	ac := locality.NewAutocomplete(seededCatalogue(t), nil, 0)

	got, err := ac.Search(context.Background(), locality.Department, "a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mefou-et-Afamba"}, got)
}

func TestSearch_Limit(t *testing.T) {
	ctx := context.Background()
	cat := locality.NewCatalogue(locality.NewMemoryStore())
	for i := 0; i < 120; i++ {
		_, err := cat.UpsertLocality(ctx, locality.District, fmt.Sprintf("Bloc %03d", i))
		require.NoError(t, err)
	}
	ac := locality.NewAutocomplete(cat, nil, 0)

	got, err := ac.Search(ctx, locality.District, "bloc", 0)
	require.NoError(t, err)
	assert.Len(t, got, locality.DefaultSearchLimit)
	assert.Equal(t, "Bloc 000", got[0])

	got, err = ac.Search(ctx, locality.District, "bloc", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bloc 000", "Bloc 001", "Bloc 002"}, got)

	got, err = ac.Search(ctx, locality.District, "bloc", locality.MaxSearchLimit)
	require.NoError(t, err)
	assert.Len(t, got, locality.MaxSearchLimit)

	_, err = ac.Search(ctx, locality.District, "bloc", locality.MaxSearchLimit+1)
	var ve *locality.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "limit", ve.Field)
}

func TestSearch_LikeMetacharactersAreLiteral(t *testing.T) {
	ac := locality.NewAutocomplete(seededCatalogue(t), nil, 0)

	got, err := ac.Search(context.Background(), locality.District, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_InvalidType(t *testing.T) {
	ac := locality.NewAutocomplete(seededCatalogue(t), nil, 0)

	_, err := ac.Search(context.Background(), locality.LocalityType("village"), "so", 10)
	assert.True(t, locality.IsValidation(err))
}

// fakeCache is an in-memory SuggestionCache that counts calls.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]string
	gets, sets  int
	invalidated int
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]string)}
}

func (c *fakeCache) Get(_ context.Context, t locality.LocalityType, key string) (locality.CacheLookup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return locality.CacheLookup{}, c.getErr
	}
	v, ok := c.entries[key]
	return locality.CacheLookup{Names: v, Hit: ok}, nil
}

func (c *fakeCache) Set(_ context.Context, t locality.LocalityType, key string, _ int64, names []string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = names
	return nil
}

func (c *fakeCache) Invalidate(context.Context, locality.LocalityType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.entries = make(map[string][]string)
	return nil
}

func TestSearch_CacheHitAndInvalidation(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	cat := seededCatalogue(t, locality.WithSuggestionCache(cache))
	ac := locality.NewAutocomplete(cat, cache, time.Minute)

	got, err := ac.Search(ctx, locality.District, "so", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soa", "Sotuba"}, got)
	assert.Equal(t, 1, cache.sets)

	got, err = ac.Search(ctx, locality.District, "SO", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soa", "Sotuba"}, got)
	assert.Equal(t, 1, cache.sets, "second lookup should be served from cache")

	before := cache.invalidated
	_, err = cat.UpsertLocality(ctx, locality.District, "Soa")
	require.NoError(t, err)
	assert.Equal(t, before, cache.invalidated, "existing record must not invalidate")

	_, err = cat.UpsertLocality(ctx, locality.District, "Sombo")
	require.NoError(t, err)
	assert.Equal(t, before+1, cache.invalidated)

	got, err = ac.Search(ctx, locality.District, "so", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soa", "Sombo", "Sotuba"}, got)
}

func TestSearch_CacheFailureFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	ac := locality.NewAutocomplete(seededCatalogue(t), cache, time.Minute)

	got, err := ac.Search(context.Background(), locality.District, "so", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soa", "Sotuba"}, got)
}

func TestSearch_StoreFailure(t *testing.T) {
	down := errors.New("timeout")
	ac := locality.NewAutocomplete(locality.NewCatalogue(failingStore{err: down}), nil, 0)

	_, err := ac.Search(context.Background(), locality.District, "so", 10)
	var se *locality.StoreError
	require.ErrorAs(t, err, &se)
}
