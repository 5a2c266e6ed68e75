package locality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheLookup is the result of SuggestionCache.Get. Generation identifies the
// cache state the lookup saw; a miss is filled by passing it back to Set.
type CacheLookup struct {
	Names      []string
	Hit        bool
	Generation int64
}

// SuggestionCache memoizes autocomplete results. A failing cache must never
// fail a search; callers log and fall through to the store.
type SuggestionCache interface {
	Get(ctx context.Context, t LocalityType, key string) (CacheLookup, error)
	// Set stores names under the generation returned by the Get that missed,
	// so a result read before an Invalidate is never visible after it.
	Set(ctx context.Context, t LocalityType, key string, generation int64, names []string, ttl time.Duration) error
	// Invalidate drops every cached result for t.
	Invalidate(ctx context.Context, t LocalityType) error
}

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisCache stores suggestion lists as JSON. Entries are namespaced by a
// per-type generation counter, so Invalidate is a single INCR and stale
// entries age out through their TTL.
type RedisCache struct {
	client RedisClient
	prefix string
}

func NewRedisCache(client RedisClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "locality:suggest"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (c *RedisCache) genKey(t LocalityType) string {
	return c.prefix + ":gen:" + string(t)
}

func (c *RedisCache) generation(ctx context.Context, t LocalityType) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(t)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) entryKey(t LocalityType, gen int64, key string) string {
	return fmt.Sprintf("%s:%s:%d:%s", c.prefix, t, gen, key)
}

func (c *RedisCache) Get(ctx context.Context, t LocalityType, key string) (CacheLookup, error) {
	gen, err := c.generation(ctx, t)
	if err != nil {
		return CacheLookup{}, err
	}
	miss := CacheLookup{Generation: gen}

	raw, err := c.client.Get(ctx, c.entryKey(t, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return miss, nil
	}
	if err != nil {
		return miss, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return miss, fmt.Errorf("decode cached suggestions: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return CacheLookup{Names: names, Hit: true, Generation: gen}, nil
}

func (c *RedisCache) Set(ctx context.Context, t LocalityType, key string, generation int64, names []string, ttl time.Duration) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.entryKey(t, generation, key), raw, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, t LocalityType) error {
	return c.client.Incr(ctx, c.genKey(t)).Err()
}

// OpenSuggestionCache connects the Redis suggestion cache when addr is set.
// It returns a nil cache and a no-op close when addr is empty.
func OpenSuggestionCache(addr, password string, db int) (*RedisCache, func() error) {
	rdb := OpenRedis(addr, password, db)
	if rdb == nil {
		return nil, func() error { return nil }
	}
	return NewRedisCache(rdb, ""), rdb.Close
}
