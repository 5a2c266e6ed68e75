package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Common errors
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	ErrInvalidRateLimit   = errors.New("SEARCH_RATE_LIMIT must be positive")
	ErrNoTargets          = errors.New("normalization requires at least one target table")
	ErrInvalidTarget      = errors.New("normalization target needs table, id_column and column")
)

// DefaultAdvisoryLockKey is the Postgres advisory lock key held while the
// locality normalizer runs.
const DefaultAdvisoryLockKey int64 = 7_301_045

// Config holds process configuration for the API server and the maintenance tools.
type Config struct {
	DatabaseURL string
	Port        string

	// StoreTimeout bounds a single store round-trip made on behalf of a request.
	StoreTimeout time.Duration

	Redis    RedisConfig
	CacheTTL time.Duration

	SearchRateLimit float64
	SearchBurst     int

	// AdminTokenHash is a bcrypt hash of the token accepted by maintenance endpoints.
	// Empty disables those endpoints.
	AdminTokenHash string

	AllowedOrigins []string

	Normalization Normalization
}

// RedisConfig describes the optional autocomplete cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// Normalization configures the locality normalizer. It is read from the YAML file
// named by LOCALITY_CONFIG when present.
type Normalization struct {
	DefaultType     string   `yaml:"default_type"`
	AdvisoryLockKey int64    `yaml:"advisory_lock_key"`
	Targets         []Target `yaml:"targets"`
}

// Target is an owning table whose locality column may hold legacy values.
type Target struct {
	Table    string `yaml:"table"`
	IDColumn string `yaml:"id_column"`
	Column   string `yaml:"column"`
}

// DefaultNormalization lists the owning tables known to embed a locality reference.
func DefaultNormalization() Normalization {
	return Normalization{
		DefaultType:     "arrondissement",
		AdvisoryLockKey: DefaultAdvisoryLockKey,
		Targets: []Target{
			{Table: "titles.land_titles", IDColumn: "id", Column: "locality"},
			{Table: "app_auth.users", IDColumn: "user_id", Column: "locality"},
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - DATABASE_URL: Postgres DSN (required)
//   - PORT: HTTP port (default: 5050)
//   - STORE_TIMEOUT: per-call store timeout, Go duration (default: 5s)
//   - REDIS_HOST, REDIS_PORT, REDIS_PASS, REDIS_DB: autocomplete cache (disabled when REDIS_HOST is empty)
//   - AUTOCOMPLETE_CACHE_TTL: cache entry lifetime (default: 5m)
//   - SEARCH_RATE_LIMIT, SEARCH_BURST: autocomplete requests per second (default: 20, burst 40)
//   - ADMIN_TOKEN_HASH: bcrypt hash guarding /admin routes
//   - CORS_ALLOWED_ORIGINS: comma-separated origins
//   - LOCALITY_CONFIG: optional YAML file overriding normalization settings
func LoadFromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:            envOr("PORT", "5050"),
		StoreTimeout:    durationOr("STORE_TIMEOUT", 5*time.Second),
		CacheTTL:        durationOr("AUTOCOMPLETE_CACHE_TTL", 5*time.Minute),
		SearchRateLimit: floatOr("SEARCH_RATE_LIMIT", 20),
		SearchBurst:     intOr("SEARCH_BURST", 40),
		AdminTokenHash:  strings.TrimSpace(os.Getenv("ADMIN_TOKEN_HASH")),
		AllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Normalization:   DefaultNormalization(),
	}

	if host := strings.TrimSpace(os.Getenv("REDIS_HOST")); host != "" {
		cfg.Redis = RedisConfig{
			Addr:     host + ":" + envOr("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASS"),
			DB:       intOr("REDIS_DB", 0),
		}
	}

	if path := strings.TrimSpace(os.Getenv("LOCALITY_CONFIG")); path != "" {
		n, err := LoadNormalizationFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.Normalization = n
	}

	return cfg, nil
}

// Validate checks the settings every entry point needs.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.SearchRateLimit <= 0 {
		return ErrInvalidRateLimit
	}
	return c.Normalization.Validate()
}

// Validate checks that every target is fully described.
func (n Normalization) Validate() error {
	if len(n.Targets) == 0 {
		return ErrNoTargets
	}
	for i, t := range n.Targets {
		if t.Table == "" || t.IDColumn == "" || t.Column == "" {
			return fmt.Errorf("%w (target %d)", ErrInvalidTarget, i)
		}
	}
	return nil
}

// LoadNormalizationFile reads normalization settings from a YAML file. Missing
// fields fall back to DefaultNormalization.
func LoadNormalizationFile(path string) (Normalization, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Normalization{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseNormalization(raw)
}

// ParseNormalization decodes YAML normalization settings.
func ParseNormalization(raw []byte) (Normalization, error) {
	var file struct {
		Normalization Normalization `yaml:"normalization"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Normalization{}, fmt.Errorf("parse locality config: %w", err)
	}

	def := DefaultNormalization()
	n := file.Normalization
	if n.DefaultType == "" {
		n.DefaultType = def.DefaultType
	}
	if n.AdvisoryLockKey == 0 {
		n.AdvisoryLockKey = def.AdvisoryLockKey
	}
	if len(n.Targets) == 0 {
		n.Targets = def.Targets
	}
	return n, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil && d > 0 {
		return d
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= 0 {
		return n
	}
	return fallback
}

func floatOr(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		return f
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
