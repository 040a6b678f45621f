// Package config loads the vecboard CLI configuration.
//
// Values are layered with increasing priority: built-in defaults, an optional
// YAML file, then VECBOARD_* environment variables. VECBOARD_STORE_BACKEND
// maps to store.backend, VECBOARD_STORE_REDIS_URL to store.redis_url.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/distance"
	"github.com/hupe1980/vecboard/projection"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VECBOARD_"

// ConfigPathEnvVar names a config file when no path is passed to Load.
const ConfigPathEnvVar = "VECBOARD_CONFIG"

// Backends accepted in store.backend.
var Backends = []string{"memory", "local", "minio", "s3", "badger", "bolt", "dynamo", "redis"}

// Config is the complete CLI configuration.
type Config struct {
	Store       StoreConfig       `koanf:"store"`
	Projection  ProjectionConfig  `koanf:"projection"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Resilience  ResilienceConfig  `koanf:"resilience"`
	Logging     LoggingConfig     `koanf:"logging"`
	Embed       EmbedConfig       `koanf:"embed"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Backend     string `koanf:"backend"`
	Path        string `koanf:"path"`
	Codec       string `koanf:"codec"`
	Compression string `koanf:"compression"`
	CacheBytes  int64  `koanf:"cache_bytes"`

	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Secure    bool   `koanf:"secure"`
	Region    string `koanf:"region"`

	Table string `koanf:"table"`

	RedisURL    string `koanf:"redis_url"`
	RedisPrefix string `koanf:"redis_prefix"`
}

// ProjectionConfig tunes the projector.
type ProjectionConfig struct {
	Neighbors int     `koanf:"neighbors"`
	MinDist   float64 `koanf:"min_dist"`
	Metric    string  `koanf:"metric"`
	Epochs    int     `koanf:"epochs"`
	Seed      uint64  `koanf:"seed"`
	Workers   int     `koanf:"workers"`
}

// CoordinatorConfig tunes the coordinator.
type CoordinatorConfig struct {
	ScopedLocking   bool    `koanf:"scoped_locking"`
	RewriteOnInsert bool    `koanf:"rewrite_on_insert"`
	RecomputeRate   float64 `koanf:"recompute_rate"`
	RecomputeBurst  int     `koanf:"recompute_burst"`
}

// ResilienceConfig configures retries and the circuit breaker.
type ResilienceConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRetries       uint64        `koanf:"max_retries"`
	BaseDelay        time.Duration `koanf:"base_delay"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EmbedConfig configures the local text embedder.
type EmbedConfig struct {
	Dimension int `koanf:"dimension"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     "bolt",
			Path:        "vecboard.db",
			Codec:       "go-json",
			Compression: "none",
			CacheBytes:  64 << 20,
			Region:      "us-east-1",
			Table:       "vecboard",
			RedisURL:    "redis://localhost:6379/0",
			RedisPrefix: "vecboard:",
		},
		Projection: ProjectionConfig{
			Neighbors: projection.DefaultNeighbors,
			MinDist:   projection.DefaultMinDist,
			Metric:    "cosine",
			Epochs:    projection.DefaultEpochs,
			Seed:      projection.DefaultSeed,
		},
		Coordinator: CoordinatorConfig{
			RecomputeBurst: 1,
		},
		Resilience: ResilienceConfig{
			Enabled:          true,
			MaxRetries:       3,
			BaseDelay:        50 * time.Millisecond,
			FailureThreshold: 5,
			OpenTimeout:      10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
		Embed: EmbedConfig{
			Dimension: 256,
		},
	}
}

// Load reads the configuration. path may be empty, in which case
// VECBOARD_CONFIG is consulted and a missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps VECBOARD_SECTION_SOME_KEY to section.some_key. Variables
// without a section are skipped.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	return section + "." + rest
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case "memory", "redis":
	case "local", "badger", "bolt":
		if c.Store.Path == "" && c.Store.Backend != "badger" {
			errs = append(errs, fmt.Errorf("store.path is required for backend %s", c.Store.Backend))
		}
	case "minio":
		if c.Store.Endpoint == "" {
			errs = append(errs, errors.New("store.endpoint is required for backend minio"))
		}
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("store.bucket is required for backend minio"))
		}
	case "s3":
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("store.bucket is required for backend s3"))
		}
	case "dynamo":
		if c.Store.Table == "" {
			errs = append(errs, errors.New("store.table is required for backend dynamo"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of %s", c.Store.Backend, strings.Join(Backends, ", ")))
	}

	if _, ok := codec.ByName(c.Store.Codec); !ok {
		errs = append(errs, fmt.Errorf("store.codec %q is unknown", c.Store.Codec))
	}
	if _, err := codec.ParseCompression(c.Store.Compression); err != nil {
		errs = append(errs, fmt.Errorf("store.compression: %w", err))
	}
	if _, err := distance.ParseMetric(c.Projection.Metric); err != nil {
		errs = append(errs, fmt.Errorf("projection.metric: %w", err))
	}
	if c.Projection.Neighbors < 2 {
		errs = append(errs, fmt.Errorf("projection.neighbors must be at least 2, got %d", c.Projection.Neighbors))
	}
	if c.Projection.Epochs < 1 {
		errs = append(errs, fmt.Errorf("projection.epochs must be positive, got %d", c.Projection.Epochs))
	}
	if c.Coordinator.RecomputeRate < 0 {
		errs = append(errs, errors.New("coordinator.recompute_rate must not be negative"))
	}
	if c.Embed.Dimension < 1 {
		errs = append(errs, errors.New("embed.dimension must be positive"))
	}
	switch c.Logging.Format {
	case "pretty", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of pretty, text, json", c.Logging.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Options returns the projector options described by p.
func (p ProjectionConfig) Options() ([]projection.Option, error) {
	metric, err := distance.ParseMetric(p.Metric)
	if err != nil {
		return nil, err
	}
	opts := []projection.Option{
		projection.WithNeighbors(p.Neighbors),
		projection.WithMinDist(p.MinDist),
		projection.WithMetric(metric),
		projection.WithEpochs(p.Epochs),
		projection.WithSeed(p.Seed),
	}
	if p.Workers > 0 {
		opts = append(opts, projection.WithWorkers(p.Workers))
	}
	return opts, nil
}

// Limit returns the recompute rate limit, or 0 when throttling is off.
func (c CoordinatorConfig) Limit() rate.Limit {
	return rate.Limit(c.RecomputeRate)
}
