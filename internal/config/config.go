package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"peerlink/internal/model"
	"peerlink/internal/util"
)

// Config is the application's configuration model.
// It captures scoring, persistence backends, logging and batch refresh settings.
type Config struct {
	Recommend RecommendConfig `yaml:"recommend"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Graph     GraphConfig     `yaml:"graph"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

type RecommendConfig struct {
	Weights model.Weights `yaml:"weights"`
	Caps    model.Caps    `yaml:"caps"`
	// Defaults applied when the caller does not supply a limit or threshold
	DefaultLimit    int     `yaml:"defaultLimit"`
	DefaultMinScore float64 `yaml:"defaultMinScore"`
	// Number of candidates persisted per user on recompute
	CacheDepth int `yaml:"cacheDepth"`
	// Cached sets older than this are stale
	StaleAfter time.Duration `yaml:"staleAfter"`
	// Concurrent candidate scorers
	Workers   int      `yaml:"workers"`
	StopWords []string `yaml:"stopWords"`
}

// Scorer returns the score composer described by this config.
func (r RecommendConfig) Scorer() model.Scorer {
	return model.Scorer{Weights: r.Weights, Caps: r.Caps}
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DBPath string `yaml:"dbPath"`
}

type CacheConfig struct {
	Backend   string `yaml:"backend"` // "sqlite", "redis" or "memory"
	RedisAddr string `yaml:"redisAddr"`
	RedisDB   int    `yaml:"redisDB"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// GraphConfig points follow-edge lookups at Neo4j. Empty URI keeps them in storage.
type GraphConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxConnections int    `yaml:"maxConnections"`
}

type LoggingConfig struct {
	Mode  string `yaml:"mode"` // development|production
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type RefreshConfig struct {
	Interval  time.Duration `yaml:"interval"`
	PerSecond float64       `yaml:"perSecond"`
	Burst     int           `yaml:"burst"`

	// UTC hours during which scheduled refreshes are skipped.
	QuietHours []int `yaml:"quietHours"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Recommend: RecommendConfig{
			Weights:         model.DefaultWeights,
			Caps:            model.DefaultCaps,
			DefaultLimit:    10,
			DefaultMinScore: 0.1,
			CacheDepth:      50,
			StaleAfter:      7 * 24 * time.Hour,
			Workers:         8,
			StopWords:       append([]string(nil), util.DefaultStopWords...),
		},
		Storage: StorageConfig{Driver: "sqlite", DBPath: "./peerlink.db"},
		Cache:   CacheConfig{Backend: "sqlite", KeyPrefix: "peerlink:recs:"},
		Graph:   GraphConfig{MaxConnections: 10},
		Logging: LoggingConfig{Mode: "development", Level: "info"},
		Refresh: RefreshConfig{Interval: time.Hour, PerSecond: 5, Burst: 1},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("PEERLINK_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = os.Getenv("PEERLINK_REDIS_ADDR")
	}
	if c.Graph.URI == "" {
		c.Graph.URI = os.Getenv("NEO4J_URI")
	}
	if c.Graph.Username == "" {
		c.Graph.Username = os.Getenv("NEO4J_USERNAME")
	}
	if c.Graph.Password == "" {
		c.Graph.Password = os.Getenv("NEO4J_PASSWORD")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects malformed settings. Nothing is clamped.
func (c Config) Validate() error {
	r := c.Recommend
	if err := r.Scorer().Validate(); err != nil {
		return err
	}
	switch {
	case r.DefaultLimit < 0:
		return cfgErr("recommend.defaultLimit", "must be non-negative, got %d", r.DefaultLimit)
	case r.DefaultMinScore < 0 || r.DefaultMinScore > 1:
		return cfgErr("recommend.defaultMinScore", "must be in [0, 1], got %v", r.DefaultMinScore)
	case r.CacheDepth < 1:
		return cfgErr("recommend.cacheDepth", "must be positive, got %d", r.CacheDepth)
	case r.StaleAfter <= 0:
		return cfgErr("recommend.staleAfter", "must be positive, got %v", r.StaleAfter)
	case r.Workers < 1:
		return cfgErr("recommend.workers", "must be positive, got %d", r.Workers)
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return cfgErr("storage.dbPath", "required for sqlite driver")
		}
	case "memory":
	default:
		return cfgErr("storage.driver", "unknown driver %q", c.Storage.Driver)
	}
	switch c.Cache.Backend {
	case "sqlite":
		if c.Storage.Driver != "sqlite" {
			return cfgErr("cache.backend", "sqlite cache requires the sqlite storage driver")
		}
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return cfgErr("cache.redisAddr", "required for redis backend")
		}
	default:
		return cfgErr("cache.backend", "unknown backend %q", c.Cache.Backend)
	}
	if c.Refresh.Interval <= 0 {
		return cfgErr("refresh.interval", "must be positive, got %v", c.Refresh.Interval)
	}
	if c.Refresh.PerSecond <= 0 {
		return cfgErr("refresh.perSecond", "must be positive, got %v", c.Refresh.PerSecond)
	}
	if c.Refresh.Burst < 1 {
		return cfgErr("refresh.burst", "must be positive, got %d", c.Refresh.Burst)
	}
	for _, h := range c.Refresh.QuietHours {
		if h < 0 || h > 23 {
			return cfgErr("refresh.quietHours", "hour out of range: %d", h)
		}
	}
	if c.Graph.URI != "" && !strings.Contains(c.Graph.URI, "://") {
		return cfgErr("graph.uri", "expected scheme://host, got %q", c.Graph.URI)
	}
	return nil
}

func cfgErr(field, format string, args ...any) error {
	return &model.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Load reads YAML config from path on top of Default and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
