package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the vCon store service.
// Environment variables are parsed from the VCONSTORE_ prefix,
// e.g. VCONSTORE_HTTP_PORT, VCONSTORE_POSTGRES_DSN.
type Config struct {
	// Build target selects the deployment profile: local or cloud.
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// DBDriver is derived from BuildTarget when set to "auto".
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// LogLevel filters logger output: debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Relational store
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"vconstore.db"`

	// Cache (optional; empty URL disables caching)
	RedisURL        string `envconfig:"REDIS_URL" default:""`
	CacheTTLSeconds int    `envconfig:"CACHE_TTL" default:"3600"`

	// Search index / embeddings
	SearchIndexURL string  `envconfig:"SEARCH_INDEX_URL" default:""`
	EmbedProvider  string  `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel     string  `envconfig:"EMBED_MODEL" default:"mxbai-embed-large"`
	OllamaURL      string  `envconfig:"OLLAMA_URL" default:""`
	SearchAlpha    float32 `envconfig:"SEARCH_ALPHA" default:"0.6"`

	// Response sizing
	DefaultSearchLimit int `envconfig:"DEFAULT_SEARCH_LIMIT" default:"20"`
	MaxSearchLimit     int `envconfig:"MAX_SEARCH_LIMIT" default:"200"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("VCONSTORE_POSTGRES_DSN is required for the postgres driver")
	}
	if c.MaxSearchLimit <= 0 {
		return fmt.Errorf("MAX_SEARCH_LIMIT must be positive")
	}
	if c.DefaultSearchLimit <= 0 || c.DefaultSearchLimit > c.MaxSearchLimit {
		return fmt.Errorf("DEFAULT_SEARCH_LIMIT must be in 1..MAX_SEARCH_LIMIT")
	}
	return nil
}

// New creates a Config by parsing VCONSTORE_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("VCONSTORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("log_level", cfg.LogLevel).
		Bool("cache_enabled", cfg.RedisURL != "").
		Int("cache_ttl", cfg.CacheTTLSeconds).
		Str("search_index_url", cfg.SearchIndexURL).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Float32("search_alpha", cfg.SearchAlpha).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: sqlite in-memory,
// no cache, no search index.
func NewForTesting() *Config {
	return &Config{
		BuildTarget:        "local",
		DBDriver:           "sqlite",
		HTTPPort:           8080,
		LogLevel:           "debug",
		SQLitePath:         ":memory:",
		CacheTTLSeconds:    60,
		EmbedProvider:      "ollama",
		EmbedModel:         "mxbai-embed-large",
		SearchAlpha:        0.6,
		DefaultSearchLimit: 20,
		MaxSearchLimit:     200,
	}
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
