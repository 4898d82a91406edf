// Package factory assembles concrete drivers from configuration: the
// relational store, the cache, the search index and the embedder.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openvcon/vconstore/internal/cache"
	"github.com/openvcon/vconstore/internal/config"
	"github.com/openvcon/vconstore/internal/embeddings"
	"github.com/openvcon/vconstore/internal/embeddings/ollama"
	"github.com/openvcon/vconstore/internal/searchindex"
	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/store/postgres"
	"github.com/openvcon/vconstore/internal/store/sqlite"
)

// NewStore selects the relational driver from cfg.DBDriver and ensures the
// schema exists.
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		return postgres.New(db)
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		return sqlite.New(db)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

// NewCache returns a Redis adapter when a URL is configured, a no-op
// otherwise. Caching is strictly optional.
func NewCache(cfg *config.Config, log zerolog.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, nil
	}
	return cache.NewRedis(cfg.RedisURL, log)
}

// NewSearchIndex returns a Weaviate-backed index when a URL is configured,
// bootstrapping the class on first use, a no-op otherwise.
func NewSearchIndex(ctx context.Context, cfg *config.Config) (searchindex.Index, error) {
	if cfg.SearchIndexURL == "" {
		return searchindex.Noop{}, nil
	}
	idx, err := searchindex.NewWeaviate(cfg.SearchIndexURL)
	if err != nil {
		return nil, err
	}
	if err := idx.Bootstrap(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// NewEmbedder returns the configured embedding provider, or nil when
// embeddings are disabled. A nil provider downgrades semantic search to
// caller-supplied vectors only.
func NewEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	switch cfg.EmbedProvider {
	case "":
		return nil, nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.EmbedModel), nil
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER: %s", cfg.EmbedProvider)
	}
}
