package factory

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openvcon/vconstore/internal/cache"
	"github.com/openvcon/vconstore/internal/config"
	"github.com/openvcon/vconstore/internal/searchindex"
)

func TestNewStoreSqlite(t *testing.T) {
	cfg := config.NewForTesting()
	st, err := NewStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NoError(t, st.HealthPing(context.Background()))
}

func TestNewStoreUnknownDriver(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DBDriver = "oracle"
	_, err := NewStore(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewCacheDisabled(t *testing.T) {
	cfg := config.NewForTesting()
	c, err := NewCache(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, cache.Noop{}, c)
}

func TestNewSearchIndexDisabled(t *testing.T) {
	cfg := config.NewForTesting()
	idx, err := NewSearchIndex(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, searchindex.Noop{}, idx)
}

func TestNewEmbedder(t *testing.T) {
	cfg := config.NewForTesting()
	emb, err := NewEmbedder(cfg)
	require.NoError(t, err)
	require.NotNil(t, emb)

	cfg.EmbedProvider = ""
	emb, err = NewEmbedder(cfg)
	require.NoError(t, err)
	require.Nil(t, emb)

	cfg.EmbedProvider = "openai"
	_, err = NewEmbedder(cfg)
	require.Error(t, err)
}
