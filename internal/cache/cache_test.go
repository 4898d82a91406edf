package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvcon/vconstore/internal/logger"
)

func TestNoop_SafeEverywhere(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}

	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Delete(ctx, "k")
}

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// returned slice is a copy
	got[0] = 'x'
	got2, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got2)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry must expire after TTL")

	// non-positive TTL stores nothing
	c.Set(ctx, "z", []byte("v"), 0)
	_, ok = c.Get(ctx, "z")
	assert.False(t, ok)
}

func TestRedis_DegradesToMissWhenUnreachable(t *testing.T) {
	// nothing listens on this port; every call must absorb the failure
	log := logger.New("cache-test", "error")
	c, err := NewRedis("redis://127.0.0.1:1/0", log)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Delete(ctx, "k")
}

func TestRedis_RejectsMalformedURL(t *testing.T) {
	log := logger.New("cache-test", "error")
	_, err := NewRedis("not-a-url", log)
	assert.Error(t, err)
}
