package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis adapts a Redis server to the Cache interface. Connection loss and
// command failures are logged and absorbed: reads become misses, writes
// become no-ops.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedis parses url (redis://...) and returns the adapter. The connection
// is verified with a short ping so misconfiguration surfaces at startup, but
// a failed ping is reported, not fatal: the adapter degrades to miss/no-op.
func NewRedis(url string, log zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("redis unreachable at startup; cache will degrade to miss")
	}
	return &Redis{client: client, log: log}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("key", key).Msg("cache read failed; treating as miss")
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("cache write failed; skipping")
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed; entry will age out via TTL")
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
