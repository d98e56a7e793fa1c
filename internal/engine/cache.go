package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache caches query answers keyed by mode and query text.
type QueryCache interface {
	Get(ctx context.Context, mode Mode, query string) (string, bool)
	Set(ctx context.Context, mode Mode, query, answer string)
	Close() error
}

// RedisCacheOptions configures the Redis-backed query cache.
type RedisCacheOptions struct {
	URL    string
	Prefix string
	TTL    time.Duration
}

// RedisCache caches query answers in Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis using a redis:// URL.
func NewRedisCache(opts RedisCacheOptions) (*RedisCache, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "knograph:query:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		client: redis.NewClient(redisOpts),
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *RedisCache) key(mode Mode, query string) string {
	sum := sha256.Sum256([]byte(string(mode) + "\n" + query))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get returns a cached answer if present. Cache errors are treated as
// misses.
func (c *RedisCache) Get(ctx context.Context, mode Mode, query string) (string, bool) {
	answer, err := c.client.Get(ctx, c.key(mode, query)).Result()
	if err != nil {
		return "", false
	}
	return answer, true
}

// Set stores an answer with the configured TTL. Errors are ignored, a
// failed write only costs a future cache miss.
func (c *RedisCache) Set(ctx context.Context, mode Mode, query, answer string) {
	c.client.Set(ctx, c.key(mode, query), answer, c.ttl)
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopCache disables query caching.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, mode Mode, query string) (string, bool) { return "", false }
func (NoopCache) Set(ctx context.Context, mode Mode, query, answer string)        {}
func (NoopCache) Close() error                                                    { return nil }
