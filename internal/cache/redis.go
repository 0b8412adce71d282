package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/warehouse/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Cache keys
const (
	CountsKey        = "warehouse:counts"
	CategoryStockKey = "warehouse:category-stock"
)

var (
	// ErrDisabled is returned by every call on a disabled cache
	ErrDisabled = errors.New("cache is disabled")
	// ErrMiss is returned when a key is absent
	ErrMiss = errors.New("key not found in cache")
)

// RedisCache provides caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, enabled: true, ttl: ttl}
}

// Disabled returns a cache that stores nothing
func Disabled() *RedisCache {
	return &RedisCache{enabled: false}
}

// Enabled reports whether the cache is backed by Redis
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores a value under the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// Delete removes keys from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "failed to delete keys from Redis")
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}
