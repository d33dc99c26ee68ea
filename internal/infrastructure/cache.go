package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "cpath:"

// Cache stores JSON encoded values in Redis under a shared key prefix
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// ParseRedisURL validates a Redis connection URL
func ParseRedisURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, errors.New("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// NewCache connects to Redis and verifies the connection
func NewCache(ctx context.Context, config *CacheConfig, logger *zap.Logger) (*Cache, error) {
	opts, err := ParseRedisURL(config.RedisURL)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	logger.Info("Cache connection established",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Duration("ttl", config.TTL()),
	)

	return &Cache{client: client, ttl: config.TTL(), logger: logger}, nil
}

// GetJSON decodes the value stored at key into dest, reporting whether it was present
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value at key for the configured TTL
func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes every key under the given prefix
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// HealthCheck verifies the cache connection is alive
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close shuts down the cache client
func (c *Cache) Close() error {
	return c.client.Close()
}
