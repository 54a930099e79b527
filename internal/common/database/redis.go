// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"facecast/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a client for the credential backend. Zero PoolSize or
// Timeout fall back to go-redis defaults; dialing gets the I/O timeout plus
// two seconds.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.Timeout > 0 {
		timeout := config.GetDuration(cfg.Timeout)
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
		opts.DialTimeout = timeout + 2*time.Second
	}
	rdb := redis.NewClient(opts)

	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
