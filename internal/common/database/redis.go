// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/config"
)

const serviceRedis = "redis"

// RedisClient holds the connection used for per-profile merge locks. Lock traffic is tiny, so
// the pool stays small and timeouts short: a slow Redis should surface as PROFILE_LOCKED quickly.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.DB,
		ClientName:      "swipestats-workers",
		DialTimeout:     3 * time.Second,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		PoolSize:        8,
		MinIdleConns:    1,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping fails with STORAGE_UNAVAILABLE.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return apperrors.NewStorageUnavailableError(serviceRedis, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
