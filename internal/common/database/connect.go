// internal/common/database/connect.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swipestats-workers/internal/common/config"
)

// RetryPolicy bounds the startup connection attempts for one backend.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 15, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

// Connections are the backends the ingest pipeline runs against. Elasticsearch is nil when stats
// indexing is disabled.
type Connections struct {
	Postgres      *PostgresClient
	Redis         *RedisClient
	Elasticsearch *ElasticsearchClient
}

// Connect opens and pings every configured backend, retrying each with exponential backoff.
// Whatever was opened is closed again when a later backend fails.
func Connect(ctx context.Context, cfg *config.Config, policy RetryPolicy, log *zap.Logger) (*Connections, error) {
	conns := &Connections{}

	err := WithRetry(ctx, policy, log, "PostgreSQL connection", func() error {
		pg, err := NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		conns.Postgres = pg
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully")

	err = WithRetry(ctx, policy, log, "Redis connection", func() error {
		rdb, err := NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			return err
		}
		conns.Redis = rdb
		return nil
	})
	if err != nil {
		conns.Close()
		return nil, err
	}
	log.Info("Redis connected successfully")

	if !cfg.Pipeline.StatsIndexing {
		log.Info("Stats indexing disabled, skipping Elasticsearch")
		return conns, nil
	}

	err = WithRetry(ctx, policy, log, "Elasticsearch connection", func() error {
		es, err := NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return err
		}
		conns.Elasticsearch = es
		return nil
	})
	if err != nil {
		conns.Close()
		return nil, err
	}
	log.Info("Elasticsearch connected successfully")

	return conns, nil
}

// Ready pings the backends an upload cannot proceed without. Elasticsearch is best-effort and is
// not checked.
func (c *Connections) Ready(ctx context.Context) error {
	if err := c.Postgres.Ping(ctx); err != nil {
		return err
	}
	return c.Redis.Ping(ctx)
}

func (c *Connections) Close() {
	if c == nil {
		return
	}
	c.Postgres.Close()
	c.Redis.Close()
}

// WithRetry runs op until it succeeds, the attempts run out or ctx ends.
func WithRetry(ctx context.Context, policy RetryPolicy, log *zap.Logger, name string, op func() error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	delay := policy.InitialDelay

	var err error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == policy.Attempts {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying...", name),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", policy.Attempts),
			zap.Duration("nextRetryIn", delay),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, policy.Attempts, err)
}
