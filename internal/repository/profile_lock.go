package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"swipestats-workers/internal/ingest/pipeline"
)

// ErrLockHeld is returned when the lock could not be taken within the wait budget.
var ErrLockHeld = pipeline.ErrLockHeld

const lockKeyPrefix = "swipestats:profile-lock:"

// Deletes the key only while it still carries the caller's token, so an expired lock that was
// re-acquired by another upload is never released by the first holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisProfileLocker serializes read-modify-write cycles on one profile across workers.
type RedisProfileLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	wait     time.Duration
	retry    time.Duration
	newToken func() string
}

func NewRedisProfileLocker(client redis.Cmdable, ttl, wait, retry time.Duration) *RedisProfileLocker {
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &RedisProfileLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		retry:    retry,
		newToken: func() string { return uuid.NewString() },
	}
}

// Acquire takes the lock for key, polling until the wait budget or ctx runs out. The returned
// release func is safe to call after the TTL has expired.
func (l *RedisProfileLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lockKey := lockKeyPrefix + key
	token := l.newToken()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.release(ctx, lockKey, token)
			}, nil
		}

		if !time.Now().Add(l.retry).Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisProfileLocker) release(ctx context.Context, lockKey, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", lockKey, err)
	}
	return nil
}
