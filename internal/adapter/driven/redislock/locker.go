// Package redislock implements the ShardLocker port with Redis so that fetch
// workers on different hosts share one lock per shard.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ShardLocker = (*Locker)(nil)

// DefaultTTL bounds how long a crashed worker can keep its shard locked.
const DefaultTTL = 10 * time.Minute

const pollInterval = 250 * time.Millisecond

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis-backed ShardLocker.
type Locker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to the Redis server at url and verifies the connection.
func New(ctx context.Context, url string, ttl time.Duration) (*Locker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{rdb: rdb, prefix: "killsync:shard:", ttl: ttl}, nil
}

// Close closes the Redis connection.
func (l *Locker) Close() error {
	return l.rdb.Close()
}

func (l *Locker) key(shard int) string {
	return fmt.Sprintf("%s%d", l.prefix, shard)
}

// Acquire polls for the shard's lock until wait elapses.
func (l *Locker) Acquire(ctx context.Context, shard int, wait time.Duration) (func(), bool, error) {
	key := l.key(shard)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return l.unlocker(key, token), true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, nil
		}

		timer := time.NewTimer(min(pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(key, token) }) }
}

// release runs on a fresh context so it succeeds after the worker's context
// was canceled.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		slog.Error("release shard lock failed", "key", key, "error", err)
	}
}
