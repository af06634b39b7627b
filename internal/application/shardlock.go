package application

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ShardLocker = (*LocalShardLocker)(nil)

// LocalShardLocker is an in-process ShardLocker with one single-slot
// semaphore per shard. It only excludes workers within this process.
type LocalShardLocker struct {
	mu     sync.Mutex
	shards map[int]*semaphore.Weighted
}

// NewLocalShardLocker creates an empty LocalShardLocker.
func NewLocalShardLocker() *LocalShardLocker {
	return &LocalShardLocker{shards: make(map[int]*semaphore.Weighted)}
}

// Acquire waits up to wait for the shard's semaphore.
func (l *LocalShardLocker) Acquire(ctx context.Context, shard int, wait time.Duration) (func(), bool, error) {
	sem := l.semaphore(shard)

	if sem.TryAcquire(1) {
		return l.releaser(sem), true, nil
	}
	if wait <= 0 {
		return nil, false, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, nil
	}
	return l.releaser(sem), true, nil
}

func (l *LocalShardLocker) semaphore(shard int) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.shards[shard]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.shards[shard] = sem
	}
	return sem
}

func (l *LocalShardLocker) releaser(sem *semaphore.Weighted) func() {
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }
}
