package driven

import (
	"context"
	"time"
)

// ShardLocker provides the per-shard exclusive lock that keeps at most one
// fetch worker running per shard.
type ShardLocker interface {
	// Acquire waits up to wait for the shard's lock. ok is false when the lock
	// is still held by another worker after wait has elapsed. The returned
	// unlock func must be called exactly once when ok is true.
	Acquire(ctx context.Context, shard int, wait time.Duration) (unlock func(), ok bool, err error)
}
