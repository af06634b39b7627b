package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
	"github.com/ericfisherdev/killsync/internal/metrics"
)

// DefaultLockWait bounds how long a shard launch waits for the previous
// worker of that shard to finish before the launch is abandoned.
const DefaultLockWait = 60 * time.Second

// ShardRunner runs one pass over a shard. *FetchWorker satisfies it.
type ShardRunner interface {
	Run(ctx context.Context, shard, shardCount int) (WorkerReport, error)
}

// CycleResult summarizes the launches of one scheduling cycle.
type CycleResult struct {
	ShardCount int
	Stopped    bool
	Launched   int
	Skipped    int
}

// Cycle is a scheduling cycle whose shard workers run detached. Wait blocks
// until every worker launched by the cycle has finished.
type Cycle struct {
	shardCount int
	stopped    bool
	wg         sync.WaitGroup
	launched   atomic.Int64
	skipped    atomic.Int64
}

// Wait blocks until the cycle's workers finish and returns its result.
func (c *Cycle) Wait() CycleResult {
	c.wg.Wait()
	return CycleResult{
		ShardCount: c.shardCount,
		Stopped:    c.stopped,
		Launched:   int(c.launched.Load()),
		Skipped:    int(c.skipped.Load()),
	}
}

// FetchScheduler partitions characters into shards and launches at most one
// worker per shard. The shard count doubles as the cap on concurrent workers.
type FetchScheduler struct {
	chars    driven.CharacterStore
	settings *Settings
	locker   driven.ShardLocker
	runner   ShardRunner
	lockWait time.Duration
	now      func() time.Time

	// inflight counts shard launches of every cycle still running.
	inflight sync.WaitGroup
}

// NewFetchScheduler creates a FetchScheduler with all required dependencies.
func NewFetchScheduler(
	chars driven.CharacterStore,
	settings *Settings,
	locker driven.ShardLocker,
	runner ShardRunner,
	lockWait time.Duration,
) *FetchScheduler {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &FetchScheduler{
		chars:    chars,
		settings: settings,
		locker:   locker,
		runner:   runner,
		lockWait: lockWait,
		now:      time.Now,
	}
}

// Start runs a cycle immediately and then on every interval tick until ctx
// is canceled. Cycles overlap; the shard locks keep them from doubling up.
func (s *FetchScheduler) Start(ctx context.Context, interval time.Duration) {
	s.startCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("fetch scheduler stopped")
			return
		case <-ticker.C:
			s.startCycle(ctx)
		}
	}
}

func (s *FetchScheduler) startCycle(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scheduling cycle failed", "error", err)
	}
}

// Drain waits for the shard workers of every cycle to finish, or for ctx to
// end. Call it after Start has returned.
func (s *FetchScheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunCycle prepares shard assignments and launches the shard workers in the
// background. It does not wait for them.
func (s *FetchScheduler) RunCycle(ctx context.Context) (*Cycle, error) {
	if n, err := s.chars.DeleteUnsetDirector(ctx); err != nil {
		return nil, err
	} else if n > 0 {
		slog.Debug("purged incomplete character rows", "rows", n)
	}

	shardCount, err := s.settings.ShardCount(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.rebalance(ctx, shardCount); err != nil {
		return nil, err
	}

	cycle := &Cycle{shardCount: shardCount}

	stopped, until, err := s.settings.Stopped(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if stopped {
		metrics.APIStopActive.Set(1)
		slog.Debug("api stop active, no shards launched", "until", until)
		cycle.stopped = true
		return cycle, nil
	}
	metrics.APIStopActive.Set(0)

	for shard := 0; shard < shardCount; shard++ {
		cycle.wg.Add(1)
		s.inflight.Add(1)
		go s.launch(ctx, cycle, shard, shardCount)
	}

	return cycle, nil
}

// rebalance invalidates every assignment when the shard count changed and
// assigns any unassigned rows.
func (s *FetchScheduler) rebalance(ctx context.Context, shardCount int) error {
	maxModulus, assigned, err := s.chars.MaxModulus(ctx)
	if err != nil {
		return err
	}

	if assigned && maxModulus+1 != shardCount {
		slog.Info("shard count changed, redistributing characters",
			"previous_max_modulus", maxModulus, "shards", shardCount)
		if err := s.chars.ResetModulus(ctx); err != nil {
			return err
		}
	}

	n, err := s.chars.AssignModulus(ctx, shardCount)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("assigned shards", "rows", n, "shards", shardCount)
	}
	return nil
}

func (s *FetchScheduler) launch(ctx context.Context, cycle *Cycle, shard, shardCount int) {
	defer s.inflight.Done()
	defer cycle.wg.Done()

	unlock, ok, err := s.locker.Acquire(ctx, shard, s.lockWait)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("acquire shard lock failed", "shard", shard, "error", err)
		}
		return
	}
	if !ok {
		cycle.skipped.Add(1)
		metrics.ShardsSkipped.Inc()
		slog.Debug("shard busy, launch skipped", "shard", shard)
		return
	}
	defer unlock()

	cycle.launched.Add(1)
	metrics.WorkersLaunched.Inc()

	if _, err := s.runner.Run(ctx, shard, shardCount); err != nil && ctx.Err() == nil {
		slog.Error("shard worker failed", "shard", shard, "error", err)
	}
}
