package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalShardLocker_Exclusive(t *testing.T) {
	l := NewLocalShardLocker()
	ctx := context.Background()

	unlock, ok, err := l.Acquire(ctx, 0, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, 0, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "held shard not granted")

	other, ok, err := l.Acquire(ctx, 1, 0)
	require.NoError(t, err)
	assert.True(t, ok, "shards lock independently")
	other()

	unlock()
	unlock() // second release is a no-op

	again, ok, err := l.Acquire(ctx, 0, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func TestLocalShardLocker_WaitsForRelease(t *testing.T) {
	l := NewLocalShardLocker()
	ctx := context.Background()

	unlock, ok, err := l.Acquire(ctx, 3, 0)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()

	next, ok, err := l.Acquire(ctx, 3, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	next()
}

func TestLocalShardLocker_CanceledContext(t *testing.T) {
	l := NewLocalShardLocker()
	unlock, _, _ := l.Acquire(context.Background(), 0, 0)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := l.Acquire(ctx, 0, time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
