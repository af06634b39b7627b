package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

func TestSettings_ShardCount(t *testing.T) {
	store := newFakeSettingStore()
	s := NewSettings(store)
	ctx := context.Background()

	n, err := s.ShardCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultFetchesPerSecond, n)

	require.NoError(t, s.SetShardCount(ctx, 7))
	n, err = s.ShardCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, bad := range []string{"zero", "0", "-3", ""} {
		store.values[model.SettingFetchesPerSecond] = bad
		n, err = s.ShardCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, DefaultFetchesPerSecond, n, "value %q", bad)
	}

	assert.Error(t, s.SetShardCount(ctx, 0))
}

func TestSettings_APIStop(t *testing.T) {
	store := newFakeSettingStore()
	s := NewSettings(store)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	stopped, _, err := s.Stopped(ctx, now)
	require.NoError(t, err)
	assert.False(t, stopped)

	require.NoError(t, s.SetAPIStop(ctx, now.Add(5*time.Minute)))
	stopped, until, err := s.Stopped(ctx, now)
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.True(t, now.Add(5*time.Minute).Equal(until))

	stopped, _, err = s.Stopped(ctx, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.False(t, stopped, "marker in the past is inert")

	store.values[model.SettingAPIStop] = "garbage"
	stopped, _, err = s.Stopped(ctx, now)
	require.NoError(t, err)
	assert.False(t, stopped)
}
