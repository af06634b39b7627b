package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// DefaultFetchesPerSecond is the shard count used when none is configured.
const DefaultFetchesPerSecond = 30

// Settings reads and writes the process-wide named values. Nothing is cached;
// every call goes to the store.
type Settings struct {
	store driven.SettingStore
}

// NewSettings creates a Settings over the given store.
func NewSettings(store driven.SettingStore) *Settings {
	return &Settings{store: store}
}

// ShardCount returns the configured fetchesPerSecond, falling back to
// DefaultFetchesPerSecond when unset or not a positive integer.
func (s *Settings) ShardCount(ctx context.Context) (int, error) {
	raw, ok, err := s.store.Get(ctx, model.SettingFetchesPerSecond)
	if err != nil {
		return 0, fmt.Errorf("read shard count: %w", err)
	}
	if !ok {
		return DefaultFetchesPerSecond, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("invalid shard count, using default",
			"setting", model.SettingFetchesPerSecond, "value", raw, "default", DefaultFetchesPerSecond)
		return DefaultFetchesPerSecond, nil
	}
	return n, nil
}

// SetShardCount stores a new fetchesPerSecond value.
func (s *Settings) SetShardCount(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("set shard count: must be positive, got %d", n)
	}
	return s.store.Set(ctx, model.SettingFetchesPerSecond, strconv.Itoa(n))
}

// APIStop returns the time until which all polling is suspended. The zero
// time means no outage has been recorded.
func (s *Settings) APIStop(ctx context.Context) (time.Time, error) {
	raw, ok, err := s.store.Get(ctx, model.SettingAPIStop)
	if err != nil {
		return time.Time{}, fmt.Errorf("read api stop: %w", err)
	}
	if !ok || raw == "" {
		return time.Time{}, nil
	}

	until, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		slog.Warn("ignoring unparseable api stop marker", "value", raw, "error", err)
		return time.Time{}, nil
	}
	return until, nil
}

// SetAPIStop writes or refreshes the outage marker.
func (s *Settings) SetAPIStop(ctx context.Context, until time.Time) error {
	return s.store.Set(ctx, model.SettingAPIStop, until.UTC().Format(time.RFC3339))
}

// Stopped reports whether the outage marker lies after now.
func (s *Settings) Stopped(ctx context.Context, now time.Time) (bool, time.Time, error) {
	until, err := s.APIStop(ctx)
	if err != nil {
		return false, time.Time{}, err
	}
	return until.After(now), until, nil
}
