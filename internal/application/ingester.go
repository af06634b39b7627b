package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
	"github.com/ericfisherdev/killsync/internal/killhash"
	"github.com/ericfisherdev/killsync/internal/metrics"
)

// KillmailIngester stores kills idempotently by kill id.
type KillmailIngester struct {
	store driven.KillmailStore
	hash  func(model.Kill) (string, error)
}

// NewKillmailIngester creates a KillmailIngester over the given store.
func NewKillmailIngester(store driven.KillmailStore) *KillmailIngester {
	return &KillmailIngester{store: store, hash: killhash.Sum}
}

// Ingest stores every kill not already present and returns how many rows
// were newly inserted. A kill that fails to store does not stop the rest;
// the failures are returned joined.
func (i *KillmailIngester) Ingest(ctx context.Context, source string, kills []model.Kill) (int, error) {
	var count int
	var errs []error

	for _, kill := range kills {
		inserted, err := i.ingestOne(ctx, source, kill)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if inserted {
			count++
		}
	}

	metrics.KillmailsIngested.Add(float64(count))
	return count, errors.Join(errs...)
}

func (i *KillmailIngester) ingestOne(ctx context.Context, source string, kill model.Kill) (bool, error) {
	exists, err := i.store.Exists(ctx, kill.KillID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := i.hash(kill)
	if err != nil {
		return false, fmt.Errorf("hash kill %d: %w", kill.KillID, err)
	}

	payload, err := json.Marshal(kill)
	if err != nil {
		return false, fmt.Errorf("encode kill %d: %w", kill.KillID, err)
	}

	return i.store.InsertIgnore(ctx, model.Killmail{
		KillID:  kill.KillID,
		Hash:    hash,
		Source:  source,
		Payload: payload,
	})
}

// KeySource is the killmail source label for kills read through keyID.
func KeySource(keyID int64) string {
	return fmt.Sprintf("keyID:%d", keyID)
}
