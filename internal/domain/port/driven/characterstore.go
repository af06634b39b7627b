package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// CharacterStore defines the driven port for the characters granted by API
// keys, including their shard assignment and backoff state. Every write
// touches a single row or a single key's rows and is idempotent.
type CharacterStore interface {
	// Upsert records that keyID grants access to characterID. An existing row
	// keeps its row id, shard assignment and backoff.
	Upsert(ctx context.Context, keyID, characterID int64, director model.DirectorFlag) error
	// Get returns the (keyID, characterID) row, or nil, nil.
	Get(ctx context.Context, keyID, characterID int64) (*model.Character, error)
	ListByKey(ctx context.Context, keyID int64) ([]model.Character, error)

	// DeleteUnsetDirector purges rows whose director flag was never resolved.
	DeleteUnsetDirector(ctx context.Context) (int64, error)
	// MaxModulus returns the highest assigned shard, or ok=false when no row
	// has an assignment.
	MaxModulus(ctx context.Context) (maxModulus int, ok bool, err error)
	// ResetModulus invalidates every shard assignment.
	ResetModulus(ctx context.Context) error
	// AssignModulus sets modulus = apiRowID mod shardCount on every row
	// without an assignment and returns the number of rows assigned.
	AssignModulus(ctx context.Context, shardCount int) (int64, error)
	// ListDue returns the characters of one shard whose backoff has expired.
	ListDue(ctx context.Context, shard int, now time.Time) ([]model.Character, error)

	Demote(ctx context.Context, characterID int64) error
	Delete(ctx context.Context, keyID, characterID int64) error
	DeleteByKey(ctx context.Context, keyID int64) error
	SetCachedUntil(ctx context.Context, characterID int64, until time.Time) error
	SetErrorCode(ctx context.Context, keyID, characterID int64, code int) error
}
