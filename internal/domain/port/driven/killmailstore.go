package driven

import (
	"context"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// KillmailStore defines the driven port for deduplicated killmail persistence.
type KillmailStore interface {
	Exists(ctx context.Context, killID int64) (bool, error)
	// InsertIgnore stores km unless its KillID is already present. It reports
	// whether a row was inserted; a duplicate is not an error.
	InsertIgnore(ctx context.Context, km model.Killmail) (bool, error)
	// Get returns the killmail, or nil, nil.
	Get(ctx context.Context, killID int64) (*model.Killmail, error)
}
