package driven

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// EveAPI defines the driven port for the remote, credential-scoped kill data
// API. Remote faults are returned as *RemoteError.
type EveAPI interface {
	FetchAccountInfo(ctx context.Context, keyID int64, vCode string) (*model.AccountInfo, error)
	FetchKillLog(ctx context.Context, keyID int64, vCode string, characterID int64, scope model.KillLogScope) (*model.KillLog, error)
}

// RemoteError is a fault reported by the remote API. CachedUntil carries the
// remote retry hint when one was supplied.
type RemoteError struct {
	Code        int
	Message     string
	CachedUntil time.Time
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}
