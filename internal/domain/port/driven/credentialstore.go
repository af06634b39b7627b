package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrCredentialNotFound indicates no credential matches the request.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists indicates the (keyID, vCode) pair is already stored.
	ErrCredentialExists = errors.New("credential already exists")
)

// CredentialStore defines the driven port for API key persistence. It carries
// no policy; callers decide when keys are claimed or invalidated.
type CredentialStore interface {
	// Get returns the credential for keyID, or nil, nil if none exists.
	Get(ctx context.Context, keyID int64) (*model.Credential, error)
	// Find returns the credential for the exact (keyID, vCode) pair, or nil, nil.
	Find(ctx context.Context, keyID int64, vCode string) (*model.Credential, error)
	// Insert stores a new credential. Returns ErrCredentialExists on a duplicate pair.
	Insert(ctx context.Context, cred model.Credential) error
	// Claim assigns an anonymously submitted key to userID.
	Claim(ctx context.Context, keyID, userID int64, label string) error
	// MarkErrored records a key-wide remote error code.
	MarkErrored(ctx context.Context, keyID int64, code int) error
	// MarkValidated records a successful validation and clears the error code.
	MarkValidated(ctx context.Context, keyID int64, at time.Time) error
}
