package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// KillLogAccessBit is the access mask bit that grants kill log reads.
const KillLogAccessBit = 256

// GateReason classifies why AccessGate rejected a key.
type GateReason int

const (
	GateMalformed GateReason = iota + 1
	GateLikelySwapped
	GateRemote
	GateInsufficientScope
)

func (r GateReason) String() string {
	switch r {
	case GateMalformed:
		return "malformed"
	case GateLikelySwapped:
		return "likely_swapped"
	case GateRemote:
		return "remote"
	case GateInsufficientScope:
		return "insufficient_scope"
	default:
		return "unknown"
	}
}

// GateError is returned when a key fails admission. Error() is suitable for
// showing to the key's owner.
type GateError struct {
	Reason GateReason
	// Remote is set for GateRemote.
	Remote *driven.RemoteError
	cause  error
}

func (e *GateError) Error() string {
	switch e.Reason {
	case GateMalformed:
		return "error: a numeric keyID and a vCode are both required"
	case GateLikelySwapped:
		return "error: the keyID looks like a vCode, check that the two fields are not swapped"
	case GateRemote:
		if e.Remote != nil {
			return fmt.Sprintf("error: %d message: %s", e.Remote.Code, e.Remote.Message)
		}
		return fmt.Sprintf("error: %v", e.cause)
	case GateInsufficientScope:
		return "error: key does not grant kill log access, modify the key to add it"
	default:
		return "error: key rejected"
	}
}

func (e *GateError) Unwrap() error {
	if e.Remote != nil {
		return e.Remote
	}
	return e.cause
}

// Validation is a key that passed admission.
type Validation struct {
	KeyID int64
	VCode string
	Info  *model.AccountInfo
}

// HasKillLogAccess reports whether accessMask carries the kill log bit.
func HasKillLogAccess(accessMask int64) bool {
	return accessMask&KillLogAccessBit != 0
}

// AccessGate is the admission check run before a key is accepted or
// re-validated.
type AccessGate struct {
	api driven.EveAPI
}

// NewAccessGate creates an AccessGate backed by the remote API.
func NewAccessGate(api driven.EveAPI) *AccessGate {
	return &AccessGate{api: api}
}

// Validate checks user-supplied key strings. Malformed input is rejected
// without a remote call.
func (g *AccessGate) Validate(ctx context.Context, keyIDRaw, vCodeRaw string) (*Validation, error) {
	keyIDRaw = strings.TrimSpace(keyIDRaw)
	vCode := strings.TrimSpace(vCodeRaw)

	if keyIDRaw == "" || vCode == "" || !isDigits(keyIDRaw) {
		return nil, &GateError{Reason: GateMalformed}
	}

	// A digit string too long for a keyID is almost always a vCode pasted
	// into the wrong field.
	keyID, err := strconv.ParseInt(keyIDRaw, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return nil, &GateError{Reason: GateLikelySwapped, cause: err}
	}
	if err != nil || keyID == 0 {
		return nil, &GateError{Reason: GateMalformed, cause: err}
	}

	info, err := g.check(ctx, keyID, vCode)
	if err != nil {
		return nil, err
	}
	return &Validation{KeyID: keyID, VCode: vCode, Info: info}, nil
}

// Revalidate re-runs the remote half of admission for a stored key.
func (g *AccessGate) Revalidate(ctx context.Context, cred model.Credential) (*model.AccountInfo, error) {
	return g.check(ctx, cred.KeyID, cred.VCode)
}

func (g *AccessGate) check(ctx context.Context, keyID int64, vCode string) (*model.AccountInfo, error) {
	info, err := g.api.FetchAccountInfo(ctx, keyID, vCode)
	if err != nil {
		var remote *driven.RemoteError
		if errors.As(err, &remote) {
			return nil, &GateError{Reason: GateRemote, Remote: remote}
		}
		return nil, &GateError{Reason: GateRemote, cause: err}
	}

	if !HasKillLogAccess(info.AccessMask) {
		return nil, &GateError{Reason: GateInsufficientScope}
	}
	return info, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
