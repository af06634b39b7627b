package model

import "time"

// Credential is one API key (KeyID + VCode pair) granting access to the kill
// logs of one or more characters. OwnerUserID is 0 for keys submitted
// anonymously; such keys can later be claimed by a real user.
type Credential struct {
	KeyID          int64
	VCode          string
	OwnerUserID    int64
	Label          string
	LastValidation time.Time
	// ErrorCode is the last remote error recorded against the key as a whole.
	// Zero means the key is healthy.
	ErrorCode int
}

// Errored reports whether the key has been soft-invalidated by a remote fault.
func (c Credential) Errored() bool {
	return c.ErrorCode != 0
}
