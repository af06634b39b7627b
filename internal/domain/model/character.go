package model

import "time"

// Character is a remote entity whose kill log is polled through a Credential.
// The owning Credential exclusively owns its Characters.
type Character struct {
	// APIRowID is a stable, monotonically assigned row identifier used to derive
	// the default shard assignment.
	APIRowID    int64
	KeyID       int64
	CharacterID int64
	IsDirector  DirectorFlag
	CachedUntil time.Time
	ErrorCode   int
	// Modulus is the shard this character is polled by. HasModulus is false
	// while the assignment is invalidated and awaiting recomputation.
	Modulus    int
	HasModulus bool
}

// Scope returns the kill log scope used to poll this character. Directors
// read their corporation's kill log.
func (c Character) Scope() KillLogScope {
	if c.IsDirector == DirectorYes {
		return ScopeCorporation
	}
	return ScopeCharacter
}
