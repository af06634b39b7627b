package model

import "time"

// Action describes the state mutations called for by one remote error code.
// Fields are independent; several may be set at once.
type Action struct {
	ClearCharacter     bool
	ClearAllCharacters bool
	ClearAPIEntry      bool
	DemoteCharacter    bool
	// CacheUntil, when non-zero, backs the character off until that time.
	CacheUntil time.Time
	// GlobalStop, when positive, halts all polling for that long.
	GlobalStop time.Duration
	// Unhandled marks a code with no specific handling; it is logged for
	// operators.
	Unhandled bool
}

// IsGlobalStop reports whether the action suppresses polling service-wide.
func (a Action) IsGlobalStop() bool {
	return a.GlobalStop > 0
}
