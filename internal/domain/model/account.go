package model

import "time"

// AccountInfo is the remote description of an API key.
type AccountInfo struct {
	AccessMask int64
	Type       KeyType
	Expires    time.Time
	Characters []KeyCharacter
}

// KeyCharacter is one character an API key grants access to.
type KeyCharacter struct {
	CharacterID     int64
	CharacterName   string
	CorporationID   int64
	CorporationName string
}

// KillLog is one page of a remote kill log.
type KillLog struct {
	Kills       []Kill
	CachedUntil time.Time
}
