package model

// DirectorFlag is the tri-state director marker on a Character.
// DirectorUnset rows are leftovers of incomplete validations and are purged
// at the start of every scheduling cycle.
type DirectorFlag string

const (
	DirectorUnset DirectorFlag = ""
	DirectorYes   DirectorFlag = "T"
	DirectorNo    DirectorFlag = "F"
)

// KillLogScope selects which remote kill log endpoint is read.
type KillLogScope string

const (
	ScopeCharacter   KillLogScope = "char"
	ScopeCorporation KillLogScope = "corp"
)

// KeyType is the remote classification of an API key.
type KeyType string

const (
	KeyTypeAccount     KeyType = "Account"
	KeyTypeCharacter   KeyType = "Character"
	KeyTypeCorporation KeyType = "Corporation"
)

// Named values held in the generic key/value storage table.
const (
	SettingFetchesPerSecond = "APIFetchesPerSecond"
	SettingAPIStop          = "ApiStop904"
)
