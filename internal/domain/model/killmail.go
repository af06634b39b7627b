package model

import "time"

// Kill is a single entry of a remote kill log.
type Kill struct {
	KillID        int64      `json:"killID" cbor:"killID"`
	SolarSystemID int64      `json:"solarSystemID" cbor:"solarSystemID"`
	KillTime      time.Time  `json:"killTime" cbor:"killTime"`
	MoonID        int64      `json:"moonID" cbor:"moonID"`
	Victim        Victim     `json:"victim" cbor:"victim"`
	Attackers     []Attacker `json:"attackers" cbor:"attackers"`
	Items         []Item     `json:"items" cbor:"items"`
}

// Victim is the losing party of a kill.
type Victim struct {
	CharacterID   int64  `json:"characterID" cbor:"characterID"`
	CharacterName string `json:"characterName" cbor:"characterName"`
	CorporationID int64  `json:"corporationID" cbor:"corporationID"`
	AllianceID    int64  `json:"allianceID" cbor:"allianceID"`
	ShipTypeID    int64  `json:"shipTypeID" cbor:"shipTypeID"`
	DamageTaken   int64  `json:"damageTaken" cbor:"damageTaken"`
}

// Attacker is one participant on the winning side of a kill.
type Attacker struct {
	CharacterID    int64   `json:"characterID" cbor:"characterID"`
	CharacterName  string  `json:"characterName" cbor:"characterName"`
	CorporationID  int64   `json:"corporationID" cbor:"corporationID"`
	AllianceID     int64   `json:"allianceID" cbor:"allianceID"`
	SecurityStatus float64 `json:"securityStatus" cbor:"securityStatus"`
	DamageDone     int64   `json:"damageDone" cbor:"damageDone"`
	FinalBlow      bool    `json:"finalBlow" cbor:"finalBlow"`
	WeaponTypeID   int64   `json:"weaponTypeID" cbor:"weaponTypeID"`
	ShipTypeID     int64   `json:"shipTypeID" cbor:"shipTypeID"`
}

// Item is a fitted or cargo item on the victim's ship.
type Item struct {
	TypeID       int64 `json:"typeID" cbor:"typeID"`
	Flag         int   `json:"flag" cbor:"flag"`
	QtyDropped   int64 `json:"qtyDropped" cbor:"qtyDropped"`
	QtyDestroyed int64 `json:"qtyDestroyed" cbor:"qtyDestroyed"`
	Singleton    int   `json:"singleton" cbor:"singleton"`
}

// Killmail is a stored, deduplicated kill.
type Killmail struct {
	KillID    int64
	Hash      string
	Source    string
	Payload   []byte
	Processed bool
}
