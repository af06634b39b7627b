package eveapi

import (
	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// killRow is one kill of a KillLog response. Attackers and items are nested
// rowsets distinguished by their name attribute.
type killRow struct {
	KillID        int64  `xml:"killID,attr"`
	SolarSystemID int64  `xml:"solarSystemID,attr"`
	KillTime      string `xml:"killTime,attr"`
	MoonID        int64  `xml:"moonID,attr"`
	Victim        struct {
		CharacterID   int64  `xml:"characterID,attr"`
		CharacterName string `xml:"characterName,attr"`
		CorporationID int64  `xml:"corporationID,attr"`
		AllianceID    int64  `xml:"allianceID,attr"`
		ShipTypeID    int64  `xml:"shipTypeID,attr"`
		DamageTaken   int64  `xml:"damageTaken,attr"`
	} `xml:"victim"`
	Rowsets []rowset `xml:"rowset"`
}

type rowset struct {
	Name string   `xml:"name,attr"`
	Rows []rowXML `xml:"row"`
}

// rowXML carries the union of attacker and item attributes.
type rowXML struct {
	CharacterID    int64   `xml:"characterID,attr"`
	CharacterName  string  `xml:"characterName,attr"`
	CorporationID  int64   `xml:"corporationID,attr"`
	AllianceID     int64   `xml:"allianceID,attr"`
	SecurityStatus float64 `xml:"securityStatus,attr"`
	DamageDone     int64   `xml:"damageDone,attr"`
	FinalBlow      int     `xml:"finalBlow,attr"`
	WeaponTypeID   int64   `xml:"weaponTypeID,attr"`
	ShipTypeID     int64   `xml:"shipTypeID,attr"`

	TypeID       int64 `xml:"typeID,attr"`
	Flag         int   `xml:"flag,attr"`
	QtyDropped   int64 `xml:"qtyDropped,attr"`
	QtyDestroyed int64 `xml:"qtyDestroyed,attr"`
	Singleton    int   `xml:"singleton,attr"`
}

func (k killRow) toModel() model.Kill {
	kill := model.Kill{
		KillID:        k.KillID,
		SolarSystemID: k.SolarSystemID,
		KillTime:      parseTime(k.KillTime),
		MoonID:        k.MoonID,
		Victim: model.Victim{
			CharacterID:   k.Victim.CharacterID,
			CharacterName: k.Victim.CharacterName,
			CorporationID: k.Victim.CorporationID,
			AllianceID:    k.Victim.AllianceID,
			ShipTypeID:    k.Victim.ShipTypeID,
			DamageTaken:   k.Victim.DamageTaken,
		},
	}

	for _, rs := range k.Rowsets {
		switch rs.Name {
		case "attackers":
			for _, r := range rs.Rows {
				kill.Attackers = append(kill.Attackers, model.Attacker{
					CharacterID:    r.CharacterID,
					CharacterName:  r.CharacterName,
					CorporationID:  r.CorporationID,
					AllianceID:     r.AllianceID,
					SecurityStatus: r.SecurityStatus,
					DamageDone:     r.DamageDone,
					FinalBlow:      r.FinalBlow == 1,
					WeaponTypeID:   r.WeaponTypeID,
					ShipTypeID:     r.ShipTypeID,
				})
			}
		case "items":
			for _, r := range rs.Rows {
				kill.Items = append(kill.Items, model.Item{
					TypeID:       r.TypeID,
					Flag:         r.Flag,
					QtyDropped:   r.QtyDropped,
					QtyDestroyed: r.QtyDestroyed,
					Singleton:    r.Singleton,
				})
			}
		}
	}
	return kill
}
