// Package killhash computes the canonical content hash of a kill. Two kills
// with equal content hash identically regardless of how the remote ordered
// or formatted them, so the hash can be compared across sources.
package killhash

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/ericfisherdev/killsync/internal/domain/model"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// logical kill always yields the same bytes.
var encMode cbor.EncMode

// domainKey separates killmail hashes from any other BLAKE3 keyed hash.
var domainKey = [32]byte{
	'k', 'i', 'l', 'l', 's', 'y', 'n', 'c', '.', 'k', 'i', 'l', 'l', 'm', 'a', 'i',
	'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeUnix

	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("killhash: CBOR encoder initialization failed: " + err.Error())
	}
}

// Sum returns the hex-encoded hash of k. Attackers and items are hashed in a
// canonical order.
func Sum(k model.Kill) (string, error) {
	canon := k
	canon.KillTime = k.KillTime.UTC()

	canon.Attackers = slices.Clone(k.Attackers)
	slices.SortFunc(canon.Attackers, func(a, b model.Attacker) int {
		return cmp.Or(
			cmp.Compare(a.CharacterID, b.CharacterID),
			cmp.Compare(a.ShipTypeID, b.ShipTypeID),
			cmp.Compare(a.WeaponTypeID, b.WeaponTypeID),
			cmp.Compare(a.DamageDone, b.DamageDone),
		)
	})

	canon.Items = slices.Clone(k.Items)
	slices.SortFunc(canon.Items, func(a, b model.Item) int {
		return cmp.Or(
			cmp.Compare(a.TypeID, b.TypeID),
			cmp.Compare(a.Flag, b.Flag),
			cmp.Compare(a.QtyDropped, b.QtyDropped),
			cmp.Compare(a.QtyDestroyed, b.QtyDestroyed),
		)
	})

	data, err := encMode.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("encode kill %d: %w", k.KillID, err)
	}

	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		return "", fmt.Errorf("init hasher: %w", err)
	}
	_, _ = hasher.Write(data)

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
