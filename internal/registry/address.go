package registry

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

// SeedWorld namespaces world entry addresses under the registry program.
const SeedWorld = "world"

const derivedAddressMarker = "ProgramDerivedAddress"

var errNoViableBump = errors.New("no viable bump for derived address")

// DeriveWorldAddress maps (programID, worldID) to the storage address that
// holds the world entry, plus the collision-avoidance bump. The bump is
// searched from 255 downward; the first candidate that is not a valid
// curve point wins, so no private key can ever sign for the address.
// Deterministic: identical inputs always yield the identical pair.
func DeriveWorldAddress(programID Pubkey, worldID WorldID) (Pubkey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		h.Write([]byte(SeedWorld))
		h.Write(worldID[:])
		h.Write([]byte{uint8(bump)})
		h.Write(programID[:])
		h.Write([]byte(derivedAddressMarker))

		var addr Pubkey
		copy(addr[:], h.Sum(nil))
		if !onCurve(addr) {
			return addr, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, errNoViableBump
}

func onCurve(k Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(k[:])
	return err == nil
}
