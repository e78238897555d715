package registry

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Pubkey is a 32-byte ed25519 public key (or derived address).
type Pubkey [32]byte

// WorldID is the opaque 16-byte world identifier. It is a UUID on the wire
// surfaces that render it as text.
type WorldID [16]byte

func (k Pubkey) IsZero() bool {
	return k == Pubkey{}
}

func (k Pubkey) String() string {
	return base58.Encode(k[:])
}

func ParsePubkey(s string) (Pubkey, error) {
	var k Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, err
	}
	if len(b) != len(k) {
		return Pubkey{}, fmt.Errorf("pubkey must be 32 bytes, got %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

func (w WorldID) UUID() uuid.UUID {
	return uuid.UUID(w)
}

func (w WorldID) String() string {
	return w.UUID().String()
}

func ParseWorldID(s string) (WorldID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return WorldID{}, err
	}
	return WorldID(u), nil
}
