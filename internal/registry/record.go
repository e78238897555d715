package registry

import (
	"bytes"
	"encoding/binary"
)

// On-disk world entry layout. The encoded form is a fixed 358-byte blob:
// every field has a constant width, integers are little-endian, strings and
// key fields are zero-padded (all-zero means "unset").
const (
	EntryVersion = 1

	NameLen        = 32
	EndpointLen    = 64
	MetadataURILen = 128

	// EntryLen is the exact encoded size of a WorldEntry:
	// magic(8) + version(1) + bump(1) + world_id(16) + authority(32) +
	// name(32) + endpoint(64) + game_port(2) + asset_port(2) +
	// token_mint(32) + dbc_pool(32) + metadata_uri(128) + last_update_slot(8).
	EntryLen = 8 + 1 + 1 + 16 + 32 + NameLen + EndpointLen + 2 + 2 + 32 + 32 + MetadataURILen + 8
)

// EntryMagic tags well-formed world entries. Accounts that fail the magic or
// version check are never trusted past the header.
var EntryMagic = [8]byte{'O', 'W', 'P', 'R', 'E', 'G', '0', '1'}

type WorldEntry struct {
	Magic   [8]byte
	Version uint8
	Bump    uint8

	WorldID   WorldID
	Authority Pubkey

	Name     [NameLen]byte
	Endpoint [EndpointLen]byte
	GamePort uint16
	// 0 means "none".
	AssetPort uint16

	// All-zero pubkey bytes means "none".
	TokenMint Pubkey
	// All-zero pubkey bytes means "none".
	DbcPool Pubkey

	MetadataURI    [MetadataURILen]byte
	LastUpdateSlot uint64
}

// WriteFixedString zero-fills dst and copies s into its prefix. It fails
// with ErrStringTooLong instead of truncating.
func WriteFixedString(dst []byte, s string) error {
	if len(s) > len(dst) {
		return ErrStringTooLong
	}
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
	return nil
}

// ReadFixedString returns the prefix of b up to (excluding) the first zero byte.
func ReadFixedString(b []byte) string {
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		end = len(b)
	}
	return string(b[:end])
}

// Marshal encodes the entry into exactly EntryLen bytes in field order.
func (e *WorldEntry) Marshal() []byte {
	out := make([]byte, 0, EntryLen)
	out = append(out, e.Magic[:]...)
	out = append(out, e.Version, e.Bump)
	out = append(out, e.WorldID[:]...)
	out = append(out, e.Authority[:]...)
	out = append(out, e.Name[:]...)
	out = append(out, e.Endpoint[:]...)
	out = binary.LittleEndian.AppendUint16(out, e.GamePort)
	out = binary.LittleEndian.AppendUint16(out, e.AssetPort)
	out = append(out, e.TokenMint[:]...)
	out = append(out, e.DbcPool[:]...)
	out = append(out, e.MetadataURI[:]...)
	out = binary.LittleEndian.AppendUint64(out, e.LastUpdateSlot)
	return out
}

// DecodeEntry parses an account blob. It never reads out of bounds: anything
// that is not exactly EntryLen bytes with the expected magic and version
// fails with ErrInvalidAccountData.
func DecodeEntry(b []byte) (WorldEntry, error) {
	var e WorldEntry
	if len(b) != EntryLen {
		return WorldEntry{}, ErrInvalidAccountData
	}
	off := 0
	take := func(n int) []byte {
		v := b[off : off+n]
		off += n
		return v
	}
	copy(e.Magic[:], take(8))
	e.Version = take(1)[0]
	e.Bump = take(1)[0]
	copy(e.WorldID[:], take(16))
	copy(e.Authority[:], take(32))
	copy(e.Name[:], take(NameLen))
	copy(e.Endpoint[:], take(EndpointLen))
	e.GamePort = binary.LittleEndian.Uint16(take(2))
	e.AssetPort = binary.LittleEndian.Uint16(take(2))
	copy(e.TokenMint[:], take(32))
	copy(e.DbcPool[:], take(32))
	copy(e.MetadataURI[:], take(MetadataURILen))
	e.LastUpdateSlot = binary.LittleEndian.Uint64(take(8))

	if e.Magic != EntryMagic || e.Version != EntryVersion {
		return WorldEntry{}, ErrInvalidAccountData
	}
	return e, nil
}
