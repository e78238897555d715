package registry

import (
	"bytes"
	"errors"
	"testing"
)

func sampleEntry() WorldEntry {
	e := WorldEntry{
		Magic:          EntryMagic,
		Version:        EntryVersion,
		Bump:           254,
		GamePort:       7777,
		AssetPort:      8080,
		LastUpdateSlot: 42,
	}
	for i := range e.WorldID {
		e.WorldID[i] = byte(i + 1)
	}
	for i := range e.Authority {
		e.Authority[i] = byte(0xA0 + i%16)
	}
	copy(e.Name[:], "Emberfall")
	copy(e.Endpoint[:], "play.emberfall.example:7777")
	copy(e.TokenMint[:], bytes.Repeat([]byte{7}, 32))
	copy(e.MetadataURI[:], "https://emberfall.example/meta.json")
	return e
}

func TestWorldEntry_MarshalDecode_RoundTrip(t *testing.T) {
	e := sampleEntry()
	b := e.Marshal()
	if len(b) != EntryLen {
		t.Fatalf("encoded length: have %d want %d", len(b), EntryLen)
	}
	got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch:\nhave %+v\nwant %+v", got, e)
	}
}

func TestWorldEntry_EntryLenIsStable(t *testing.T) {
	// The encoded size is part of the storage contract; accounts are
	// allocated at exactly this size.
	if EntryLen != 358 {
		t.Fatalf("EntryLen = %d, want 358", EntryLen)
	}
}

func TestDecodeEntry_RejectsBadInput(t *testing.T) {
	e := sampleEntry()
	good := e.Marshal()

	cases := map[string][]byte{
		"empty":     nil,
		"short":     good[:EntryLen-1],
		"long":      append(append([]byte{}, good...), 0),
		"all zero":  make([]byte, EntryLen),
		"bad magic": func() []byte { b := append([]byte{}, good...); b[0] ^= 0xFF; return b }(),
		"bad version": func() []byte {
			bad := e
			bad.Version = EntryVersion + 1
			return bad.Marshal()
		}(),
	}
	for name, b := range cases {
		if _, err := DecodeEntry(b); !errors.Is(err, ErrInvalidAccountData) {
			t.Fatalf("%s: expected ErrInvalidAccountData, got %v", name, err)
		}
	}
}

func TestFixedString_WriteAndRead(t *testing.T) {
	buf := make([]byte, NameLen)
	if err := WriteFixedString(buf, "Emberfall"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := ReadFixedString(buf); got != "Emberfall" {
		t.Fatalf("read back %q", got)
	}

	// Overwriting with a shorter value must not leave a tail behind.
	if err := WriteFixedString(buf, "Oak"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := ReadFixedString(buf); got != "Oak" {
		t.Fatalf("read back %q", got)
	}

	// Exactly full width is allowed and reads back in full.
	full := string(bytes.Repeat([]byte{'x'}, NameLen))
	if err := WriteFixedString(buf, full); err != nil {
		t.Fatalf("write full: %v", err)
	}
	if got := ReadFixedString(buf); got != full {
		t.Fatalf("read back full-width: %q", got)
	}

	if err := WriteFixedString(buf, full+"y"); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}
