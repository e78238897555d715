package registry

import (
	"errors"
	"reflect"
	"testing"
)

func TestInstruction_RegisterRoundTrip(t *testing.T) {
	port := uint16(8080)
	mint := Pubkey{1, 2, 3}
	want := &RegisterWorld{
		Name:        "Emberfall",
		Endpoint:    "play.emberfall.example:7777",
		GamePort:    7777,
		AssetPort:   &port,
		TokenMint:   &mint,
		MetadataURI: "https://emberfall.example/meta.json",
	}
	for i := range want.WorldID {
		want.WorldID[i] = byte(i)
	}

	got, err := DecodeInstruction(EncodeInstruction(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\nhave %+v\nwant %+v", got, want)
	}
}

func TestInstruction_RegisterMinimal(t *testing.T) {
	want := &RegisterWorld{Name: "w", Endpoint: "h:1", GamePort: 1}
	got, err := DecodeInstruction(EncodeInstruction(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	reg, ok := got.(*RegisterWorld)
	if !ok {
		t.Fatalf("decoded %T", got)
	}
	if reg.AssetPort != nil || reg.TokenMint != nil || reg.DbcPool != nil {
		t.Fatalf("optional fields should be absent: %+v", reg)
	}
}

func TestInstruction_UpdateRoundTrip(t *testing.T) {
	name := "Renamed"
	pool := Pubkey{9, 9, 9}
	want := &UpdateWorld{
		Name:      &name,
		AssetPort: Clear[uint16](),
		TokenMint: Keep[Pubkey](),
		DbcPool:   Set(pool),
	}

	got, err := DecodeInstruction(EncodeInstruction(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	upd, ok := got.(*UpdateWorld)
	if !ok {
		t.Fatalf("decoded %T", got)
	}
	if upd.Name == nil || *upd.Name != name {
		t.Fatalf("name patch lost: %+v", upd)
	}
	if upd.Endpoint != nil || upd.GamePort != nil || upd.MetadataURI != nil {
		t.Fatalf("unset options should stay nil: %+v", upd)
	}
	if !upd.AssetPort.Present() {
		t.Fatalf("asset port patch should be present")
	}
	if _, set := upd.AssetPort.Value(); set {
		t.Fatalf("asset port patch should be a clear")
	}
	if upd.TokenMint.Present() {
		t.Fatalf("token mint patch should keep")
	}
	v, set := upd.DbcPool.Value()
	if !upd.DbcPool.Present() || !set || v != pool {
		t.Fatalf("dbc pool patch lost: %+v", upd.DbcPool)
	}
}

func TestInstruction_DelistRoundTrip(t *testing.T) {
	b := EncodeInstruction(&DelistWorld{})
	if len(b) != 1 {
		t.Fatalf("delist payload is the bare tag, got %d bytes", len(b))
	}
	got, err := DecodeInstruction(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got.(*DelistWorld); !ok {
		t.Fatalf("decoded %T", got)
	}
}

func TestDecodeInstruction_RejectsMalformed(t *testing.T) {
	reg := EncodeInstruction(&RegisterWorld{Name: "w", Endpoint: "h:1", GamePort: 1})

	cases := map[string][]byte{
		"empty":          nil,
		"unknown tag":    {3},
		"truncated":      reg[:len(reg)-1],
		"trailing bytes": append(append([]byte{}, reg...), 0),
		"bad option tag": {tagUpdateWorld, 2},
		// Claimed string length far beyond the buffer must not allocate
		// or read out of bounds.
		"oversized string length": {tagRegisterWorld,
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // world id
			0xFF, 0xFF, 0xFF, 0xFF},
	}
	for name, b := range cases {
		if _, err := DecodeInstruction(b); !errors.Is(err, ErrInvalidInstruction) {
			t.Fatalf("%s: expected ErrInvalidInstruction, got %v", name, err)
		}
	}
}

func TestDecodeInstruction_LongStringsDecode(t *testing.T) {
	// Over-cap strings pass the decoder; the processor enforces caps so the
	// caller sees a string error instead of a generic decode failure.
	long := make([]byte, NameLen+10)
	for i := range long {
		long[i] = 'a'
	}
	ix := &RegisterWorld{Name: string(long), Endpoint: "h:1", GamePort: 1}
	got, err := DecodeInstruction(EncodeInstruction(ix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.(*RegisterWorld).Name != string(long) {
		t.Fatalf("long name mangled")
	}
}
