package registry

import "encoding/binary"

// Instruction wire format (borsh-compatible, matching previously stored
// callers): a 1-byte variant tag, then the payload fields in order.
// Strings are u32-LE length + bytes, optional fields are a 1-byte presence
// tag (0/1) followed by the value, fixed byte arrays are raw.
const (
	tagRegisterWorld = 0
	tagUpdateWorld   = 1
	tagDelistWorld   = 2
)

type Instruction interface {
	instruction()
}

type RegisterWorld struct {
	WorldID     WorldID
	Name        string
	Endpoint    string
	GamePort    uint16
	AssetPort   *uint16
	TokenMint   *Pubkey
	DbcPool     *Pubkey
	MetadataURI string
}

type UpdateWorld struct {
	Name     *string
	Endpoint *string
	GamePort *uint16
	// Three-state patches: keep, clear to the absent sentinel, or set.
	AssetPort   Patch[uint16]
	TokenMint   Patch[Pubkey]
	DbcPool     Patch[Pubkey]
	MetadataURI *string
}

type DelistWorld struct{}

func (*RegisterWorld) instruction() {}
func (*UpdateWorld) instruction()   {}
func (*DelistWorld) instruction()   {}

// Patch distinguishes "leave unchanged" from "clear" from "set". The zero
// value keeps the stored field. On the wire it is a nested option:
// 0 = keep, 1 0 = clear, 1 1 <value> = set.
type Patch[T any] struct {
	present bool
	set     bool
	value   T
}

func Keep[T any]() Patch[T]     { return Patch[T]{} }
func Clear[T any]() Patch[T]    { return Patch[T]{present: true} }
func Set[T any](v T) Patch[T]   { return Patch[T]{present: true, set: true, value: v} }
func (p Patch[T]) Present() bool { return p.present }

// Value reports the new value and whether one was set. Only meaningful when
// Present() is true; (zero, false) then means "clear".
func (p Patch[T]) Value() (T, bool) { return p.value, p.set }

// DecodeInstruction parses raw instruction bytes. String fields are not
// length-validated here; the processor enforces caps so the reported error
// is ErrStringTooLong rather than a generic decode failure.
func DecodeInstruction(data []byte) (Instruction, error) {
	r := ixReader{b: data}
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}

	var ix Instruction
	switch tag {
	case tagRegisterWorld:
		v := &RegisterWorld{}
		err = decodeRegister(&r, v)
		ix = v
	case tagUpdateWorld:
		v := &UpdateWorld{}
		err = decodeUpdate(&r, v)
		ix = v
	case tagDelistWorld:
		ix = &DelistWorld{}
	default:
		return nil, ErrInvalidInstruction
	}
	if err != nil {
		return nil, err
	}
	if r.off != len(r.b) {
		return nil, ErrInvalidInstruction
	}
	return ix, nil
}

func decodeRegister(r *ixReader, v *RegisterWorld) error {
	if err := r.fixed(v.WorldID[:]); err != nil {
		return err
	}
	var err error
	if v.Name, err = r.str(); err != nil {
		return err
	}
	if v.Endpoint, err = r.str(); err != nil {
		return err
	}
	if v.GamePort, err = r.u16(); err != nil {
		return err
	}
	if v.AssetPort, err = optU16(r); err != nil {
		return err
	}
	if v.TokenMint, err = optKey(r); err != nil {
		return err
	}
	if v.DbcPool, err = optKey(r); err != nil {
		return err
	}
	v.MetadataURI, err = r.str()
	return err
}

func decodeUpdate(r *ixReader, v *UpdateWorld) error {
	var err error
	if v.Name, err = optStr(r); err != nil {
		return err
	}
	if v.Endpoint, err = optStr(r); err != nil {
		return err
	}
	if v.GamePort, err = optU16(r); err != nil {
		return err
	}
	if v.AssetPort, err = patch(r, (*ixReader).u16); err != nil {
		return err
	}
	if v.TokenMint, err = patch(r, (*ixReader).key); err != nil {
		return err
	}
	if v.DbcPool, err = patch(r, (*ixReader).key); err != nil {
		return err
	}
	v.MetadataURI, err = optStr(r)
	return err
}

// EncodeInstruction is the inverse of DecodeInstruction; clients use it to
// build instruction payloads for the processor.
func EncodeInstruction(ix Instruction) []byte {
	switch v := ix.(type) {
	case *RegisterWorld:
		out := []byte{tagRegisterWorld}
		out = append(out, v.WorldID[:]...)
		out = appendStr(out, v.Name)
		out = appendStr(out, v.Endpoint)
		out = binary.LittleEndian.AppendUint16(out, v.GamePort)
		out = appendOptU16(out, v.AssetPort)
		out = appendOptKey(out, v.TokenMint)
		out = appendOptKey(out, v.DbcPool)
		out = appendStr(out, v.MetadataURI)
		return out
	case *UpdateWorld:
		out := []byte{tagUpdateWorld}
		out = appendOptStr(out, v.Name)
		out = appendOptStr(out, v.Endpoint)
		out = appendOptU16(out, v.GamePort)
		out = appendPatch(out, v.AssetPort, func(b []byte, p uint16) []byte {
			return binary.LittleEndian.AppendUint16(b, p)
		})
		out = appendPatch(out, v.TokenMint, func(b []byte, k Pubkey) []byte {
			return append(b, k[:]...)
		})
		out = appendPatch(out, v.DbcPool, func(b []byte, k Pubkey) []byte {
			return append(b, k[:]...)
		})
		out = appendOptStr(out, v.MetadataURI)
		return out
	case *DelistWorld:
		return []byte{tagDelistWorld}
	}
	return nil
}

type ixReader struct {
	b   []byte
	off int
}

func (r *ixReader) u8() (byte, error) {
	if r.off >= len(r.b) {
		return 0, ErrInvalidInstruction
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *ixReader) u16() (uint16, error) {
	if len(r.b)-r.off < 2 {
		return 0, ErrInvalidInstruction
	}
	v := binary.LittleEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v, nil
}

func (r *ixReader) fixed(dst []byte) error {
	if len(r.b)-r.off < len(dst) {
		return ErrInvalidInstruction
	}
	copy(dst, r.b[r.off:])
	r.off += len(dst)
	return nil
}

func (r *ixReader) key() (Pubkey, error) {
	var k Pubkey
	err := r.fixed(k[:])
	return k, err
}

func (r *ixReader) str() (string, error) {
	if len(r.b)-r.off < 4 {
		return "", ErrInvalidInstruction
	}
	n := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	// Bound the claimed length by the remaining buffer before allocating.
	if int(n) > len(r.b)-r.off {
		return "", ErrInvalidInstruction
	}
	s := string(r.b[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *ixReader) option() (bool, error) {
	t, err := r.u8()
	if err != nil {
		return false, err
	}
	switch t {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, ErrInvalidInstruction
}

func optStr(r *ixReader) (*string, error) {
	ok, err := r.option()
	if err != nil || !ok {
		return nil, err
	}
	s, err := r.str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func optU16(r *ixReader) (*uint16, error) {
	ok, err := r.option()
	if err != nil || !ok {
		return nil, err
	}
	v, err := r.u16()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optKey(r *ixReader) (*Pubkey, error) {
	ok, err := r.option()
	if err != nil || !ok {
		return nil, err
	}
	k, err := r.key()
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func patch[T any](r *ixReader, read func(*ixReader) (T, error)) (Patch[T], error) {
	outer, err := r.option()
	if err != nil || !outer {
		return Keep[T](), err
	}
	inner, err := r.option()
	if err != nil {
		return Keep[T](), err
	}
	if !inner {
		return Clear[T](), nil
	}
	v, err := read(r)
	if err != nil {
		return Keep[T](), err
	}
	return Set(v), nil
}

func appendStr(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func appendOptStr(b []byte, s *string) []byte {
	if s == nil {
		return append(b, 0)
	}
	return appendStr(append(b, 1), *s)
}

func appendOptU16(b []byte, v *uint16) []byte {
	if v == nil {
		return append(b, 0)
	}
	return binary.LittleEndian.AppendUint16(append(b, 1), *v)
}

func appendOptKey(b []byte, k *Pubkey) []byte {
	if k == nil {
		return append(b, 0)
	}
	return append(append(b, 1), k[:]...)
}

func appendPatch[T any](b []byte, p Patch[T], enc func([]byte, T) []byte) []byte {
	if !p.present {
		return append(b, 0)
	}
	if !p.set {
		return append(b, 1, 0)
	}
	return enc(append(b, 1, 1), p.value)
}
