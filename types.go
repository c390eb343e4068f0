package fudge

import (
	"fmt"
	"reflect"
)

// TypeID is the wire-level identifier of a field's value type. The low 26
// ids are reserved for the built-in dictionary; everything else is a user
// type understood only by whichever application registered it.
type TypeID byte

// Built-in type ids, stable on the wire.
const (
	TypeIndicator TypeID = 0
	TypeBoolean   TypeID = 1
	TypeByte      TypeID = 2
	TypeShort     TypeID = 3
	TypeInt       TypeID = 4
	TypeLong      TypeID = 5
	TypeByteArray TypeID = 6
	TypeShortArray TypeID = 7
	TypeIntArray  TypeID = 8
	TypeLongArray TypeID = 9
	TypeFloat     TypeID = 10
	TypeDouble    TypeID = 11
	TypeFloatArray  TypeID = 12
	TypeDoubleArray TypeID = 13
	TypeString    TypeID = 14
	TypeMessage   TypeID = 15
	TypeDateTime  TypeID = 16

	TypeByteArray4   TypeID = 17
	TypeByteArray8   TypeID = 18
	TypeByteArray16  TypeID = 19
	TypeByteArray20  TypeID = 20
	TypeByteArray32  TypeID = 21
	TypeByteArray64  TypeID = 22
	TypeByteArray128 TypeID = 23
	TypeByteArray256 TypeID = 24
	TypeByteArray512 TypeID = 25
)

// fixedByteArrayLengths maps a fixed-width byte-array type id to its payload
// length, in the order the wire ids were assigned.
var fixedByteArrayLengths = map[TypeID]int{
	TypeByteArray4:   4,
	TypeByteArray8:   8,
	TypeByteArray16:  16,
	TypeByteArray20:  20,
	TypeByteArray32:  32,
	TypeByteArray64:  64,
	TypeByteArray128: 128,
	TypeByteArray256: 256,
	TypeByteArray512: 512,
}

// Kind classifies how a type's payload is framed on the wire.
type Kind int

const (
	// KindFixed payloads have a width that's a pure function of the type id.
	KindFixed Kind = iota
	// KindVariable payloads are preceded by a 0/1/2/4-byte size.
	KindVariable
)

// Codec describes how to read and write the payload of one wire type. A
// codec never sees the field prefix, ordinal or name; those belong to the
// reader/writer framing (C4/C5).
type Codec struct {
	TypeID TypeID
	Kind   Kind
	// FixedSize is the payload width in bytes; only meaningful for KindFixed.
	FixedSize int
	// DefaultKind is the Go reflect.Kind this type decodes to when the
	// caller has no hint (e.g. reading into interface{}).
	DefaultKind reflect.Kind

	// Read decodes a value already isolated to exactly its payload bytes.
	// For KindVariable types, len(payload) is the size that was read off
	// the wire; for KindFixed types it always equals FixedSize.
	Read func(payload []byte) (interface{}, error)
	// Write appends the encoded payload of v to buf and returns it. It
	// does not write the size prefix for variable-width types; the caller
	// (C5) computes and writes the narrowest size-width itself.
	Write func(buf []byte, v interface{}) ([]byte, error)
}

// Dictionary is a registry of wire-type codecs keyed by TypeID, plus a
// secondary index from native Go type to its preferred wire type, used for
// auto-typing untyped values added to a Message (C6).
//
// A Dictionary is read-only after Freeze and may then be shared across
// goroutines; see the concurrency model in SPEC_FULL.md §3.
type Dictionary struct {
	byID      map[TypeID]*Codec
	preferred map[reflect.Type]TypeID
	frozen    bool
}

// NewDictionary returns a Dictionary preloaded with the built-in types.
func NewDictionary() *Dictionary {
	d := &Dictionary{
		byID:      make(map[TypeID]*Codec),
		preferred: make(map[reflect.Type]TypeID),
	}
	registerBuiltins(d)
	return d
}

// Register adds or replaces a codec. It panics if called after Freeze,
// mirroring the teacher's "registries are read-only after initialization"
// rule (SPEC_FULL.md §3) rather than returning an error
// for what is always a programmer mistake.
func (d *Dictionary) Register(c *Codec) {
	if d.frozen {
		panic("fudge: Dictionary.Register called after Freeze")
	}
	d.byID[c.TypeID] = c
}

// PreferType records that native type rt should, by default, be encoded
// using wire type id.
func (d *Dictionary) PreferType(rt reflect.Type, id TypeID) {
	if d.frozen {
		panic("fudge: Dictionary.PreferType called after Freeze")
	}
	d.preferred[rt] = id
}

// Freeze marks the dictionary read-only, after which it may be consulted
// concurrently from multiple readers/writers without synchronization.
func (d *Dictionary) Freeze() *Dictionary {
	d.frozen = true
	return d
}

// Lookup returns the codec for id, or an opaque placeholder codec if id is
// unknown. kind must be supplied by the caller from the field prefix: per
// spec.md invariant 3, an unknown fixed-width type is a fatal
// UnknownTypeError (no recovery size can be supplied), raised by the caller
// (C4), not here.
func (d *Dictionary) Lookup(id TypeID, kind Kind, fixedSize int) *Codec {
	if c, ok := d.byID[id]; ok {
		return c
	}
	return unknownCodec(id, kind, fixedSize)
}

// PreferredType returns the wire type id that should be used to encode a
// value of Go type rt, and whether one is registered.
func (d *Dictionary) PreferredType(rt reflect.Type) (TypeID, bool) {
	id, ok := d.preferred[rt]
	return id, ok
}

// UnknownValue preserves the opaque bytes of a field whose type id this
// dictionary does not recognize, so that the field survives a read/write
// round trip unchanged (spec.md §7, UnknownType handling).
type UnknownValue struct {
	TypeID TypeID
	Bytes  []byte
}

func unknownCodec(id TypeID, kind Kind, fixedSize int) *Codec {
	c := &Codec{TypeID: id, Kind: kind, FixedSize: fixedSize, DefaultKind: reflect.Slice}
	c.Read = func(payload []byte) (interface{}, error) {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return UnknownValue{TypeID: id, Bytes: cp}, nil
	}
	c.Write = func(buf []byte, v interface{}) ([]byte, error) {
		switch val := v.(type) {
		case UnknownValue:
			return append(buf, val.Bytes...), nil
		case []byte:
			return append(buf, val...), nil
		default:
			return nil, fmt.Errorf("fudge: cannot write value %T as unknown type %d", v, id)
		}
	}
	return c
}

// FixedWidth reports whether the type is fixed-width and, if so, its size.
func FixedWidth(id TypeID) (size int, ok bool) {
	switch id {
	case TypeIndicator:
		return 0, true
	case TypeBoolean, TypeByte:
		return 1, true
	case TypeShort:
		return 2, true
	case TypeInt, TypeFloat:
		return 4, true
	case TypeLong, TypeDouble:
		return 8, true
	case TypeDateTime:
		return 14, true
	}
	if n, ok := fixedByteArrayLengths[id]; ok {
		return n, true
	}
	return 0, false
}
