package fudge

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

// requireFieldsEqual is require.Equal with a spew.Sdump dump of both field
// slices attached to the failure message, since a plain %v print of a
// []Field full of interface{} values and nested *Message pointers is
// unreadable once a round-trip test actually fails.
func requireFieldsEqual(t *testing.T, want, got []Field) {
	t.Helper()
	require.Equal(t, want, got, "want:\n%s\ngot:\n%s", spew.Sdump(want), spew.Sdump(got))
}

func TestBinaryRoundTripScalars(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("flag", true)
	m.AddNamed("count", int32(42))
	m.AddOrdinal(7, "hello, world")
	m.Add(float64(2.2))
	m.AddField(Field{Name: "bytes", HasName: true, Type: TypeByteArray, Value: []byte{1, 2, 3, 4}})

	encoded, err := EncodeBinary(m, nil)
	require.NoError(t, err)

	decoded, err := DecodeBinary(encoded, nil)
	require.NoError(t, err)
	requireFieldsEqual(t, m.Fields(), decoded.Fields())
}

func TestBinaryRoundTripNestedSubMessage(t *testing.T) {
	inner := NewMessage(nil)
	inner.AddNamed("x", int32(1))
	inner.AddNamed("y", int32(2))

	outer := NewMessage(nil)
	outer.AddSubMessage("point", true, 0, false, inner)
	outer.AddNamed("label", "origin")

	encoded, err := EncodeBinary(outer, nil)
	require.NoError(t, err)

	decoded, err := DecodeBinary(encoded, nil)
	require.NoError(t, err)
	require.Len(t, decoded.Fields(), 2)

	sub, ok := decoded.GetByName("point")
	require.True(t, ok)
	require.Equal(t, TypeMessage, sub.Type)
	require.Equal(t, inner.Fields(), sub.Sub.Fields())
}

func TestBinaryRoundTripNumericArrays(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("shorts", []int16{1, 2, 3})
	m.AddNamed("ints", []int32{10, 20, 30})
	m.AddNamed("longs", []int64{100, 200})
	m.AddNamed("doubles", []float64{1.5, 2.5})

	encoded, err := EncodeBinary(m, nil)
	require.NoError(t, err)
	decoded, err := DecodeBinary(encoded, nil)
	require.NoError(t, err)
	requireFieldsEqual(t, m.Fields(), decoded.Fields())
}

// TestBinaryRoundTripByteArraySizeBoundaries exercises the variable-size
// width boundaries spec.md names explicitly (0/255/256/65535/65536 byte
// payloads), where the writer must switch from a 0-byte to 1-byte to
// 2-byte to 4-byte size field (narrowestSizeWidth in prefix.go).
func TestBinaryRoundTripByteArraySizeBoundaries(t *testing.T) {
	for _, n := range []int{0, 255, 256, 65535, 65536} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		m := NewMessage(nil)
		m.AddField(Field{Name: "blob", HasName: true, Type: TypeByteArray, Value: payload})

		encoded, err := EncodeBinary(m, nil)
		require.NoError(t, err, "n=%d", n)

		decoded, err := DecodeBinary(encoded, nil)
		require.NoError(t, err, "n=%d", n)

		f, ok := decoded.GetByName("blob")
		require.True(t, ok, "n=%d", n)
		require.Equal(t, payload, f.Value, "n=%d", n)
	}
}

// TestWriteFieldOversizedNameIsRejected exercises the writer's own
// encode-side precondition check: a field name longer than 255 UTF-8
// bytes must be rejected, not silently truncated onto the wire.
func TestWriteFieldOversizedNameIsRejected(t *testing.T) {
	longName := string(make([]rune, 256)) // 256 NUL runes, 256 UTF-8 bytes
	m := NewMessage(nil)
	m.AddField(Field{Name: longName, HasName: true, Type: TypeBoolean, Value: true})

	_, err := EncodeBinary(m, nil)
	require.Error(t, err)
}

func TestMessageHashStable(t *testing.T) {
	m1 := NewMessage(nil).AddNamed("a", int32(1)).AddNamed("b", "two")
	m2 := NewMessage(nil).AddNamed("a", int32(1)).AddNamed("b", "two")
	require.Equal(t, m1.Hash(), m2.Hash())

	m3 := NewMessage(nil).AddNamed("a", int32(1)).AddNamed("b", "three")
	require.NotEqual(t, m1.Hash(), m3.Hash())
}

func TestPipeBinaryToJSON(t *testing.T) {
	m := NewMessage(nil).AddNamed("greeting", "hi").AddNamed("n", int32(3))
	encoded, err := EncodeBinary(m, nil)
	require.NoError(t, err)

	reader := NewReader(bytes.NewReader(encoded), nil)
	opts := DefaultJSONOptions()
	jw := NewJSONWriter(opts, nil)

	p := NewPipe(reader, jw, nil)
	count, err := p.Pump()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	out, err := jw.Bytes()
	require.NoError(t, err)

	roundtripped, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)
	requireFieldsEqual(t, m.Fields(), roundtripped.Fields())
}
