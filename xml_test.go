package fudge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXMLRoundTripScalars(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("name", "Grace")
	m.AddNamed("age", int32(52))
	m.AddOrdinal(9, true)

	out, err := EncodeXML(m)
	require.NoError(t, err)

	decoded, err := DecodeXML(out, nil)
	require.NoError(t, err)
	require.Equal(t, m.Fields(), decoded.Fields())
}

func TestXMLRoundTripIntArray(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("nums", []int32{7, 8, 9})

	out, err := EncodeXML(m)
	require.NoError(t, err)

	decoded, err := DecodeXML(out, nil)
	require.NoError(t, err)

	f, ok := decoded.GetByName("nums")
	require.True(t, ok)
	require.Equal(t, []int32{7, 8, 9}, f.Value)
}

func TestXMLRoundTripNestedSubMessage(t *testing.T) {
	inner := NewMessage(nil)
	inner.AddNamed("lat", float64(37.77))
	inner.AddNamed("lon", float64(-122.42))

	outer := NewMessage(nil)
	outer.AddSubMessage("coords", true, 0, false, inner)

	out, err := EncodeXML(outer)
	require.NoError(t, err)

	decoded, err := DecodeXML(out, nil)
	require.NoError(t, err)

	sub, ok := decoded.GetByName("coords")
	require.True(t, ok)
	require.Equal(t, inner.Fields(), sub.Sub.Fields())
}

func TestXMLEscapesReservedCharacters(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("quote", `<tag attr="x & y">`)

	out, err := EncodeXML(m)
	require.NoError(t, err)
	require.NotContains(t, string(out), `<tag attr="x & y">`)

	decoded, err := DecodeXML(out, nil)
	require.NoError(t, err)
	f, ok := decoded.GetByName("quote")
	require.True(t, ok)
	require.Equal(t, `<tag attr="x & y">`, f.Value)
}
