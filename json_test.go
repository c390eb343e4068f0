package fudge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustParseRFC3339(t *testing.T, s string) time.Time {
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func TestJSONRoundTripScalars(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("name", "Ada")
	m.AddNamed("age", int32(36))
	m.AddNamed("active", true)
	m.AddField(Field{HasName: false, HasOrdinal: false, Type: TypeIndicator, Value: Indicator{}})

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(m, opts)
	require.NoError(t, err)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)
	require.Equal(t, m.Fields(), decoded.Fields())
}

func TestJSONRepeatedNameBecomesArray(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("tag", "red")
	m.AddNamed("tag", "green")
	m.AddNamed("tag", "blue")

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(m, opts)
	require.NoError(t, err)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)

	tags := decoded.GetAllByName("tag")
	require.Len(t, tags, 3)
	require.Equal(t, "red", tags[0].Value)
	require.Equal(t, "green", tags[1].Value)
	require.Equal(t, "blue", tags[2].Value)
}

// TestJSONMixedTypeArrayRoundTrip covers the genuinely-mixed-kind array
// case (spec.md §8 scenario 3): [1, 2, "fred", 2.3] has no single wire
// type, so it round-trips as four repeated fields sharing one name/key,
// not a single primitive-array field.
func TestJSONMixedTypeArrayRoundTrip(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("mixed", int32(1))
	m.AddNamed("mixed", int32(2))
	m.AddNamed("mixed", "fred")
	m.AddNamed("mixed", float64(2.3))

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(m, opts)
	require.NoError(t, err)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)

	fields := decoded.GetAllByName("mixed")
	require.Len(t, fields, 4)
	require.Equal(t, int32(1), fields[0].Value)
	require.Equal(t, int32(2), fields[1].Value)
	require.Equal(t, "fred", fields[2].Value)
	require.Equal(t, float64(2.3), fields[3].Value)
}

func TestJSONHomogeneousIntArrayRoundTrip(t *testing.T) {
	m := NewMessage(nil)
	m.AddNamed("nums", []int32{1, 2, 3, 4})

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(m, opts)
	require.NoError(t, err)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)

	f, ok := decoded.GetByName("nums")
	require.True(t, ok)
	require.Equal(t, TypeIntArray, f.Type)
	require.Equal(t, []int32{1, 2, 3, 4}, f.Value)
}

func TestJSONDateTimeRoundTripsAsRFC3339(t *testing.T) {
	dt, err := NewDateTime(mustParseRFC3339(t, "2024-03-05T10:15:30Z"), AccuracyNanosecond, true)
	require.NoError(t, err)

	m := NewMessage(nil)
	m.AddField(Field{Name: "when", HasName: true, Type: TypeDateTime, Value: dt})

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(m, opts)
	require.NoError(t, err)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)

	f, ok := decoded.GetByName("when")
	require.True(t, ok)
	require.Equal(t, TypeDateTime, f.Type)
}

func TestJSONNestedSubMessageRoundTrip(t *testing.T) {
	inner := NewMessage(nil)
	inner.AddNamed("street", "Elm")
	inner.AddNamed("zip", int32(90210))

	outer := NewMessage(nil)
	outer.AddSubMessage("address", true, 0, false, inner)
	outer.AddNamed("owner", "Rosa")

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(outer, opts)
	require.NoError(t, err)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)

	sub, ok := decoded.GetByName("address")
	require.True(t, ok)
	require.Equal(t, TypeMessage, sub.Type)
	require.Equal(t, inner.Fields(), sub.Sub.Fields())
}

func TestJSONOrdinalFieldUsesNumericKey(t *testing.T) {
	m := NewMessage(nil)
	m.AddOrdinal(5, "ordinal-value")

	opts := DefaultJSONOptions()
	out, err := EncodeJSON(m, opts)
	require.NoError(t, err)
	require.Contains(t, string(out), `"5"`)

	decoded, err := DecodeJSON(out, opts, nil)
	require.NoError(t, err)
	f, ok := decoded.GetByOrdinal(5)
	require.True(t, ok)
	require.Equal(t, "ordinal-value", f.Value)
}
