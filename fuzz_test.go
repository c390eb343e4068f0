package fudge

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fudgemsg/fudge/internal/fudgetest"
)

// roundtripBinaryOK mirrors Fuzz's property without needing the gofuzz
// build tag: malformed input is not a failure, but a successfully decoded
// message must survive an encode/decode cycle unchanged.
func roundtripBinaryOK(data []byte) bool {
	m1, err := DecodeBinary(data, nil)
	if err != nil {
		return true
	}
	out, err := EncodeBinary(m1, nil)
	if err != nil {
		return false
	}
	m2, err := DecodeBinary(out, nil)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(m1, m2)
}

func mustEncode(t *testing.T, m *Message) []byte {
	t.Helper()
	out, err := EncodeBinary(m, nil)
	require.NoError(t, err)
	return out
}

func TestBinaryCorpusRoundTrips(t *testing.T) {
	corpus := [][]byte{
		mustEncode(t, NewMessage(nil).AddNamed("a", int32(1))),
		mustEncode(t, NewMessage(nil).AddNamed("s", "hello").AddOrdinal(2, float64(3.5))),
		{0x01, 0x02, 0x03},                                     // truncated garbage, must not panic
		{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, // size field smaller than header
	}
	for _, data := range corpus {
		require.True(t, roundtripBinaryOK(data), "roundtrip failed for % x", data)
	}
}

// TestMinimizeShrinksFailingInput exercises the fudgetest wrapper the same
// way it would be used on a real counterexample found by Fuzz/FuzzJSON: a
// predicate that reports whether the property still fails, shrunk down to
// the smallest reproducing input.
func TestMinimizeShrinksFailingInput(t *testing.T) {
	fails := func(d []byte) bool {
		for _, b := range d {
			if b == 0xFF {
				return true
			}
		}
		return false
	}
	data := []byte{0x01, 0x02, 0xFF, 0x03}
	require.True(t, fails(data))

	min := fudgetest.Minimize(data, fails)
	require.True(t, fails(min))
	require.LessOrEqual(t, len(min), len(data))
}
