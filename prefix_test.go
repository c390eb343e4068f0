package fudge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNarrowestSizeWidthBoundaries covers the size-width boundary set
// spec.md names explicitly: 0, 255/256, 65535/65536, and 2^31-1 — the
// points right at and right past each size-width's maximum.
func TestNarrowestSizeWidthBoundaries(t *testing.T) {
	cases := []struct {
		n     int
		width int
	}{
		{0, 0},
		{1, 1},
		{255, 1},
		{256, 2},
		{65535, 2},
		{65536, 4},
		{1<<31 - 1, 4},
	}
	for _, c := range cases {
		require.Equal(t, c.width, narrowestSizeWidth(c.n), "n=%d", c.n)
	}
}

func TestPutVarSizeRoundTripsAtBoundaries(t *testing.T) {
	for _, n := range []int{0, 255, 256, 65535, 65536, 1<<31 - 1} {
		width := narrowestSizeWidth(n)
		buf := putVarSize(nil, width, n)
		require.Equal(t, width, len(buf), "n=%d", n)
		require.Equal(t, n, readVarSize(buf, width), "n=%d", n)
	}
}
