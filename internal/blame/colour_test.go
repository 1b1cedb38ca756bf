package blame

import (
	"regexp"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/require"
)

func TestUniqueColours(t *testing.T) {
	hex := regexp.MustCompile(`^#[0-9a-f]{6}$`)

	colours := firstColours(3000)
	seen := make(map[string]struct{}, len(colours))
	for _, c := range colours {
		require.Regexp(t, hex, c)
		_, dup := seen[c]
		require.False(t, dup, "duplicate colour %s", c)
		seen[c] = struct{}{}
	}

	require.Equal(t, colours[:10], firstColours(10), "every iteration starts over")
}

func TestUniqueColoursAreSpreadOut(t *testing.T) {
	colours := firstColours(4)

	var hues []float64
	for _, c := range colours {
		col, err := colorful.Hex(c)
		require.NoError(t, err)
		h, _, _ := col.Hsl()
		hues = append(hues, h)
	}

	require.InDelta(t, 0, hues[0], 1)
	require.InDelta(t, 180, hues[1], 1)
	require.InDelta(t, 90, hues[2], 1)
	require.InDelta(t, 270, hues[3], 1)
}

func TestRadicalInverse(t *testing.T) {
	for n, want := range []float64{0, 0.5, 0.25, 0.75, 0.125, 0.625, 0.375, 0.875} {
		require.InDelta(t, want, radicalInverse(uint64(n)), 1e-12)
	}
}

func TestAssignColours(t *testing.T) {
	segments := []PathSegment{
		{User: "bob"},
		{User: "alice"},
		{User: "bob"},
		{User: "carol"},
	}

	users := assignColours(segments)

	colours := firstColours(3)
	require.Equal(t, map[string]UserInfo{
		"bob":   {Colour: colours[0]},
		"alice": {Colour: colours[1]},
		"carol": {Colour: colours[2]},
	}, users)
	require.Empty(t, assignColours(nil))
}
