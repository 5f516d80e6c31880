package palette

import (
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/require"
)

func TestFromScaleIndexIsOctaveInvariant(t *testing.T) {
	require.Equal(t, FromScaleIndex(60), FromScaleIndex(72))
	require.NotEqual(t, FromScaleIndex(60), FromScaleIndex(61))
}

func TestNearestPicksClosestDeclaredColor(t *testing.T) {
	declared := []string{"#FF0000", "#00FF00", "#0000FF"}
	red, _ := colorful.Hex("#EE1111")
	require.Equal(t, 0, Nearest(declared, red))
}

func TestNearestReturnsMinusOneForEmptyPalette(t *testing.T) {
	red, _ := colorful.Hex("#FF0000")
	require.Equal(t, -1, Nearest(nil, red))
}

func TestResolveFallsBackToRawColorWithoutDeclaredPalette(t *testing.T) {
	c := FromScaleIndex(0)
	wantR, wantG, wantB := c.RGB255()
	r, g, b := Resolve(nil, c)
	require.Equal(t, wantR, r)
	require.Equal(t, wantG, g)
	require.Equal(t, wantB, b)
}

func TestResolveMatchesDeclaredPaletteEntry(t *testing.T) {
	declared := []string{"#112233", "#FFFFFF"}
	white, _ := colorful.Hex("#FEFEFE")
	r, g, b := Resolve(declared, white)
	require.Equal(t, uint8(0xFF), r)
	require.Equal(t, uint8(0xFF), g)
	require.Equal(t, uint8(0xFF), b)
}
