package layout

import (
	"testing"

	"github.com/pitchgrid/mapper/internal/affine"
	"github.com/stretchr/testify/require"
)

func TestIsomorphicShiftRoundTrip(t *testing.T) {
	iso := NewIsomorphicIdentity(Vector2{X: 2, Y: 3})
	original := iso.M

	require.NoError(t, iso.ApplyTransformation(ShiftLeft, GeometryRect, 0))
	require.NoError(t, iso.ApplyTransformation(ShiftRight, GeometryRect, 0))
	require.Equal(t, original, iso.M)
}

func TestIsomorphicReflectHorizontalTwiceIsIdentity(t *testing.T) {
	iso := NewIsomorphicIdentity(Vector2{})
	original := iso.M

	require.NoError(t, iso.ApplyTransformation(ReflectHorizontal, GeometryRect, 0))
	require.NoError(t, iso.ApplyTransformation(ReflectHorizontal, GeometryRect, 0))
	require.Equal(t, original, iso.M)
}

func TestIsomorphicRotateLeftFourTimesIsIdentityRect(t *testing.T) {
	iso := NewIsomorphicIdentity(Vector2{X: 1, Y: 1})
	original := iso.M

	for i := 0; i < 4; i++ {
		require.NoError(t, iso.ApplyTransformation(RotateLeft, GeometryRect, 0))
	}
	require.Equal(t, original, iso.M)
}

func TestIsomorphicHexRotatePairIsInverse(t *testing.T) {
	iso := NewIsomorphicIdentity(Vector2{})
	original := iso.M

	require.NoError(t, iso.ApplyTransformation(RotateLeft, GeometryHex, 0))
	require.NoError(t, iso.ApplyTransformation(RotateRight, GeometryHex, 0))
	require.Equal(t, original, iso.M)
}

func TestIsomorphicRejectsEditFromNonUnimodularState(t *testing.T) {
	// A base transform with det(A)=2 can never be repaired by composing a
	// unimodular delta (det multiplies), so any edit must be rejected and
	// M must be left exactly as it was (MapInvert, spec.md §7).
	iso := &Isomorphic{M: affine.Transform{A: 2, B: 0, C: 0, D: 1}}
	before := iso.M
	err := iso.ApplyTransformation(ShiftLeft, GeometryRect, 0)
	require.Error(t, err)
	require.Equal(t, before, iso.M)
}

func TestIsomorphicCalculateMappingChromaticGrid(t *testing.T) {
	iso := NewIsomorphicIdentity(Vector2{})
	coordToIndex := make(map[Vector2]int)
	for i := 0; i < 128; i++ {
		coordToIndex[Vector2{X: i % 16, Y: i / 16}] = i
	}
	var pads []Pad
	for ly := 0; ly < 8; ly++ {
		for lx := 0; lx < 16; lx++ {
			pads = append(pads, Pad{LX: lx, LY: ly})
		}
	}
	result := iso.CalculateMapping(pads, 12, nil, coordToIndex)
	require.Equal(t, 128, len(result))
	require.Equal(t, 0, result[Pad{LX: 0, LY: 0}])
	require.Equal(t, 127, result[Pad{LX: 15, LY: 7}])
}

func TestStringLikeScenario(t *testing.T) {
	s := NewStringLike(Vector2{}, 5)
	coordToIndex := map[Vector2]int{{X: 73, Y: 0}: 73}
	result := s.CalculateMapping([]Pad{{LX: 3, LY: 2}}, 12, nil, coordToIndex)
	require.Equal(t, 73, result[Pad{LX: 3, LY: 2}])
}

func TestStringLikeOutOfRangeIsAbsent(t *testing.T) {
	s := NewStringLike(Vector2{}, 20)
	coordToIndex := map[Vector2]int{{X: 200, Y: 0}: 200 % 128}
	result := s.CalculateMapping([]Pad{{LX: 0, LY: 10}}, 12, nil, coordToIndex)
	_, ok := result[Pad{LX: 0, LY: 10}]
	require.False(t, ok)
}

func TestStringLikeSkewAndReflectTransforms(t *testing.T) {
	s := NewStringLike(Vector2{}, 5)
	require.NoError(t, s.ApplyTransformation(SkewRight, GeometryRect, 0))
	require.Equal(t, 6, s.RowOffset)
	require.NoError(t, s.ApplyTransformation(ReflectHorizontal, GeometryRect, 0))
	require.True(t, s.FlipH)
}

func TestPianoLikeNaturalAndAccidentalRows(t *testing.T) {
	p := NewPianoLike(Vector2{}, 2)
	p.RowOffset = 7

	pads := []Pad{{LX: 0, LY: 0}, {LX: 0, LY: 1}}
	ctx := mosContext{lVec: Vector2{X: 1, Y: 0}, a0: 5, n: 7}

	natural, ok := p.latticeCoord(pads[0], 0, 2, ctx)
	require.True(t, ok)
	accidental, ok := p.latticeCoord(pads[1], 0, 2, ctx)
	require.True(t, ok)
	require.NotEqual(t, natural, accidental)
}

func TestPianoLikeRemainderRowsUnmapped(t *testing.T) {
	p := NewPianoLike(Vector2{}, 2)
	ctx := mosContext{lVec: Vector2{X: 1, Y: 0}, a0: 5, n: 7}
	// totalRows=5, stripWidth=2 -> 2 complete strips covering rows 0..3;
	// row 4 is the remainder and must be unmapped.
	_, ok := p.latticeCoord(Pad{LX: 0, LY: 4}, 0, 5, ctx)
	require.False(t, ok)
}

func TestPianoLikeStripWidthClampRespectsControllerRows(t *testing.T) {
	p := NewPianoLike(Vector2{}, 1)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.ApplyTransformation(IncreaseStripWidth, GeometryRect, 4))
	}
	require.Equal(t, 4, p.StripWidth)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.ApplyTransformation(DecreaseStripWidth, GeometryRect, 4))
	}
	require.Equal(t, 1, p.StripWidth)
}
