package layout

import (
	"github.com/pitchgrid/mapper/internal/affine"
	"github.com/pitchgrid/mapper/internal/latticemos"
)

// Isomorphic holds a single unimodular integer affine transform mapping
// lattice→logical coordinates (spec.md §3/§4.3). Grounded in shape on the
// Python original's layouts/isomorphic.py, whose own calculate_mapping is
// an admitted placeholder; the affine/det algorithm here is spec.md's own.
type Isomorphic struct {
	M affine.Transform
}

// NewIsomorphicIdentity returns an Isomorphic layout with M set to a pure
// translation to the given device root — the state held before any tuning
// has been seen.
func NewIsomorphicIdentity(root Vector2) *Isomorphic {
	return &Isomorphic{M: affine.Translation(root.X, root.Y)}
}

// InitializeFromTuning performs the first-tuning three-point fit: origin
// maps to the device root, the period vector to root+(1,2), the generator
// vector to root+(1,1) (spec.md §4.3 "Initialization on first tuning").
// On a non-unimodular fit, M is left unchanged (kept at identity+translation).
func (iso *Isomorphic) InitializeFromTuning(mos *latticemos.MOS, deviceRoot Vector2) {
	if mos == nil {
		return
	}
	origin := Vector2{X: 0, Y: 0}
	target0 := deviceRoot
	target1 := Vector2{X: deviceRoot.X + 1, Y: deviceRoot.Y + 2}
	target2 := Vector2{X: deviceRoot.X + 1, Y: deviceRoot.Y + 1}
	if m, ok := affine.FitThreePoints(origin, mos.Period, mos.Generator, target0, target1, target2); ok {
		iso.M = m
	}
}

// RetuneWithoutEdit recomputes M on a period/generator change while
// preserving the user's visible orientation: the three device targets are
// anchored to where the *current* M maps (0,0), period, and generator
// (spec.md §4.3 "Retune without layout edit").
func (iso *Isomorphic) RetuneWithoutEdit(mos *latticemos.MOS) {
	if mos == nil {
		return
	}
	origin := Vector2{X: 0, Y: 0}
	target0 := iso.M.Apply(origin)
	target1 := iso.M.Apply(mos.Period)
	target2 := iso.M.Apply(mos.Generator)
	if m, ok := affine.FitThreePoints(origin, mos.Period, mos.Generator, target0, target1, target2); ok {
		iso.M = m
	}
}

func (iso *Isomorphic) Kind() Kind { return KindIsomorphic }

func (iso *Isomorphic) CalculateMapping(pads []Pad, steps int, mos *latticemos.MOS, coordToIndex map[Vector2]int) map[Pad]int {
	result := make(map[Pad]int, len(pads))
	inv, err := iso.M.Invert()
	if err != nil {
		return result
	}
	for _, pad := range pads {
		c := inv.Apply(Vector2{X: pad.LX, Y: pad.LY})
		if idx, ok := coordToIndex[c]; ok {
			result[pad] = idx
		}
	}
	return result
}

func (iso *Isomorphic) GetLatticeCoord(pad Pad, _ map[Vector2]int) (Vector2, bool) {
	inv, err := iso.M.Invert()
	if err != nil {
		return Vector2{}, false
	}
	return inv.Apply(Vector2{X: pad.LX, Y: pad.LY}), true
}

// ApplyTransformation composes the selected delta between M's translation
// and linear part (t_only(M) . D . a_only(M)); a delta that would make M
// non-unimodular is rejected and M is left unchanged (MapInvert, spec.md §7).
func (iso *Isomorphic) ApplyTransformation(kind TransformKind, geometry Geometry, _ int) error {
	delta, ok := isomorphicDelta(kind, geometry)
	if !ok {
		return ErrUnsupportedTransform{Kind: kind, Variant: KindIsomorphic}
	}
	candidate := affine.ComposeThroughRoot(iso.M, delta)
	if !candidate.Unimodular() {
		return affine.ErrNotInvertible{Det: candidate.Det()}
	}
	iso.M = candidate
	return nil
}
