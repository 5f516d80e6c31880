// Package layout implements the three pad-to-scale-index calculators:
// Isomorphic, StringLike, and PianoLike. Each maps a controller's declared
// pads through to a lattice coordinate and then (via the currently active
// tuning's coord→index table) to a scale index.
//
// This is a generalization of the Python original's layouts/base.py +
// layouts/{isomorphic,string_like,piano_like}.py into a single tagged
// variant (Design Notes §9): a shared Layout interface dispatched
// explicitly by kind, rather than an inheritance hierarchy.
package layout

import (
	"fmt"

	"github.com/pitchgrid/mapper/internal/affine"
	"github.com/pitchgrid/mapper/internal/latticemos"
)

// Vector2 is reused from the affine package: a lattice coordinate.
type Vector2 = affine.Vector2

// Pad is a controller surface element addressed by logical coordinate.
type Pad struct {
	LX, LY int
}

// Kind identifies which of the three calculator variants a Layout is.
type Kind int

const (
	KindIsomorphic Kind = iota
	KindStringLike
	KindPianoLike
)

func (k Kind) String() string {
	switch k {
	case KindIsomorphic:
		return "isomorphic"
	case KindStringLike:
		return "string_like"
	case KindPianoLike:
		return "piano_like"
	default:
		return "unknown"
	}
}

// Geometry distinguishes rectangular from hex controllers, which select
// different delta tables for isomorphic user edits.
type Geometry int

const (
	GeometryRect Geometry = iota
	GeometryHex
)

// TransformKind names a user-requested isomorphic/stringlike/pianolike edit.
type TransformKind string

const (
	ShiftLeft     TransformKind = "shift_left"
	ShiftRight    TransformKind = "shift_right"
	ShiftUp       TransformKind = "shift_up"
	ShiftDown     TransformKind = "shift_down"
	ShiftUpright  TransformKind = "shift_upright"
	ShiftDownleft TransformKind = "shift_downleft"
	ShiftUpleft   TransformKind = "shift_upleft"
	ShiftDownright TransformKind = "shift_downright"
	SkewLeft      TransformKind = "skew_left"
	SkewRight     TransformKind = "skew_right"
	SkewUpright   TransformKind = "skew_upright"
	SkewDownleft  TransformKind = "skew_downleft"
	RotateLeft    TransformKind = "rotate_left"
	RotateRight   TransformKind = "rotate_right"
	ReflectHorizontal TransformKind = "reflect_horizontal"
	ReflectVertical   TransformKind = "reflect_vertical"
	ReflectX      TransformKind = "reflect_x"
	ReflectY      TransformKind = "reflect_y"
	ReflectXY     TransformKind = "reflect_xy"
	IncreaseStripWidth TransformKind = "increase_strip_width"
	DecreaseStripWidth TransformKind = "decrease_strip_width"
	ScaleRowUp    TransformKind = "scale_row_up"
	ScaleRowDown  TransformKind = "scale_row_down"
)

// ErrUnsupportedTransform is returned when a TransformKind doesn't apply
// to the receiving layout variant or geometry.
type ErrUnsupportedTransform struct {
	Kind     TransformKind
	Variant  Kind
}

func (e ErrUnsupportedTransform) Error() string {
	return fmt.Sprintf("layout: transform %q not supported by %s layout", e.Kind, e.Variant)
}

// Layout is the shared capability set every variant implements (spec.md
// Design Notes §9: dispatch explicitly, don't share fields across variants
// beyond the root coordinate).
type Layout interface {
	Kind() Kind

	// CalculateMapping builds pad_to_index for every declared pad, given
	// the active tuning's MOS/coord→index table, mirroring spec.md §4.3's
	// calculate_mapping(pads, scale_degrees, steps, mos, coord_to_scale_index).
	CalculateMapping(pads []Pad, steps int, mos *latticemos.MOS, coordToIndex map[Vector2]int) map[Pad]int

	// GetLatticeCoord resolves a single pad to its lattice coordinate
	// under the current layout state. Isomorphic and PianoLike report the
	// coordinate whether or not it is populated in coordToIndex; StringLike
	// finds it by reverse lookup, so it reports only populated indices.
	GetLatticeCoord(pad Pad, coordToIndex map[Vector2]int) (Vector2, bool)

	// ApplyTransformation mutates the layout in place per a named user
	// edit; MapInvert-class failures leave the layout unchanged and return
	// an error (spec.md §7).
	ApplyTransformation(kind TransformKind, geometry Geometry, controllerRows int) error
}

// indexToCoord inverts a coord→index table. latticemos.Scale guarantees at
// most one natural coordinate per index, so this is a true inverse.
func indexToCoord(coordToIndex map[Vector2]int) map[int]Vector2 {
	out := make(map[int]Vector2, len(coordToIndex))
	for c, idx := range coordToIndex {
		out[idx] = c
	}
	return out
}

// mosContext carries the MOS fields the PianoLike formula needs. It is
// derived from the mos argument on every CalculateMapping call, since
// PianoLike's formula (unlike Isomorphic's and StringLike's) reaches into
// MOS-specific structure.
type mosContext struct {
	lVec Vector2
	a0   int
	n    int
}

func contextFromMOS(mos *latticemos.MOS) mosContext {
	if mos == nil {
		return mosContext{lVec: Vector2{X: 1, Y: 0}, a0: 1, n: 1}
	}
	return mosContext{lVec: mos.LVec, a0: mos.A0, n: mos.N}
}
