package layout

import "github.com/pitchgrid/mapper/internal/affine"

// isomorphicDelta looks up the unimodular delta matrix for a user edit,
// per spec.md §4.3's rect/hex delta table.
func isomorphicDelta(kind TransformKind, geometry Geometry) (affine.Transform, bool) {
	if geometry == GeometryHex {
		if d, ok := hexDeltas[kind]; ok {
			return d, true
		}
		return affine.Transform{}, false
	}
	if d, ok := rectDeltas[kind]; ok {
		return d, true
	}
	return affine.Transform{}, false
}

var rectDeltas = map[TransformKind]affine.Transform{
	ShiftLeft:  {A: 1, B: 0, C: 0, D: 1, Tx: -1, Ty: 0},
	ShiftRight: {A: 1, B: 0, C: 0, D: 1, Tx: 1, Ty: 0},
	ShiftUp:    {A: 1, B: 0, C: 0, D: 1, Tx: 0, Ty: 1},
	ShiftDown:  {A: 1, B: 0, C: 0, D: 1, Tx: 0, Ty: -1},

	SkewLeft:  {A: 1, B: -1, C: 0, D: 1, Tx: 0, Ty: 0},
	SkewRight: {A: 1, B: 1, C: 0, D: 1, Tx: 0, Ty: 0},

	RotateLeft:  {A: 0, B: -1, C: 1, D: 0, Tx: 0, Ty: 0},
	RotateRight: {A: 0, B: 1, C: -1, D: 0, Tx: 0, Ty: 0},

	ReflectHorizontal: {A: 1, B: 0, C: 0, D: -1, Tx: 0, Ty: 0},
	ReflectVertical:   {A: -1, B: 0, C: 0, D: 1, Tx: 0, Ty: 0},
}

var hexDeltas = map[TransformKind]affine.Transform{
	ShiftLeft:  {A: 1, B: 0, C: 0, D: 1, Tx: -1, Ty: 0},
	ShiftRight: {A: 1, B: 0, C: 0, D: 1, Tx: 1, Ty: 0},

	ShiftUpright:  {A: 1, B: 0, C: 0, D: 1, Tx: 0, Ty: 1},
	ShiftDownleft: {A: 1, B: 0, C: 0, D: 1, Tx: 0, Ty: -1},

	ShiftUpleft:    {A: 1, B: 0, C: 0, D: 1, Tx: -1, Ty: 1},
	ShiftDownright: {A: 1, B: 0, C: 0, D: 1, Tx: 1, Ty: -1},

	SkewUpright:  {A: 1, B: 0, C: -1, D: 1, Tx: 0, Ty: 0},
	SkewDownleft: {A: 1, B: 0, C: 1, D: 1, Tx: 0, Ty: 0},

	RotateLeft:  {A: 0, B: -1, C: 1, D: 1, Tx: 0, Ty: 0},
	RotateRight: {A: 1, B: 1, C: -1, D: 0, Tx: 0, Ty: 0},

	ReflectX:  {A: 1, B: 1, C: 0, D: -1, Tx: 0, Ty: 0},
	ReflectY:  {A: -1, B: 0, C: 1, D: 1, Tx: 0, Ty: 0},
	ReflectXY: {A: 0, B: -1, C: -1, D: 0, Tx: 0, Ty: 0},
}
