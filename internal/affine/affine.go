// Package affine implements integer affine transforms over the 2-D
// lattice coordinate space: M(v) = A*v + t, with A a 2x2 integer matrix
// and t an integer translation. The isomorphic layout holds exactly one
// of these as its current state; it must stay unimodular (det A = ±1)
// for every value the layout ever holds.
package affine

import "fmt"

// Vector2 is an integer lattice coordinate or displacement.
type Vector2 struct {
	X, Y int
}

// Transform is M(v) = A*v + t represented as six integers (a,b,c,d,tx,ty):
//
//	A = | a b |   t = | tx |
//	    | c d |       | ty |
type Transform struct {
	A, B, C, D   int
	Tx, Ty       int
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1, B: 0, C: 0, D: 1, Tx: 0, Ty: 0}
}

// Translation returns a pure-translation transform.
func Translation(tx, ty int) Transform {
	return Transform{A: 1, B: 0, C: 0, D: 1, Tx: tx, Ty: ty}
}

// Apply computes M(v).
func (m Transform) Apply(v Vector2) Vector2 {
	return Vector2{
		X: m.A*v.X + m.B*v.Y + m.Tx,
		Y: m.C*v.X + m.D*v.Y + m.Ty,
	}
}

// Det returns det(A).
func (m Transform) Det() int {
	return m.A*m.D - m.B*m.C
}

// Unimodular reports whether det(A) = ±1, i.e. M is invertible over the
// integers (invariant 1 of spec.md §3).
func (m Transform) Unimodular() bool {
	d := m.Det()
	return d == 1 || d == -1
}

// ErrNotInvertible is returned by Invert when det(A) is not ±1.
type ErrNotInvertible struct {
	Det int
}

func (e ErrNotInvertible) Error() string {
	return fmt.Sprintf("affine: transform not invertible over the integers (det=%d)", e.Det)
}

// Invert computes M^-1 exactly, which is only an integer transform when
// det(A) = ±1. Callers must reject any edit that produces a non-unimodular
// transform rather than keep it (spec.md §7, MapInvert).
func (m Transform) Invert() (Transform, error) {
	det := m.Det()
	if det != 1 && det != -1 {
		return Transform{}, ErrNotInvertible{Det: det}
	}
	// For a unimodular 2x2 matrix, A^-1 = (1/det) * | d -b |
	//                                               | -c a |
	// and since det is ±1, every entry of det*A^-1 is already an integer.
	ia := det * m.D
	ib := det * -m.B
	ic := det * -m.C
	id := det * m.A
	// t' = -A^-1 * t
	itx := -(ia*m.Tx + ib*m.Ty)
	ity := -(ic*m.Tx + id*m.Ty)
	return Transform{A: ia, B: ib, C: ic, D: id, Tx: itx, Ty: ity}, nil
}

// Linear returns the transform with the same linear part (A) but with
// the translation zeroed out.
func (m Transform) Linear() Transform {
	return Transform{A: m.A, B: m.B, C: m.C, D: m.D}
}

// TranslationOnly returns the transform with the linear part set to
// identity but the original translation preserved.
func (m Transform) TranslationOnly() Transform {
	return Transform{A: 1, B: 0, C: 0, D: 1, Tx: m.Tx, Ty: m.Ty}
}

// Compose returns the transform equivalent to applying n first, then m:
// (m ∘ n)(v) = m(n(v)).
func Compose(m, n Transform) Transform {
	return Transform{
		A:  m.A*n.A + m.B*n.C,
		B:  m.A*n.B + m.B*n.D,
		C:  m.C*n.A + m.D*n.C,
		D:  m.C*n.B + m.D*n.D,
		Tx: m.A*n.Tx + m.B*n.Ty + m.Tx,
		Ty: m.C*n.Tx + m.D*n.Ty + m.Ty,
	}
}

// ComposeThroughRoot implements spec.md §4.3's isomorphic edit rule: the
// new transform is t_only(M) . D . a_only(M), i.e. the delta D is
// sandwiched between M's translation and M's linear part, so edits
// rotate/shear/shift around the root rather than the coordinate origin.
func ComposeThroughRoot(m, delta Transform) Transform {
	return Compose(m.TranslationOnly(), Compose(delta, m.Linear()))
}

// FitThreePoints solves for the affine transform M such that
// M(origin) = target0, M(p1) = target1, M(p2) = target2, rounds every
// entry to the nearest integer, and reports whether the rounded linear
// part is unimodular. Used to seed or re-anchor the isomorphic transform
// from device-root/period/generator anchors (spec.md §4.3's "three-point
// integer-affine fit"); on a non-unimodular fit the caller keeps its
// previous transform (identity+translation on first load) per spec.md §7
// MapInvert.
func FitThreePoints(origin, p1, p2, target0, target1, target2 Vector2) (Transform, bool) {
	// Basis matrix B = [p1-origin | p2-origin]; solve A*B = [target1-target0 | target2-target0]
	// over the reals, then round.
	bx1, by1 := float64(p1.X-origin.X), float64(p1.Y-origin.Y)
	bx2, by2 := float64(p2.X-origin.X), float64(p2.Y-origin.Y)
	det := bx1*by2 - bx2*by1
	if det == 0 {
		return Transform{}, false
	}

	rx1, ry1 := float64(target1.X-target0.X), float64(target1.Y-target0.Y)
	rx2, ry2 := float64(target2.X-target0.X), float64(target2.Y-target0.Y)

	// A = R * B^-1, with B^-1 = (1/det) * | by2 -bx2 |
	//                                     | -by1 bx1 |
	a := (rx1*by2 - rx2*by1) / det
	b := (rx2*bx1 - rx1*bx2) / det
	c := (ry1*by2 - ry2*by1) / det
	d := (ry2*bx1 - ry1*bx2) / det

	ia, ib, ic, id := roundInt(a), roundInt(b), roundInt(c), roundInt(d)
	tx := target0.X - (ia*origin.X + ib*origin.Y)
	ty := target0.Y - (ic*origin.X + id*origin.Y)

	t := Transform{A: ia, B: ib, C: ic, D: id, Tx: tx, Ty: ty}
	return t, t.Unimodular()
}

func roundInt(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}
