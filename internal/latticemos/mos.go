// Package latticemos plays the role spec.md §1 assigns to "a MOS library":
// it supplies Moment-of-Symmetry lattice vectors and scale-node
// enumeration, so the rest of the mapper never computes MOS theory from
// scratch. It is grounded on how the Python original's tuning.py drives
// the scalatrix package (MOS.fromG, affineFromThreeDots, Scale.fromAffine,
// scale.getNodes()); since no such library exists in Go, this package is
// the clean-room stand-in for that boundary.
package latticemos

import (
	"fmt"
	"math"

	"github.com/pitchgrid/mapper/internal/affine"
)

// Vector2 is a 2-D lattice vector with integer coordinates.
type Vector2 = affine.Vector2

// MOS describes a two-step-size scale generated from a period and a
// generator, built by repeated generation (Zarlino/Bjorklund-style
// "depth" construction): depth 1 is the trivial 1-step scale, and each
// additional depth splits the larger of the two current step sizes by
// reintroducing the generator, yielding the classic nL+nS structure.
type MOS struct {
	Depth int
	Mode  int

	// N is total step count (nL+nS), NL/NS are counts of large/small steps.
	N, NL, NS int

	// Period and Generator are the two lattice basis vectors: Period is
	// (a, b) as in spec.md §3, Generator is v_gen.
	Period    Vector2
	Generator Vector2

	// LVec is the large-step lattice vector and A0 the number of large
	// steps folded into the current generation; both feed the PianoLike
	// accidental-sign and neutral-row formulas (spec.md §4.3). Derived
	// from the same continuant construction as Period/Generator, not
	// tracked independently by any upstream MOS theory library.
	LVec Vector2
	A0   int

	// Skew and Stretch are carried through for onward affine construction;
	// they do not change the MOS structure itself.
	Skew, Stretch float64
}

// ErrInvalidDepth is returned when depth < 1.
var ErrInvalidDepth = fmt.Errorf("latticemos: depth must be >= 1")

// FromGenerator builds the MOS of the given depth/mode/skew/stretch,
// mirroring the original's sx.MOS.fromG(depth, mode, skew, stretch, 1).
// Depth 1 always yields the trivial period-only structure (nL=1, nS=0);
// each further depth generates the next Fibonacci-like MOS by folding the
// generator into the previous period.
func FromGenerator(depth, mode int, skew, stretch float64) (*MOS, error) {
	if depth < 1 {
		return nil, ErrInvalidDepth
	}

	// Continuant-style generation: start with period = (1,0) (one large
	// step spanning the whole period) and generator = (0,1). Each
	// generation step reduces the larger multiplicity by folding it
	// against the smaller, the standard continued-fraction construction
	// of a MOS scale's step word.
	nL, nS := 1, 0
	period := Vector2{X: 1, Y: 0}
	generator := Vector2{X: 0, Y: 1}

	for d := 1; d < depth; d++ {
		// Fold the generator into the period once per depth step
		// (continued-fraction expansion with all partial quotients equal
		// to 1, the Fibonacci/golden MOS family): step counts run 1L0s,
		// 1L1s, 2L1s, 3L2s, 5L3s, … for depth 1, 2, 3, 4, 5, …. Mode is
		// recorded on the result but does not change the step structure.
		newPeriod := Vector2{X: period.X + generator.X, Y: period.Y + generator.Y}
		period, generator = generator, newPeriod
		nL, nS = nS+nL, nL
	}

	// The vector with the larger step count at the end of generation is
	// the large step; A0 is its multiplicity.
	lVec := generator
	a0 := nS
	if nL >= nS {
		lVec = period
		a0 = nL
	}

	return &MOS{
		Depth: depth, Mode: mode,
		N: nL + nS, NL: nL, NS: nS,
		Period: period, Generator: generator,
		LVec: lVec, A0: a0,
		Skew: skew, Stretch: stretch,
	}, nil
}

// RealAffine is a 2-D real-valued affine map, as solved by
// AffineFromThreeDots from three source points and three target points,
// mirroring the original's sx.affineFromThreeDots used to place the MOS
// lattice into the "onscreen" frequency/pitch-class space tuning.py builds
// before handing it to Scale.fromAffine.
type RealAffine struct {
	A, B, C, D, Tx, Ty float64
}

func (m RealAffine) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.Tx, m.C*x + m.D*y + m.Ty
}

// AffineFromThreeDots returns the unique affine transform with
// f(s0)=t0, f(s1)=t1, f(s2)=t2.
func AffineFromThreeDots(s0, s1, s2 [2]float64, t0, t1, t2 [2]float64) (RealAffine, error) {
	bx1, by1 := s1[0]-s0[0], s1[1]-s0[1]
	bx2, by2 := s2[0]-s0[0], s2[1]-s0[1]
	det := bx1*by2 - bx2*by1
	if math.Abs(det) < 1e-12 {
		return RealAffine{}, fmt.Errorf("latticemos: degenerate three-point fit")
	}
	rx1, ry1 := t1[0]-t0[0], t1[1]-t0[1]
	rx2, ry2 := t2[0]-t0[0], t2[1]-t0[1]

	a := (rx1*by2 - rx2*by1) / det
	b := (rx2*bx1 - rx1*bx2) / det
	c := (ry1*by2 - ry2*by1) / det
	d := (ry2*bx1 - ry1*bx2) / det
	tx := t0[0] - (a*s0[0] + b*s0[1])
	ty := t0[1] - (c*s0[0] + d*s0[1])
	return RealAffine{A: a, B: b, C: c, D: d, Tx: tx, Ty: ty}, nil
}

// ScaleNode is one enumerated node of a built Scale: a MIDI-range pitch
// at a specific natural lattice coordinate.
type ScaleNode struct {
	NaturalCoord Vector2
	MIDINote     int
	FreqHz       float64
}

// Scale is the enumerated set of lattice nodes covering a MIDI range,
// built from a RealAffine placement of the lattice plus a root frequency.
type Scale struct {
	Nodes []ScaleNode
}

// FromAffine enumerates one lattice point per MIDI note in [0, maxMIDI):
// the affine's first output axis gives the pitch, in octaves, relative to
// rootFreqHz; among every lattice point landing on the same note, the one
// closest to the lattice origin is kept as that note's natural coordinate
// (ties in a MOS's second "voicing" axis are otherwise unresolvable
// without the original scalatrix source, so nearest-to-origin is the
// simplest deterministic rule that keeps the mapping stable across
// re-tunings with the same parameters). Mirrors
// sx.Scale.fromAffine(affine, root_freq, max_midi, root_midi).
func FromAffine(aff RealAffine, rootFreqHz float64, maxMIDI, rootMIDI int) *Scale {
	const window = 64 // lattice radius scanned around the origin
	type candidate struct {
		coord Vector2
		norm  int
	}
	byNote := make(map[int]candidate)

	for x := -window; x <= window; x++ {
		for y := -window; y <= window; y++ {
			px, _ := aff.Apply(float64(x), float64(y))
			note := rootMIDI + roundToInt(px*12)
			if note < 0 || note >= maxMIDI {
				continue
			}
			norm := absInt(x) + absInt(y)
			if cur, ok := byNote[note]; !ok || norm < cur.norm {
				byNote[note] = candidate{coord: Vector2{X: x, Y: y}, norm: norm}
			}
		}
	}

	nodes := make([]ScaleNode, 0, len(byNote))
	for note, c := range byNote {
		px, _ := aff.Apply(float64(c.coord.X), float64(c.coord.Y))
		nodes = append(nodes, ScaleNode{
			NaturalCoord: c.coord,
			MIDINote:     note,
			FreqHz:       rootFreqHz * math.Pow(2, px),
		})
	}
	sortNodesByNote(nodes)
	return &Scale{Nodes: nodes}
}

func sortNodesByNote(nodes []ScaleNode) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].MIDINote < nodes[j-1].MIDINote; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func roundToInt(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}
