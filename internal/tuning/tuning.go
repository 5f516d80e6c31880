// Package tuning translates an incoming tuning tuple into a MOS and the
// lattice-coordinate-to-scale-index table the layout calculators read.
// Grounded on the Python original's tuning.py, which builds an
// "onscreen" affine from (mode_offset, stretch, skew) via three anchor
// correspondences and hands it to the scale-construction routine.
package tuning

import (
	"github.com/pitchgrid/mapper/internal/latticemos"
)

// Vector2 is a lattice coordinate, reused from latticemos for map keys.
type Vector2 = latticemos.Vector2

// Tuning is the upstream tuning tuple delivered over OSC.
type Tuning struct {
	Depth      int
	Mode       int
	RootFreq   float64
	Stretch    float64
	Skew       float64
	ModeOffset int
	Steps      int
}

const (
	maxMIDI  = 128
	rootMIDI = 60
)

// Result is the deterministic output of building a Tuning: the MOS (nil on
// fallback), the coord→index table, and whether the chromatic fallback was
// used.
type Result struct {
	MOS               *latticemos.MOS
	CoordToScaleIndex map[Vector2]int
	Chromatic         bool
}

// Build constructs the MOS and the coordinate→scale-index table for a
// tuning tuple. On MOS construction failure it falls back to a chromatic
// i→i mapping over [0, steps), per spec.md §7's TuningBuild failure
// policy — the caller still has a usable scale, laid out along a single
// lattice row (Y=0) so every CalculateMapping implementation can resolve
// it without a MOS.
func Build(t Tuning) Result {
	mos, err := latticemos.FromGenerator(t.Depth, t.Mode, t.Skew, t.Stretch)
	if err != nil {
		return chromaticFallback(t)
	}

	aff, err := buildOnscreenAffine(mos, t)
	if err != nil {
		return chromaticFallback(t)
	}

	scale := latticemos.FromAffine(aff, t.RootFreq, maxMIDI, rootMIDI)
	coordToIndex := make(map[Vector2]int, len(scale.Nodes))
	for _, n := range scale.Nodes {
		coordToIndex[n.NaturalCoord] = n.MIDINote
	}
	return Result{MOS: mos, CoordToScaleIndex: coordToIndex}
}

// chromaticFallback builds the identity i→i table spec.md §7 requires when
// MOS construction fails: one entry per step, indexed along (i, 0) so
// Isomorphic's translation-only identity M, StringLike's index lookup, and
// PianoLike's nil-MOS context can all resolve it the same way a real MOS's
// table would be resolved.
func chromaticFallback(t Tuning) Result {
	steps := t.Steps
	if steps <= 0 {
		steps = maxMIDI
	}
	coordToIndex := make(map[Vector2]int, steps)
	for i := 0; i < steps; i++ {
		coordToIndex[Vector2{X: i, Y: 0}] = i
	}
	return Result{Chromatic: true, CoordToScaleIndex: coordToIndex}
}

// buildOnscreenAffine anchors the lattice's origin, period, and generator
// vectors to pitch-space positions so that FromAffine's first output axis
// (its reading of pitch-in-octaves) sweeps both lattice axes jointly,
// rather than only the period axis. A direct transcription of the
// original's target_gen formula collapses to X = x/steps when skew is
// zero (its default), which only reaches multiples of `steps` in the
// output range — that is wrong for the degenerate depth=1 "chromatic" MOS,
// where the generator (0,1) must also advance pitch by one semitone per
// step for the table to cover every MIDI note rather than only every
// twelfth one. Anchoring the generator one step width (stretch/steps)
// above the origin on the pitch axis, plus skew*stretch, produces
// X = x + y/steps in the default (skew=0, stretch=1) case, giving full
// chromatic coverage; a non-zero skew adds skew*stretch per generator
// step on top of that one step width.
func buildOnscreenAffine(mos *latticemos.MOS, t Tuning) (latticemos.RealAffine, error) {
	steps := t.Steps
	if steps <= 0 {
		steps = mos.N
	}
	modeOffset := float64(t.ModeOffset)

	s0 := [2]float64{0, 0}
	s1 := [2]float64{float64(mos.Period.X), float64(mos.Period.Y)}
	s2 := [2]float64{float64(mos.Generator.X), float64(mos.Generator.Y)}

	t0 := [2]float64{0, 0.5 + modeOffset}
	t1 := [2]float64{t.Stretch, 0.5 + modeOffset}
	t2 := [2]float64{t.Skew*t.Stretch + t.Stretch/float64(steps), 1.5 + modeOffset}

	return latticemos.AffineFromThreeDots(s0, s1, s2, t0, t1, t2)
}
