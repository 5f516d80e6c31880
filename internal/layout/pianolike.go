package layout

import "github.com/pitchgrid/mapper/internal/latticemos"

// PianoLike partitions rows top-to-bottom into fixed-width "piano strips",
// each behaving as one natural-plus-accidental keyboard (spec.md §3/§4.3).
// Grounded in shape on the Python original's layouts/piano_like.py.
type PianoLike struct {
	RootX, RootY    int
	StripWidth      int
	ScaleRowIndex   int
	RowOffset       int
}

func NewPianoLike(root Vector2, stripWidth int) *PianoLike {
	return &PianoLike{RootX: root.X, RootY: root.Y, StripWidth: stripWidth}
}

func (p *PianoLike) Kind() Kind { return KindPianoLike }

// latticeCoord implements spec.md §4.3's PianoLike formula. minY and
// totalRows are derived from the declared pad set, since the contract
// carries no separate controller-geometry argument.
func (p *PianoLike) latticeCoord(pad Pad, minY, totalRows int, ctx mosContext) (Vector2, bool) {
	if p.StripWidth <= 0 {
		return Vector2{}, false
	}
	numCompleteStrips := totalRows / p.StripWidth

	yFromBottom := pad.LY - minY
	if yFromBottom < 0 || yFromBottom >= numCompleteStrips*p.StripWidth {
		return Vector2{}, false
	}

	strip := yFromBottom / p.StripWidth
	yInStrip := (yFromBottom % p.StripWidth) - p.ScaleRowIndex
	scaleDegree := (pad.LX - p.RootX) + strip*p.RowOffset

	accidentalSign := -1
	if ctx.lVec.X == 1 {
		accidentalSign = 1
	}
	accidental := accidentalSign * yInStrip

	neutralMode := ctx.n - 2
	if ctx.lVec.X == 1 {
		neutralMode = 1
	}

	n := ctx.n
	if n == 0 {
		n = 1
	}
	q := floorDiv(neutralMode-ctx.a0*scaleDegree, n)

	cx := accidental - q
	cy := scaleDegree - cx
	return Vector2{X: cx, Y: cy}, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func padRowBounds(pads []Pad) (minY, totalRows int) {
	if len(pads) == 0 {
		return 0, 0
	}
	minY, maxY := pads[0].LY, pads[0].LY
	for _, p := range pads[1:] {
		if p.LY < minY {
			minY = p.LY
		}
		if p.LY > maxY {
			maxY = p.LY
		}
	}
	return minY, maxY - minY + 1
}

func (p *PianoLike) CalculateMapping(pads []Pad, _ int, mos *latticemos.MOS, coordToIndex map[Vector2]int) map[Pad]int {
	ctx := contextFromMOS(mos)
	minY, totalRows := padRowBounds(pads)
	result := make(map[Pad]int, len(pads))
	for _, pad := range pads {
		c, ok := p.latticeCoord(pad, minY, totalRows, ctx)
		if !ok {
			continue
		}
		if idx, ok := coordToIndex[c]; ok {
			result[pad] = idx
		}
	}
	return result
}

func (p *PianoLike) GetLatticeCoord(pad Pad, coordToIndex map[Vector2]int) (Vector2, bool) {
	// GetLatticeCoord has no pad-set context of its own; callers that need
	// strip geometry should go through CalculateMapping, which is how the
	// coordinator always uses PianoLike in practice. This single-pad form
	// degenerates to treating the pad as if it alone defines the strip.
	return p.latticeCoord(pad, pad.LY, p.StripWidth, contextFromMOS(nil))
}

func (p *PianoLike) ApplyTransformation(kind TransformKind, _ Geometry, controllerRows int) error {
	switch kind {
	case ShiftLeft:
		p.RootX--
	case ShiftRight:
		p.RootX++
	case ShiftUp:
		p.RootY++
	case ShiftDown:
		p.RootY--
	case SkewLeft:
		p.RowOffset--
	case SkewRight:
		p.RowOffset++
	case IncreaseStripWidth:
		if p.StripWidth < controllerRows {
			p.StripWidth++
		}
	case DecreaseStripWidth:
		if p.StripWidth > 1 {
			p.StripWidth--
		}
	case ScaleRowUp:
		if p.ScaleRowIndex < p.StripWidth-1 {
			p.ScaleRowIndex++
		}
	case ScaleRowDown:
		if p.ScaleRowIndex > 0 {
			p.ScaleRowIndex--
		}
	default:
		return ErrUnsupportedTransform{Kind: kind, Variant: KindPianoLike}
	}
	return nil
}
