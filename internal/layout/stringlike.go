package layout

import "github.com/pitchgrid/mapper/internal/latticemos"

// StringLike treats each row as a string at a fixed scale-index offset
// from the previous row (spec.md §3/§4.3). Grounded in shape on the
// Python original's layouts/string_like.py.
type StringLike struct {
	RootX, RootY int
	RowOffset    int
	FlipH, FlipV bool
}

func NewStringLike(root Vector2, rowOffset int) *StringLike {
	return &StringLike{RootX: root.X, RootY: root.Y, RowOffset: rowOffset}
}

func (s *StringLike) Kind() Kind { return KindStringLike }

// scaleIndex implements spec.md §4.3's
// scale_index(lx,ly) = ((±(ly-root_y))·row_offset) + (±(lx-root_x)) + 60.
func (s *StringLike) scaleIndex(pad Pad) int {
	dx := pad.LX - s.RootX
	dy := pad.LY - s.RootY
	if s.FlipH {
		dx = -dx
	}
	if s.FlipV {
		dy = -dy
	}
	return dy*s.RowOffset + dx + 60
}

func (s *StringLike) CalculateMapping(pads []Pad, _ int, _ *latticemos.MOS, coordToIndex map[Vector2]int) map[Pad]int {
	rev := indexToCoord(coordToIndex)
	result := make(map[Pad]int, len(pads))
	for _, pad := range pads {
		idx := s.scaleIndex(pad)
		if idx < 0 || idx > 127 {
			continue
		}
		if _, ok := rev[idx]; ok {
			result[pad] = idx
		}
	}
	return result
}

func (s *StringLike) GetLatticeCoord(pad Pad, coordToIndex map[Vector2]int) (Vector2, bool) {
	idx := s.scaleIndex(pad)
	if idx < 0 || idx > 127 {
		return Vector2{}, false
	}
	c, ok := indexToCoord(coordToIndex)[idx]
	return c, ok
}

func (s *StringLike) ApplyTransformation(kind TransformKind, _ Geometry, _ int) error {
	switch kind {
	case ShiftLeft:
		s.RootX--
	case ShiftRight:
		s.RootX++
	case ShiftUp:
		s.RootY++
	case ShiftDown:
		s.RootY--
	case SkewLeft:
		s.RowOffset--
	case SkewRight:
		s.RowOffset++
	case ReflectHorizontal:
		s.FlipH = !s.FlipH
	case ReflectVertical:
		s.FlipV = !s.FlipV
	default:
		return ErrUnsupportedTransform{Kind: kind, Variant: KindStringLike}
	}
	return nil
}
