// Package palette derives a display color for a scale index and, for
// controllers with a fixed native color set (spec.md §9 Open Question —
// declared per-device, not hardcoded), matches it to the closest declared
// palette entry.
//
// Grounded on schollz-221e's internal/views package, which is the only
// example repo that reaches for github.com/lucasb-eyer/go-colorful rather
// than hand-rolled RGB math.
package palette

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// FromScaleIndex derives a deterministic color for a scale index, cycling
// hue across the twelve pitch classes the way a piano-roll or isomorphic
// grid conventionally keys color to pitch. Index 0 (and every multiple of
// 12) lands on the same hue, giving octave-equivalent pads a matching
// color family.
func FromScaleIndex(index int) colorful.Color {
	pitchClass := ((index % 12) + 12) % 12
	hue := float64(pitchClass) / 12 * 360
	return colorful.Hsl(hue, 0.65, 0.55)
}

// Nearest returns the index of the declared hex color closest to c in RGB
// distance, or -1 if the palette is empty or every entry fails to parse.
func Nearest(declared []string, c colorful.Color) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, hex := range declared {
		pc, err := colorful.Hex(hex)
		if err != nil {
			continue
		}
		if d := c.DistanceRgb(pc); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Resolve returns the RGB byte triple a color should be sent as: the
// color itself if the controller has no declared palette, or the nearest
// declared palette entry's RGB if it does.
func Resolve(declared []string, c colorful.Color) (r, g, b uint8) {
	if len(declared) == 0 {
		return c.RGB255()
	}
	idx := Nearest(declared, c)
	if idx < 0 {
		return c.RGB255()
	}
	matched, err := colorful.Hex(declared[idx])
	if err != nil {
		return c.RGB255()
	}
	return matched.RGB255()
}
