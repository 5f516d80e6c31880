package controller

import (
	"fmt"
	"math"

	"github.com/pitchgrid/mapper/internal/layout"
	"github.com/pitchgrid/mapper/internal/obs"
	"github.com/pitchgrid/mapper/internal/template"
)

// Pad is one enumerated controller surface element: logical lattice
// coordinate plus physical display coordinate (spec.md §3).
type Pad struct {
	LX, LY int
	PX, PY float64
}

func (p Pad) Logical() layout.Pad { return layout.Pad{LX: p.LX, LY: p.LY} }

// Compiled is the ready-to-use view of a Descriptor: enumerated pads,
// inferred geometry, compiled templates/macros/functions, and the
// declared-pad reverse-note table.
type Compiled struct {
	Descriptor *Descriptor
	Geometry   layout.Geometry
	Pads       []Pad

	// reverseNote maps a controller-native MIDI note to the logical pad
	// it was declared to sit at, built once from NoteToCoordX/Y. Empty if
	// the descriptor lacks either expression (spec.md §9 Open
	// Question: treat the controller as having no inverse).
	reverseNote map[int]Pad

	setPadNoteAndChannel *template.Template
	setPadColor          *template.Template
	setPadNotesBulk      *template.Template
	setPadColorsBulk     *template.Template

	macrosCompiled map[string]*template.Template
	funcs          map[string]*template.FuncDef
	logger         *obs.Logger
}

// Compile parses templates/macros/functions, enumerates pads, infers
// geometry, and builds the reverse-note table.
func Compile(d *Descriptor, logger *obs.Logger) (*Compiled, error) {
	if logger == nil {
		logger = obs.New("[controller] ")
	}
	c := &Compiled{Descriptor: d, logger: logger}

	if d.IsRectangular() {
		c.Geometry = layout.GeometryRect
	} else {
		c.Geometry = layout.GeometryHex
	}

	c.Pads = generatePads(d)

	funcs, err := compileFuncs(d.Functions)
	if err != nil {
		return nil, fmt.Errorf("controller: %s: %w", d.DeviceName, err)
	}
	c.funcs = funcs

	warn := func(format string, args ...any) { logger.Infof(format, args...) }

	macroTemplates := make(map[string]*template.Template, len(d.Macros))
	for name, src := range d.Macros {
		t, err := template.Parse(src, warn)
		if err != nil {
			return nil, fmt.Errorf("controller: %s: macro %q: %w", d.DeviceName, name, err)
		}
		macroTemplates[name] = t
	}
	c.macrosCompiled = macroTemplates

	parseOptional := func(src string) (*template.Template, error) {
		if src == "" {
			return nil, nil
		}
		return template.Parse(src, warn)
	}
	if c.setPadNoteAndChannel, err = parseOptional(d.SetPadNoteAndChannel); err != nil {
		return nil, fmt.Errorf("controller: %s: setPadNoteAndChannel: %w", d.DeviceName, err)
	}
	if c.setPadColor, err = parseOptional(d.SetPadColor); err != nil {
		return nil, fmt.Errorf("controller: %s: setPadColor: %w", d.DeviceName, err)
	}
	if c.setPadNotesBulk, err = parseOptional(d.SetPadNotesBulk); err != nil {
		return nil, fmt.Errorf("controller: %s: setPadNotesBulk: %w", d.DeviceName, err)
	}
	if c.setPadColorsBulk, err = parseOptional(d.SetPadColorsBulk); err != nil {
		return nil, fmt.Errorf("controller: %s: setPadColorsBulk: %w", d.DeviceName, err)
	}

	c.reverseNote = buildReverseNote(d, c.Pads, warn)

	return c, nil
}

func compileFuncs(specs map[string]FuncSpec) (map[string]*template.FuncDef, error) {
	out := make(map[string]*template.FuncDef, len(specs))
	for name, spec := range specs {
		expr, err := template.ParseExpr(spec.Expr)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", name, err)
		}
		out[name] = &template.FuncDef{Params: spec.Params, Body: expr}
	}
	return out, nil
}

// generatePads walks rows/columns per the declared angles and spacing,
// mirroring controller_config.py's _generate_pad_coordinates: physical
// position accumulates along the row-to-row direction
// (horizonToRowAngle) and the within-row direction (rowToColAngle).
func generatePads(d *Descriptor) []Pad {
	var pads []Pad
	rowDirRad := d.HorizonToRowAngle * math.Pi / 180
	colDirRad := d.RowToColAngle * math.Pi / 180

	for r := 0; r < d.NumRows; r++ {
		rowOriginX := float64(r) * d.YSpacing * math.Cos(rowDirRad)
		rowOriginY := float64(r) * d.YSpacing * math.Sin(rowDirRad)
		rowLen := 0
		if r < len(d.RowLengths) {
			rowLen = d.RowLengths[r]
		}
		rowOffset := 0
		if r < len(d.RowOffsets) {
			rowOffset = d.RowOffsets[r]
		}
		for col := 0; col < rowLen; col++ {
			px := rowOriginX + float64(col)*d.XSpacing*math.Cos(colDirRad)
			py := rowOriginY + float64(col)*d.XSpacing*math.Sin(colDirRad)
			pads = append(pads, Pad{
				LX: rowOffset + col,
				LY: d.FirstRowIdx + r,
				PX: px, PY: py,
			})
		}
	}
	return pads
}

// buildReverseNote evaluates NoteToCoordX/Y for every MIDI note 0..127 and
// keeps only notes landing on a declared pad, preserving injectivity
// (invariant 3): if two notes land on the same pad, the first wins and the
// rest are dropped with a warning.
func buildReverseNote(d *Descriptor, pads []Pad, warn func(string, ...any)) map[int]Pad {
	out := make(map[int]Pad)
	if d.NoteToCoordX == "" || d.NoteToCoordY == "" {
		return out
	}
	exprX, errX := template.ParseExpr(d.NoteToCoordX)
	exprY, errY := template.ParseExpr(d.NoteToCoordY)
	if errX != nil || errY != nil {
		warn("controller: %s: malformed noteToCoordX/Y, no reverse mapping: %v / %v", d.DeviceName, errX, errY)
		return out
	}

	declared := make(map[[2]int]Pad, len(pads))
	for _, p := range pads {
		declared[[2]int{p.LX, p.LY}] = p
	}

	seen := make(map[[2]int]bool)
	for note := 0; note < 128; note++ {
		env := &template.Env{Vars: map[string]int{"note": note}, Warn: warn}
		lx, errX := template.Eval(exprX, env)
		ly, errY := template.Eval(exprY, env)
		if errX != nil || errY != nil {
			continue
		}
		key := [2]int{lx, ly}
		pad, ok := declared[key]
		if !ok {
			continue
		}
		if seen[key] {
			warn("controller: %s: native note %d aliases an already-mapped pad (%d,%d), dropped", d.DeviceName, note, lx, ly)
			continue
		}
		seen[key] = true
		out[note] = pad
	}
	return out
}

// ReverseNote resolves a controller-native MIDI note to its declared pad.
func (c *Compiled) ReverseNote(note int) (Pad, bool) {
	p, ok := c.reverseNote[note]
	return p, ok
}

// ReverseMapping returns the declared native-note→logical-pad table in the
// shape internal/midiio installs as its reverse lookup.
func (c *Compiled) ReverseMapping() map[int]layout.Pad {
	out := make(map[int]layout.Pad, len(c.reverseNote))
	for note, p := range c.reverseNote {
		out[note] = p.Logical()
	}
	return out
}

// NewEnv builds a fresh template environment carrying this descriptor's
// compiled macros/functions/row-lengths, ready for the caller to add
// per-send Vars/Pads.
func (c *Compiled) NewEnv() *template.Env {
	return &template.Env{
		Vars:       map[string]int{},
		Macros:     c.macrosCompiled,
		Funcs:      c.funcs,
		RowLengths: c.Descriptor.RowLengths,
		Warn:       func(format string, args ...any) { c.logger.Infof(format, args...) },
	}
}

func (c *Compiled) SetPadNoteAndChannel() *template.Template { return c.setPadNoteAndChannel }
func (c *Compiled) SetPadColor() *template.Template          { return c.setPadColor }
func (c *Compiled) SetPadNotesBulk() *template.Template      { return c.setPadNotesBulk }
func (c *Compiled) SetPadColorsBulk() *template.Template     { return c.setPadColorsBulk }
