// Package controller loads a controller descriptor file (spec.md §6),
// enumerates its pads with their physical coordinates, and compiles its
// wire-format templates. Grounded on the Python original's
// controller_config.py, generalized from a fixed JSON shape into a
// gopkg.in/yaml.v3-backed descriptor, since the distilled spec's §6 says
// "any tree-shaped format is acceptable."
package controller

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FuncSpec declares one controller-side helper function (keyIndex,
// boardIndex, MSB, …): an expression string over named parameters.
type FuncSpec struct {
	Params []string `yaml:"params"`
	Expr   string   `yaml:"expr"`
}

// Descriptor is the raw, as-loaded controller declaration (spec.md §6).
// Immutable after Load — callers get a Compiled view via Compile.
type Descriptor struct {
	DeviceName            string `yaml:"deviceName"`
	MIDIDeviceName        string `yaml:"midiDeviceName"`
	VirtualMIDIDeviceName string `yaml:"virtualMidiDeviceName,omitempty"`
	IsMPE                 bool   `yaml:"isMPE"`
	HasGlobalPitchBend    bool   `yaml:"hasGlobalPitchBend"`

	NumRows     int   `yaml:"numRows"`
	FirstRowIdx int   `yaml:"firstRowIdx"`
	RowLengths  []int `yaml:"rowLengths"`
	RowOffsets  []int `yaml:"rowOffsets"`

	HorizonToRowAngle float64 `yaml:"horizonToRowAngle"`
	RowToColAngle     float64 `yaml:"rowToColAngle"`
	XSpacing          float64 `yaml:"xSpacing"`
	YSpacing          float64 `yaml:"ySpacing"`

	DefaultIsoRootX int `yaml:"defaultIsoRootX,omitempty"`
	DefaultIsoRootY int `yaml:"defaultIsoRootY,omitempty"`

	SetPadNoteAndChannel string `yaml:"setPadNoteAndChannel,omitempty"`
	SetPadColor          string `yaml:"setPadColor,omitempty"`
	SetPadNotesBulk      string `yaml:"setPadNotesBulk,omitempty"`
	SetPadColorsBulk     string `yaml:"setPadColorsBulk,omitempty"`

	NoteToCoordX string `yaml:"noteToCoordX,omitempty"`
	NoteToCoordY string `yaml:"noteToCoordY,omitempty"`

	Macros    map[string]string  `yaml:"macros,omitempty"`
	Functions map[string]FuncSpec `yaml:"functions,omitempty"`

	// ColorPalette is the device's native color list, declared per device
	// per spec.md §9's Open Question (a LinnStrument-style fixed palette
	// is device-specific and must be declared, not hardcoded).
	ColorPalette []string `yaml:"colorPalette,omitempty"`
}

// Load reads and parses a controller descriptor file. Malformed
// descriptors are a ConfigLoad-class error (spec.md §7): the caller skips
// this descriptor and keeps loading others.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controller: reading %s: %w", path, err)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("controller: parsing %s: %w", path, err)
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("controller: %s: %w", path, err)
	}
	return &d, nil
}

func (d *Descriptor) validate() error {
	if d.DeviceName == "" {
		return fmt.Errorf("deviceName is required")
	}
	if len(d.RowLengths) != d.NumRows {
		return fmt.Errorf("rowLengths has %d entries, want numRows=%d", len(d.RowLengths), d.NumRows)
	}
	if len(d.RowOffsets) != d.NumRows {
		return fmt.Errorf("rowOffsets has %d entries, want numRows=%d", len(d.RowOffsets), d.NumRows)
	}
	return nil
}

// MatchesMIDIPort reports whether portName contains this descriptor's
// midiDeviceName substring, mirroring pulsekontrol's
// ControllerManager.match_midi_port_to_config (spec.md's Non-goals: "does
// not attempt to discover controllers automatically beyond matching MIDI
// port substrings to named configurations").
func (d *Descriptor) MatchesMIDIPort(portName string) bool {
	return d.MIDIDeviceName != "" && strings.Contains(portName, d.MIDIDeviceName)
}

// VirtualOutputName returns the descriptor's own virtual output name
// override if declared, else fallback (spec.md §12 item 3).
func (d *Descriptor) VirtualOutputName(fallback string) string {
	if d.VirtualMIDIDeviceName != "" {
		return d.VirtualMIDIDeviceName
	}
	return fallback
}

// IsRectangular infers rectangular-vs-hex geometry from the declared
// row-to-column angle (spec.md §3: "75° < θ < 105° ⇒ rectangular").
func (d *Descriptor) IsRectangular() bool {
	return d.RowToColAngle > 75 && d.RowToColAngle < 105
}
