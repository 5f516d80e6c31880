package controller

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pitchgrid/mapper/internal/layout"
	"github.com/stretchr/testify/require"
)

const testDescriptorYAML = `
deviceName: Test Grid
midiDeviceName: TestGrid
numRows: 2
firstRowIdx: 0
rowLengths: [4, 4]
rowOffsets: [0, 0]
horizonToRowAngle: 90
rowToColAngle: 90
xSpacing: 1
ySpacing: 1
noteToCoordX: "note % 4"
noteToCoordY: "note / 4"
setPadColor: "0x90 {pad.x} 0x40"
macros:
  noteOn: "0x90"
functions:
  keyIndex:
    params: [x, y]
    expr: "y*4 + x"
`

func writeTestDescriptor(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDescriptorYAML), 0o644))
	return path
}

func TestLoadAndCompile(t *testing.T) {
	path := writeTestDescriptor(t)
	d, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Test Grid", d.DeviceName)

	c, err := Compile(d, nil)
	require.NoError(t, err)
	require.Equal(t, layout.GeometryRect, c.Geometry)
	require.Len(t, c.Pads, 8)
}

func TestIsRectangularVsHexGeometry(t *testing.T) {
	d := &Descriptor{RowToColAngle: 90}
	require.True(t, d.IsRectangular())
	d.RowToColAngle = 60
	require.False(t, d.IsRectangular())
}

func TestReverseNoteRoundTrip(t *testing.T) {
	path := writeTestDescriptor(t)
	d, err := Load(path)
	require.NoError(t, err)
	c, err := Compile(d, nil)
	require.NoError(t, err)

	pad, ok := c.ReverseNote(5) // note 5 -> x=1, y=1
	require.True(t, ok)
	require.Equal(t, 1, pad.LX)
	require.Equal(t, 1, pad.LY)
}

func TestReverseNoteAbsentWithoutExpressions(t *testing.T) {
	d := &Descriptor{DeviceName: "x", NumRows: 1, RowLengths: []int{1}, RowOffsets: []int{0}}
	c, err := Compile(d, nil)
	require.NoError(t, err)
	_, ok := c.ReverseNote(60)
	require.False(t, ok)
}

func TestMatchesMIDIPortSubstring(t *testing.T) {
	d := &Descriptor{MIDIDeviceName: "LinnStrument"}
	require.True(t, d.MatchesMIDIPort("LinnStrument MIDI 1"))
	require.False(t, d.MatchesMIDIPort("Launchpad Pro MK3"))
}

func TestVirtualOutputNameFallback(t *testing.T) {
	d := &Descriptor{}
	require.Equal(t, "PitchGrid Mapper", d.VirtualOutputName("PitchGrid Mapper"))
	d.VirtualMIDIDeviceName = "Custom Out"
	require.Equal(t, "Custom Out", d.VirtualOutputName("PitchGrid Mapper"))
}

func TestMissingRowLengthsFailsLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deviceName: Bad\nnumRows: 2\nrowLengths: [1]\nrowOffsets: [0,0]\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
