// Package coordinator owns the current controller, layout calculator, and
// tuning, and orchestrates the seven operations spec.md §4.4 names:
// switch_controller, connect, update_layout, apply_transformation,
// on_tuning, trigger_note, and recompute.
//
// Grounded on the Python original's pg_isomap/app.py (PGIsomapApp):
// switch_controller/connect/update_layout_config/apply_transformation/
// _recalculate_layout/_handle_scale_update. Per spec.md Design Notes §9,
// the cyclic coordinator↔MIDI-core callback wiring the original uses is
// replaced with two one-way interfaces: the coordinator pushes mappings
// into internal/midiio.Core (UpdateNoteMapping/CancelColorSend/
// SendColorStream), and implements midiio.NoteEventSink itself so the
// core can call back on remapped notes without holding a coordinator
// reference of its own.
package coordinator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pitchgrid/mapper/internal/controller"
	"github.com/pitchgrid/mapper/internal/layout"
	"github.com/pitchgrid/mapper/internal/midiio"
	"github.com/pitchgrid/mapper/internal/obs"
	"github.com/pitchgrid/mapper/internal/palette"
	"github.com/pitchgrid/mapper/internal/template"
	"github.com/pitchgrid/mapper/internal/tuning"
)

// StatusEvent is an observable state transition (controller switched,
// connected, disconnected, a note was struck), correlated with a uuid so
// a UI or log sink can dedupe redeliveries.
type StatusEvent struct {
	ID      string
	Kind    string
	Message string
}

// Core is the subset of *midiio.Core the coordinator drives — narrowed to
// an interface so tests can substitute a fake without opening real MIDI
// ports.
type Core interface {
	ConnectController(inPortName, outPortName string) error
	DisconnectController()
	IsControllerConnected() bool
	UpdateNoteMapping(forward map[layout.Pad]int, reverse map[int]layout.Pad)
	CancelColorSend() int
	SendColorStream(generation int, data []byte)
	SendSetup(data []byte)
	InjectVirtual(data []byte)
}

const statusEventBuffer = 64

// Coordinator is the single owner of "what controller, what layout, what
// tuning is currently active." Safe for concurrent use.
type Coordinator struct {
	logger *obs.Logger
	core   Core

	mu          sync.Mutex
	controllers map[string]*controller.Compiled
	current     *controller.Compiled
	currentName string

	layoutKind layout.Kind
	calc       layout.Layout
	isoTuned   bool

	tuningResult tuning.Result
	lastTuning   tuning.Tuning
	padToIndex   map[layout.Pad]int

	events chan StatusEvent

	discMu sync.Mutex
	disc   *discoveryState
}

// New constructs a Coordinator wired to core (typically a *midiio.Core).
// core may be nil in tests that only exercise pure layout/tuning state.
func New(core Core, logger *obs.Logger) *Coordinator {
	if logger == nil {
		logger = obs.New("[coordinator] ")
	}
	return &Coordinator{
		logger:      logger,
		core:        core,
		controllers: map[string]*controller.Compiled{},
		events:      make(chan StatusEvent, statusEventBuffer),
	}
}

// Events returns the channel status events are published on. Never closed.
func (co *Coordinator) Events() <-chan StatusEvent {
	return co.events
}

// RegisterController makes a compiled descriptor available to
// SwitchController/Connect by name.
func (co *Coordinator) RegisterController(name string, c *controller.Compiled) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.controllers[name] = c
}

// CurrentControllerName reports the active controller's registered name,
// or "" if none is active.
func (co *Coordinator) CurrentControllerName() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.currentName
}

// SwitchController makes the named, already-registered descriptor the
// active one, disconnects any previously connected controller (a
// different descriptor's wire format doesn't apply to it), resets the
// layout calculator, and recomputes the mapping.
func (co *Coordinator) SwitchController(name string) error {
	co.mu.Lock()
	c, ok := co.controllers[name]
	if !ok {
		co.mu.Unlock()
		return fmt.Errorf("coordinator: unknown controller %q", name)
	}
	co.current = c
	co.currentName = name
	co.calc = nil
	co.isoTuned = false
	co.mu.Unlock()

	if co.core != nil {
		co.core.DisconnectController()
	}
	co.emitStatus("controller_switched", name)

	co.mu.Lock()
	defer co.mu.Unlock()
	return co.recomputeLocked()
}

// Connect switches to the named controller (if not already active) and
// opens its MIDI input/output ports, then sends a one-shot setup stream
// (SetPadNotesBulk, if declared) so the controller's native note
// assignments match the freshly computed mapping.
func (co *Coordinator) Connect(name string) error {
	if co.CurrentControllerName() != name {
		if err := co.SwitchController(name); err != nil {
			return err
		}
	}

	co.mu.Lock()
	c := co.current
	co.mu.Unlock()
	if c == nil {
		return fmt.Errorf("coordinator: no current controller")
	}

	if co.core == nil {
		return nil
	}
	if err := co.core.ConnectController(c.Descriptor.MIDIDeviceName, c.Descriptor.MIDIDeviceName); err != nil {
		co.logger.Errorf("coordinator: connect %q: %v", name, err)
		return err
	}
	co.emitStatus("connected", name)

	if bulk := c.SetPadNotesBulk(); bulk != nil {
		env := c.NewEnv()
		co.mu.Lock()
		env.Pads = buildNotePads(co.padToIndex)
		co.mu.Unlock()
		if data, err := bulk.Render(env); err == nil {
			co.core.SendSetup(data)
		} else {
			co.logger.Infof("coordinator: setPadNotesBulk render error: %v", err)
		}
	}
	return nil
}

// Disconnect closes the active controller's MIDI ports without forgetting
// which controller is current.
func (co *Coordinator) Disconnect() {
	if co.core != nil {
		co.core.DisconnectController()
	}
	co.emitStatus("disconnected", co.CurrentControllerName())
}

// IsConnected reports whether the underlying MIDI core currently has a
// controller input open.
func (co *Coordinator) IsConnected() bool {
	if co.core == nil {
		return false
	}
	return co.core.IsControllerConnected()
}

// UpdateLayout switches the active layout calculator variant, building a
// fresh one (at the controller's declared default isomorphic root) unless
// one of the same kind is already active, and recomputes the mapping.
func (co *Coordinator) UpdateLayout(kind layout.Kind) error {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.current == nil {
		return fmt.Errorf("coordinator: no current controller")
	}
	if co.calc == nil || co.calc.Kind() != kind {
		co.calc = co.newCalculatorLocked(kind)
	}
	co.layoutKind = kind
	return co.recomputeLocked()
}

// ApplyTransformation applies a named user edit (shift/skew/rotate/…) to
// the active layout calculator and recomputes. A transform unsupported by
// the active variant or geometry leaves state unchanged (spec.md §7).
func (co *Coordinator) ApplyTransformation(kind layout.TransformKind) error {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.calc == nil {
		return fmt.Errorf("coordinator: no active layout")
	}
	geometry := layout.GeometryRect
	rows := 0
	if co.current != nil {
		geometry = co.current.Geometry
		rows = co.current.Descriptor.NumRows
	}
	if err := co.calc.ApplyTransformation(kind, geometry, rows); err != nil {
		return err
	}
	return co.recomputeLocked()
}

// OnTuning handles a new tuning tuple arriving over OSC (spec.md §4.4):
// it cancels any in-flight color send immediately, before doing any other
// work, mirroring the original's _handle_scale_update (cancel first, then
// parse/apply), builds the new Result, retunes (or initializes) the
// active isomorphic calculator, and recomputes.
func (co *Coordinator) OnTuning(t tuning.Tuning) error {
	if co.core != nil {
		co.core.CancelColorSend()
	}
	result := tuning.Build(t)

	co.mu.Lock()
	defer co.mu.Unlock()
	co.lastTuning = t
	co.tuningResult = result
	return co.recomputeLocked()
}

// TriggerNote synthesizes a note-on/off for a logical pad directly — used
// by a UI "test this pad" action — bypassing the controller input and
// remap-thread lookup entirely, since the pad (and therefore its current
// scale index) is already known (spec.md §4.4).
func (co *Coordinator) TriggerNote(pad layout.Pad, velocity byte, noteOn bool) {
	co.mu.Lock()
	index, ok := co.padToIndex[pad]
	co.mu.Unlock()
	if !ok {
		co.logger.Infof("coordinator: trigger_note (%d,%d) has no current mapping", pad.LX, pad.LY)
		return
	}
	if co.core == nil {
		return
	}
	status := byte(0x80)
	if noteOn {
		status = 0x90
	}
	co.core.InjectVirtual([]byte{status, byte(index), velocity})
	co.OnNoteEvent(pad, noteOn)
}

// Recompute re-runs CalculateMapping against the current controller/
// layout/tuning state without changing any of them — used after a
// descriptor reload or as a periodic consistency check.
func (co *Coordinator) Recompute() error {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.recomputeLocked()
}

// OnNoteEvent implements midiio.NoteEventSink: the remap thread calls
// this on every successfully remapped note.
func (co *Coordinator) OnNoteEvent(pad layout.Pad, noteOn bool) {
	co.emitStatus("note_event", fmt.Sprintf("(%d,%d) on=%v", pad.LX, pad.LY, noteOn))
}

var _ midiio.NoteEventSink = (*Coordinator)(nil)

func (co *Coordinator) newCalculatorLocked(kind layout.Kind) layout.Layout {
	root := layout.Vector2{}
	if co.current != nil {
		root = layout.Vector2{X: co.current.Descriptor.DefaultIsoRootX, Y: co.current.Descriptor.DefaultIsoRootY}
	}
	co.isoTuned = false
	switch kind {
	case layout.KindStringLike:
		return layout.NewStringLike(root, 7)
	case layout.KindPianoLike:
		return layout.NewPianoLike(root, 2)
	default:
		return layout.NewIsomorphicIdentity(root)
	}
}

// recomputeLocked assumes co.mu is held. It is the direct analogue of the
// original's _recalculate_layout: reuse the existing calculator unless the
// variant changed, (re)tune an isomorphic calculator from the active MOS,
// compute pad_to_index, push both mapping tables into the MIDI core as a
// unit, and kick off an asynchronous, cancellable color refresh.
func (co *Coordinator) recomputeLocked() error {
	if co.current == nil {
		return nil
	}
	if co.calc == nil {
		co.calc = co.newCalculatorLocked(co.layoutKind)
	}

	if iso, ok := co.calc.(*layout.Isomorphic); ok && co.tuningResult.MOS != nil {
		root := layout.Vector2{X: co.current.Descriptor.DefaultIsoRootX, Y: co.current.Descriptor.DefaultIsoRootY}
		if !co.isoTuned {
			iso.InitializeFromTuning(co.tuningResult.MOS, root)
			co.isoTuned = true
		} else {
			iso.RetuneWithoutEdit(co.tuningResult.MOS)
		}
	}

	pads := make([]layout.Pad, len(co.current.Pads))
	for i, p := range co.current.Pads {
		pads[i] = p.Logical()
	}
	steps := co.lastTuning.Steps
	padToIndex := co.calc.CalculateMapping(pads, steps, co.tuningResult.MOS, co.tuningResult.CoordToScaleIndex)
	co.padToIndex = padToIndex

	if co.core != nil {
		co.core.UpdateNoteMapping(padToIndex, co.current.ReverseMapping())

		generation := co.core.CancelColorSend()
		current := co.current
		declared := current.Descriptor.ColorPalette
		go co.sendColors(current, padToIndex, declared, generation)
	}
	return nil
}

func (co *Coordinator) sendColors(c *controller.Compiled, padToIndex map[layout.Pad]int, declared []string, generation int) {
	env := c.NewEnv()
	if bulk := c.SetPadColorsBulk(); bulk != nil {
		env.Pads = buildColorPads(padToIndex, declared)
		data, err := bulk.Render(env)
		if err != nil {
			co.logger.Infof("coordinator: setPadColorsBulk render error: %v", err)
			return
		}
		co.core.SendColorStream(generation, data)
		return
	}

	single := c.SetPadColor()
	if single == nil {
		return
	}
	pads := buildColorPads(padToIndex, declared)
	var data []byte
	for i := range pads {
		padEnv := c.NewEnv()
		padEnv.Pad = &pads[i]
		chunk, err := single.Render(padEnv)
		if err != nil {
			co.logger.Infof("coordinator: setPadColor render error: %v", err)
			continue
		}
		data = append(data, chunk...)
	}
	co.core.SendColorStream(generation, data)
}

func buildNotePads(padToIndex map[layout.Pad]int) []template.Pad {
	pads := make([]template.Pad, 0, len(padToIndex))
	for pad, idx := range padToIndex {
		pads = append(pads, template.Pad{X: pad.LX, Y: pad.LY, NoteNumber: idx})
	}
	return pads
}

func buildColorPads(padToIndex map[layout.Pad]int, declared []string) []template.Pad {
	pads := make([]template.Pad, 0, len(padToIndex))
	for pad, idx := range padToIndex {
		r, g, b := palette.Resolve(declared, palette.FromScaleIndex(idx))
		pads = append(pads, template.Pad{X: pad.LX, Y: pad.LY, NoteNumber: idx, Red: int(r), Green: int(g), Blue: int(b)})
	}
	return pads
}

func (co *Coordinator) emitStatus(kind, message string) {
	ev := StatusEvent{ID: uuid.NewString(), Kind: kind, Message: message}
	select {
	case co.events <- ev:
	default:
		co.logger.Infof("coordinator: status event channel full, dropped %s", kind)
	}
}
