// Package midiio is the real-time MIDI I/O core: a bounded ingress queue,
// a dedicated remap thread, virtual/physical port lifecycle, and
// generation-cancellable controller-bound sends (spec.md §4.5/§4.6).
//
// Grounded on the teacher's internal/midi/midi.go (port lookup via
// gitlab.com/gomidi/midi/v2, SendTo/listen callback shape) and
// internal/actions/handler_midi.go, and on the Python original's
// midi_handler.py (bounded queue, dedicated processing thread, reverse
// lookup then forward lookup) and app.py's cancel_color_send/
// _send_pad_colors_worker generation loop. Unlike the original, a miss on
// either lookup drops the note rather than passing it through raw
// (spec.md §4.5).
package midiio

import (
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/pitchgrid/mapper/internal/layout"
	"github.com/pitchgrid/mapper/internal/obs"
)

// Pad is the logical lattice address a remapped note resolves to.
type Pad = layout.Pad

// NoteEventSink is implemented by the coordinator and invoked by the
// remap thread on every successfully remapped note. Keeping this as a
// one-way interface injected at construction avoids the cyclic
// coordinator↔MIDI-core reference the Python original has via bound
// callbacks (spec.md Design Notes §9).
type NoteEventSink interface {
	OnNoteEvent(pad Pad, noteOn bool)
}

// Stats are the aggregated counters the real-time path updates; no
// per-message logging happens in the hot path (spec.md Design Notes §9) —
// drops and send errors are counted here instead and reported in
// aggregate by runStatsReporter.
type Stats struct {
	MessagesProcessed uint64
	NotesRemapped     uint64
	DroppedNotes      uint64
	SendErrors        uint64
}

type mappingSnapshot struct {
	forward map[Pad]int
	reverse map[int]Pad
}

// sinkBox wraps a NoteEventSink so atomic.Value can hold a nil sink: a
// bare nil interface stored in atomic.Value loses its type on Load and
// panics on the next Store of a concrete type.
type sinkBox struct{ sink NoteEventSink }

// Core owns the MIDI ports, the ingress queue, and the remap thread. Zero
// value is not usable; construct with New.
type Core struct {
	virtualDeviceName string
	sink              atomic.Value // NoteEventSink, wrapped in sinkBox since nil isn't a concrete type
	logger            *obs.Logger

	portMu        sync.Mutex // guards port handles only; never held while sending
	driver        *rtmididrv.Driver
	virtualOut    drivers.Out
	controllerIn  drivers.In
	controllerOut drivers.Out
	stopListen    func()

	mapping atomic.Value // *mappingSnapshot

	queue  *inboundQueue
	stopCh chan struct{}
	wg     sync.WaitGroup

	genMu      sync.Mutex
	generation int

	messagesProcessed atomic.Uint64
	notesRemapped     atomic.Uint64
	droppedNotes      atomic.Uint64
	sendErrors        atomic.Uint64
}

// New constructs a Core. sink may be nil if no UI callback is wired yet.
func New(virtualDeviceName string, sink NoteEventSink, logger *obs.Logger) *Core {
	if logger == nil {
		logger = obs.New("[midiio] ")
	}
	c := &Core{
		virtualDeviceName: virtualDeviceName,
		logger:            logger,
		queue:             newInboundQueue(),
	}
	c.sink.Store(sinkBox{sink: sink})
	c.mapping.Store(&mappingSnapshot{forward: map[Pad]int{}, reverse: map[int]Pad{}})
	return c
}

// Start opens the rtmidi driver, attempts the virtual output, and launches
// the remap thread. A failure to create the virtual output is a
// PortUnavailable per spec.md §7: logged, remapping still runs, and
// egress to the virtual output is a no-op; the port is not retried.
func (c *Core) Start() error {
	driver, err := rtmididrv.New()
	if err != nil {
		return err
	}
	c.driver = driver

	if out, err := driver.OpenVirtualOut(c.virtualDeviceName); err != nil {
		c.logger.Errorf("midiio: virtual output %q unavailable: %v", c.virtualDeviceName, err)
	} else {
		c.virtualOut = out
	}

	c.stopCh = make(chan struct{})
	c.wg.Add(2)
	go c.runRemap()
	go c.runStatsReporter()
	return nil
}

// Stop halts the remap thread and releases all open ports.
func (c *Core) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.wg.Wait()
	}
	c.DisconnectController()
	c.portMu.Lock()
	if c.virtualOut != nil {
		c.virtualOut.Close()
		c.virtualOut = nil
	}
	if c.driver != nil {
		c.driver.Close()
		c.driver = nil
	}
	c.portMu.Unlock()
}

// ConnectController opens the named input (and, if non-empty, output)
// controller ports and starts listening. Synchronous, per spec.md §5.
func (c *Core) ConnectController(inPortName, outPortName string) error {
	c.DisconnectController()

	in, err := midi.FindInPort(inPortName)
	if err != nil {
		return err
	}
	stop, err := in.Listen(c.onControllerMessage, drivers.ListenConfig{})
	if err != nil {
		return err
	}

	c.portMu.Lock()
	c.controllerIn = in
	c.stopListen = stop
	c.portMu.Unlock()

	if outPortName != "" {
		if out, err := midi.FindOutPort(outPortName); err == nil {
			c.portMu.Lock()
			c.controllerOut = out
			c.portMu.Unlock()
		} else {
			c.logger.Errorf("midiio: controller output %q unavailable: %v", outPortName, err)
		}
	}
	return nil
}

// DisconnectController stops listening and releases the controller ports.
func (c *Core) DisconnectController() {
	c.portMu.Lock()
	stop := c.stopListen
	in := c.controllerIn
	out := c.controllerOut
	c.stopListen = nil
	c.controllerIn = nil
	c.controllerOut = nil
	c.portMu.Unlock()

	if stop != nil {
		stop()
	}
	if in != nil {
		in.Close()
	}
	if out != nil {
		out.Close()
	}
}

// IsControllerConnected reports whether a controller input is currently open.
func (c *Core) IsControllerConnected() bool {
	c.portMu.Lock()
	defer c.portMu.Unlock()
	return c.controllerIn != nil
}

// SetSink installs the NoteEventSink after construction, breaking the
// coordinator↔core construction-order cycle: the coordinator needs a
// *Core to construct, and the core needs a sink, so the core is built
// first with no sink and wired up once the coordinator exists.
func (c *Core) SetSink(sink NoteEventSink) {
	c.sink.Store(sinkBox{sink: sink})
}

// UpdateNoteMapping installs both tables as a unit (spec.md §4.5 "Map
// installation"): the remap thread never observes one updated and the
// other stale, since both live behind a single atomic pointer swap.
func (c *Core) UpdateNoteMapping(forward map[Pad]int, reverse map[int]Pad) {
	c.mapping.Store(&mappingSnapshot{forward: forward, reverse: reverse})
}

// Stats returns a snapshot of the aggregated remap counters.
func (c *Core) Stats() Stats {
	return Stats{
		MessagesProcessed: c.messagesProcessed.Load(),
		NotesRemapped:     c.notesRemapped.Load(),
		DroppedNotes:      c.droppedNotes.Load(),
		SendErrors:        c.sendErrors.Load(),
	}
}

const statsReportInterval = 30 * time.Second

// runStatsReporter logs the drop/error counters in aggregate off the
// remap thread, per spec.md Design Notes §9: the hot path only counts,
// this thread is the one that logs.
func (c *Core) runStatsReporter() {
	defer c.wg.Done()
	ticker := time.NewTicker(statsReportInterval)
	defer ticker.Stop()
	var lastDropped, lastErrors uint64
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			dropped := c.droppedNotes.Load()
			errs := c.sendErrors.Load()
			if dropped != lastDropped || errs != lastErrors {
				c.logger.Infof("midiio: %d notes dropped (no mapping), %d virtual-output send errors since last report", dropped-lastDropped, errs-lastErrors)
				lastDropped, lastErrors = dropped, errs
			}
		}
	}
}

// onControllerMessage is the controller input callback thread: it only
// pushes into the bounded queue and never blocks on anything else
// (spec.md §5, thread 1).
func (c *Core) onControllerMessage(data []byte, _ int32) {
	if !c.queue.Push(data) {
		c.logger.Infof("midiio: ingress queue full (capacity %d), dropped message", queueCapacity)
	}
}

// runRemap is the single, long-lived remap thread (spec.md §5, thread 2):
// it blocks on the queue with a short timeout and is the only writer to
// the virtual output and the only reader of the mapping snapshot.
func (c *Core) runRemap() {
	defer c.wg.Done()
	const pollTimeout = 100 * time.Millisecond
	for {
		select {
		case <-c.stopCh:
			return
		case msg := <-c.queue.ch:
			c.handleInbound(msg.data)
		case <-time.After(pollTimeout):
		}
	}
}

func (c *Core) handleInbound(data []byte) {
	c.messagesProcessed.Add(1)

	if len(data) == 3 {
		status := data[0] & 0xF0
		if status == 0x90 || status == 0x80 {
			c.handleNote(data, status)
			return
		}
	}
	c.sendVirtual(data)
}

func (c *Core) handleNote(data []byte, status byte) {
	native := int(data[1])
	velocity := data[2]

	snap, _ := c.mapping.Load().(*mappingSnapshot)
	if snap != nil {
		if pad, ok := snap.reverse[native]; ok {
			if index, ok := snap.forward[pad]; ok {
				c.sendVirtual([]byte{data[0], byte(index), velocity})
				c.notesRemapped.Add(1)
				c.notifySink(pad, status == 0x90 && velocity > 0)
				return
			}
		}
	}
	c.droppedNotes.Add(1)
}

// notifySink invokes the NoteEventSink with a recover guard: per spec.md
// §7's CallbackRaised policy, a panicking downstream callback is caught
// and logged rather than taking down the remap thread.
func (c *Core) notifySink(pad Pad, noteOn bool) {
	box, ok := c.sink.Load().(sinkBox)
	if !ok || box.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("midiio: note event sink panicked: %v", r)
		}
	}()
	box.sink.OnNoteEvent(pad, noteOn)
}

// InjectVirtual sends raw bytes directly to the virtual output, bypassing
// the ingress queue and the reverse/forward lookup — used for synthetic
// pad triggers (spec.md §4.4 trigger_note) that already carry a resolved
// scale index rather than a controller-native note.
func (c *Core) InjectVirtual(data []byte) {
	c.sendVirtual(data)
}

func (c *Core) sendVirtual(data []byte) {
	c.portMu.Lock()
	out := c.virtualOut
	c.portMu.Unlock()
	if out == nil {
		return
	}
	if err := out.Send(data); err != nil {
		c.sendErrors.Add(1)
	}
}
