package midiio

import "time"

// interMessageDelay paces controller-bound sends so devices with slow
// ingest buffers don't drop bytes (spec.md §4.6, default 1.5ms).
const interMessageDelay = 1500 * time.Microsecond

// CancelColorSend increments the generation counter under a short lock and
// returns the new value. Any in-flight SendColorStream still carrying an
// older generation aborts cleanly at its next between-message check
// (spec.md §4.6).
func (c *Core) CancelColorSend() int {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.generation++
	return c.generation
}

func (c *Core) currentGeneration() int {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generation
}

// SendColorStream parses a wire byte stream produced by the template
// engine into individual MIDI messages and sends them one at a time to the
// controller output, checking generation between every message. Callers
// obtain generation from CancelColorSend immediately before starting the
// send, per the Python original's cancel-then-spawn-worker pattern.
func (c *Core) SendColorStream(generation int, data []byte) {
	messages, err := ParseMessages(data)
	if err != nil {
		c.logger.Infof("midiio: malformed wire stream, sending only %d parsed messages: %v", len(messages), err)
	}
	for i, msg := range messages {
		if c.currentGeneration() != generation {
			return
		}
		c.sendController(msg)
		if i < len(messages)-1 {
			time.Sleep(interMessageDelay)
		}
	}
}

// SendSetup sends a one-shot, non-cancellable wire stream — used for
// SetPadNoteAndChannel/SetPadNotesBulk setup rather than color refreshes,
// which are never superseded mid-flight the way color sends are.
func (c *Core) SendSetup(data []byte) {
	messages, err := ParseMessages(data)
	if err != nil {
		c.logger.Infof("midiio: malformed wire stream: %v", err)
	}
	for i, msg := range messages {
		c.sendController(msg)
		if i < len(messages)-1 {
			time.Sleep(interMessageDelay)
		}
	}
}

func (c *Core) sendController(data []byte) {
	c.portMu.Lock()
	out := c.controllerOut
	c.portMu.Unlock()
	if out == nil {
		return
	}
	if err := out.Send(data); err != nil {
		c.logger.Infof("midiio: controller output send error: %v", err)
	}
}
