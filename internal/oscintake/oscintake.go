// Package oscintake is the upstream tuning feed (spec.md §6): an OSC
// server binding /pitchgrid/tuning, /pitchgrid/notes (reserved), and
// /pitchgrid/playing (informational). Only the message schema is in
// scope — the transport itself is an external collaborator per spec.md's
// Non-goals.
//
// Grounded on the original's osc_handler.py (a dispatcher keyed by
// address, a threaded server, bound callback fields for each address) and
// on schollz-221e's main.go/internal/model, the only example repo using
// github.com/hypebeast/go-osc/osc.
package oscintake

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/pitchgrid/mapper/internal/obs"
	"github.com/pitchgrid/mapper/internal/tuning"
)

// TuningSink receives a parsed tuning tuple. Implemented by
// *coordinator.Coordinator in the wired application.
type TuningSink interface {
	OnTuning(t tuning.Tuning) error
}

// PlayingNotesSink receives the currently-sounding note list from
// /pitchgrid/playing — a fire-and-forget visualization hook, not required
// by any core operation (spec.md §6: "informational").
type PlayingNotesSink interface {
	OnPlayingNotes(notes []int)
}

// Server is the OSC intake server. Construct with New; start with
// ListenAndServe.
type Server struct {
	tuning  TuningSink
	playing PlayingNotesSink
	logger  *obs.Logger
	server  *osc.Server
}

// New builds a Server bound to host:port. playing may be nil if nothing
// consumes the informational feed.
func New(host string, port int, tuningSink TuningSink, playing PlayingNotesSink, logger *obs.Logger) *Server {
	if logger == nil {
		logger = obs.New("[oscintake] ")
	}
	s := &Server{tuning: tuningSink, playing: playing, logger: logger}

	d := osc.NewStandardDispatcher()
	d.AddMsgHandler("/pitchgrid/tuning", s.handleTuning)
	d.AddMsgHandler("/pitchgrid/notes", s.handleNotes)
	d.AddMsgHandler("/pitchgrid/playing", s.handlePlaying)

	s.server = &osc.Server{Addr: fmt.Sprintf("%s:%d", host, port), Dispatcher: d}
	return s
}

// ListenAndServe blocks serving OSC messages until the listener errors.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

func (s *Server) handleTuning(msg *osc.Message) {
	t, err := parseTuning(msg)
	if err != nil {
		s.logger.Infof("oscintake: malformed /pitchgrid/tuning: %v", err)
		return
	}
	if s.tuning == nil {
		return
	}
	if err := s.tuning.OnTuning(t); err != nil {
		s.logger.Errorf("oscintake: on_tuning: %v", err)
	}
}

// handleNotes is a reserved address (spec.md §6, §9 Open Question: its
// payload is unspecified, so this logs and does nothing rather than
// guessing a shape).
func (s *Server) handleNotes(msg *osc.Message) {
	s.logger.Infof("oscintake: /pitchgrid/notes received (reserved, unimplemented): %d args", len(msg.Arguments))
}

func (s *Server) handlePlaying(msg *osc.Message) {
	if s.playing == nil {
		return
	}
	notes := make([]int, 0, len(msg.Arguments))
	for i := range msg.Arguments {
		n, err := argInt(msg, i)
		if err != nil {
			continue
		}
		notes = append(notes, n)
	}
	s.playing.OnPlayingNotes(notes)
}

const tuningArgCount = 7

// parseTuning decodes /pitchgrid/tuning's (depth:int, mode:int,
// root_freq:float, stretch:float, skew:float, mode_offset:int, steps:int)
// per spec.md §6.
func parseTuning(msg *osc.Message) (tuning.Tuning, error) {
	if len(msg.Arguments) != tuningArgCount {
		return tuning.Tuning{}, fmt.Errorf("expected %d arguments, got %d", tuningArgCount, len(msg.Arguments))
	}

	depth, err := argInt(msg, 0)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("depth: %w", err)
	}
	mode, err := argInt(msg, 1)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("mode: %w", err)
	}
	rootFreq, err := argFloat(msg, 2)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("root_freq: %w", err)
	}
	stretch, err := argFloat(msg, 3)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("stretch: %w", err)
	}
	skew, err := argFloat(msg, 4)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("skew: %w", err)
	}
	modeOffset, err := argInt(msg, 5)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("mode_offset: %w", err)
	}
	steps, err := argInt(msg, 6)
	if err != nil {
		return tuning.Tuning{}, fmt.Errorf("steps: %w", err)
	}

	return tuning.Tuning{
		Depth:      depth,
		Mode:       mode,
		RootFreq:   rootFreq,
		Stretch:    stretch,
		Skew:       skew,
		ModeOffset: modeOffset,
		Steps:      steps,
	}, nil
}

func argInt(msg *osc.Message, i int) (int, error) {
	switch v := msg.Arguments[i].(type) {
	case int32:
		return int(v), nil
	case float32:
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %d: expected int, got %T", i, v)
	}
}

func argFloat(msg *osc.Message, i int) (float64, error) {
	switch v := msg.Arguments[i].(type) {
	case float32:
		return float64(v), nil
	case int32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %d: expected float, got %T", i, v)
	}
}
