package oscintake

import (
	"errors"
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/require"

	"github.com/pitchgrid/mapper/internal/obs"
	"github.com/pitchgrid/mapper/internal/tuning"
)

type fakeTuningSink struct {
	got []tuning.Tuning
	err error
}

func (f *fakeTuningSink) OnTuning(t tuning.Tuning) error {
	f.got = append(f.got, t)
	return f.err
}

type fakePlayingSink struct {
	got [][]int
}

func (f *fakePlayingSink) OnPlayingNotes(notes []int) {
	f.got = append(f.got, notes)
}

func tuningMessage() *osc.Message {
	msg := osc.NewMessage("/pitchgrid/tuning")
	msg.Append(int32(3))
	msg.Append(int32(0))
	msg.Append(float32(440))
	msg.Append(float32(1))
	msg.Append(float32(0))
	msg.Append(int32(0))
	msg.Append(int32(7))
	return msg
}

func TestHandleTuningParsesAndDispatches(t *testing.T) {
	sink := &fakeTuningSink{}
	s := New("127.0.0.1", 9001, sink, nil, obs.New("[test] "))

	s.handleTuning(tuningMessage())

	require.Len(t, sink.got, 1)
	require.Equal(t, tuning.Tuning{Depth: 3, Mode: 0, RootFreq: 440, Stretch: 1, Skew: 0, ModeOffset: 0, Steps: 7}, sink.got[0])
}

func TestHandleTuningWrongArgCountIsDropped(t *testing.T) {
	sink := &fakeTuningSink{}
	s := New("127.0.0.1", 9002, sink, nil, obs.New("[test] "))

	msg := osc.NewMessage("/pitchgrid/tuning")
	msg.Append(int32(1))
	s.handleTuning(msg)

	require.Empty(t, sink.got)
}

func TestHandleTuningSinkErrorIsLoggedNotPanicked(t *testing.T) {
	sink := &fakeTuningSink{err: errors.New("boom")}
	s := New("127.0.0.1", 9003, sink, nil, obs.New("[test] "))

	require.NotPanics(t, func() { s.handleTuning(tuningMessage()) })
	require.Len(t, sink.got, 1)
}

func TestHandleTuningWithNilSinkIsANoop(t *testing.T) {
	s := New("127.0.0.1", 9004, nil, nil, obs.New("[test] "))
	require.NotPanics(t, func() { s.handleTuning(tuningMessage()) })
}

func TestHandlePlayingForwardsNoteList(t *testing.T) {
	playing := &fakePlayingSink{}
	s := New("127.0.0.1", 9005, nil, playing, obs.New("[test] "))

	msg := osc.NewMessage("/pitchgrid/playing")
	msg.Append(int32(60))
	msg.Append(int32(64))
	msg.Append(int32(67))
	s.handlePlaying(msg)

	require.Equal(t, [][]int{{60, 64, 67}}, playing.got)
}

func TestHandleNotesDoesNotPanic(t *testing.T) {
	s := New("127.0.0.1", 9006, nil, nil, obs.New("[test] "))
	require.NotPanics(t, func() { s.handleNotes(osc.NewMessage("/pitchgrid/notes")) })
}
