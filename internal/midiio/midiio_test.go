package midiio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitchgrid/mapper/internal/obs"
)

func TestParseMessagesRoundTripsTwoConcatenatedMessages(t *testing.T) {
	noteOn := []byte{0x90, 60, 100}
	sysex := []byte{0xF0, 0x01, 0x02, 0xF7}
	combined := append(append([]byte{}, noteOn...), sysex...)

	msgs, err := ParseMessages(combined)
	require.NoError(t, err)
	require.Equal(t, [][]byte{noteOn, sysex}, msgs)
}

func TestParseMessagesProgramChangeTakesOneDataByte(t *testing.T) {
	msgs, err := ParseMessages([]byte{0xC0, 5, 0x90, 1, 2})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0xC0, 5}, {0x90, 1, 2}}, msgs)
}

func TestParseMessagesRealTimeSingleByte(t *testing.T) {
	msgs, err := ParseMessages([]byte{0xF8, 0xFA})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0xF8}, {0xFA}}, msgs)
}

func TestParseMessagesTruncatedChannelMessageErrors(t *testing.T) {
	_, err := ParseMessages([]byte{0x90, 60})
	require.Error(t, err)
}

func TestParseMessagesUnterminatedSysexErrors(t *testing.T) {
	_, err := ParseMessages([]byte{0xF0, 0x01, 0x02})
	require.Error(t, err)
}

func TestQueueSaturationDropsTheMessageOverCapacity(t *testing.T) {
	q := newInboundQueue()
	for i := 0; i < queueCapacity; i++ {
		require.True(t, q.Push([]byte{byte(i)}), "push %d should succeed", i)
	}
	require.False(t, q.Push([]byte{0xFF}), "the 1025th push should be dropped")
}

func TestCancelColorSendIncrementsGeneration(t *testing.T) {
	c := New("test-virtual", nil, obs.New("[test] "))
	g1 := c.CancelColorSend()
	g2 := c.CancelColorSend()
	require.Equal(t, g1+1, g2)
}

type fakeSink struct {
	calls []sinkCall
}

type sinkCall struct {
	pad    Pad
	noteOn bool
}

func (f *fakeSink) OnNoteEvent(pad Pad, noteOn bool) {
	f.calls = append(f.calls, sinkCall{pad: pad, noteOn: noteOn})
}

func TestHandleInboundRemapsOnHitAndNotifiesSink(t *testing.T) {
	sink := &fakeSink{}
	c := New("test-virtual", sink, obs.New("[test] "))

	pad := Pad{LX: 2, LY: 3}
	c.UpdateNoteMapping(map[Pad]int{pad: 67}, map[int]Pad{60: pad})

	c.handleInbound([]byte{0x90, 60, 100})

	require.Equal(t, uint64(1), c.Stats().NotesRemapped)
	require.Len(t, sink.calls, 1)
	require.Equal(t, pad, sink.calls[0].pad)
	require.True(t, sink.calls[0].noteOn)
}

func TestHandleInboundDropsOnReverseMiss(t *testing.T) {
	sink := &fakeSink{}
	c := New("test-virtual", sink, obs.New("[test] "))
	c.UpdateNoteMapping(map[Pad]int{}, map[int]Pad{})

	c.handleInbound([]byte{0x90, 60, 100})

	require.Equal(t, uint64(0), c.Stats().NotesRemapped)
	require.Empty(t, sink.calls)
	require.Equal(t, uint64(1), c.Stats().MessagesProcessed)
	require.Equal(t, uint64(1), c.Stats().DroppedNotes)
}

func TestHandleInboundDropsOnForwardMiss(t *testing.T) {
	sink := &fakeSink{}
	c := New("test-virtual", sink, obs.New("[test] "))
	pad := Pad{LX: 0, LY: 0}
	// native note resolves to a pad, but that pad has no current index
	// (e.g. it fell outside coord_to_scale_index after a retune).
	c.UpdateNoteMapping(map[Pad]int{}, map[int]Pad{60: pad})

	c.handleInbound([]byte{0x90, 60, 100})

	require.Equal(t, uint64(0), c.Stats().NotesRemapped)
	require.Empty(t, sink.calls)
	require.Equal(t, uint64(1), c.Stats().DroppedNotes)
}

type panickingSink struct{}

func (panickingSink) OnNoteEvent(Pad, bool) { panic("sink exploded") }

func TestHandleInboundRecoversFromPanickingSink(t *testing.T) {
	c := New("test-virtual", panickingSink{}, obs.New("[test] "))
	pad := Pad{LX: 1, LY: 1}
	c.UpdateNoteMapping(map[Pad]int{pad: 67}, map[int]Pad{60: pad})

	require.NotPanics(t, func() {
		c.handleInbound([]byte{0x90, 60, 100})
	})
	require.Equal(t, uint64(1), c.Stats().NotesRemapped)
}

func TestHandleInboundPassesNonNoteMessagesThrough(t *testing.T) {
	c := New("test-virtual", nil, obs.New("[test] "))
	require.NotPanics(t, func() {
		c.handleInbound([]byte{0xB0, 7, 127}) // control change
	})
	require.Equal(t, uint64(1), c.Stats().MessagesProcessed)
}

func TestIsControllerConnectedFalseInitially(t *testing.T) {
	c := New("test-virtual", nil, obs.New("[test] "))
	require.False(t, c.IsControllerConnected())
}
