package coordinator

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pitchgrid/mapper/internal/controller"
	"github.com/pitchgrid/mapper/internal/layout"
	"github.com/pitchgrid/mapper/internal/obs"
	"github.com/pitchgrid/mapper/internal/tuning"
)

// waitForStreams polls for the asynchronous color-send goroutine spawned
// by recomputeLocked to have produced at least one stream, since
// recompute never blocks its caller on that send.
func waitForStreams(t *testing.T, core *fakeCore) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		core.mu.Lock()
		n := len(core.streamsSent)
		core.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for an asynchronous color stream send")
}

const testDescriptorYAML = `
deviceName: "Test Grid"
midiDeviceName: "Test Grid"
numRows: 2
firstRowIdx: 0
rowLengths: [4, 4]
rowOffsets: [0, 0]
horizonToRowAngle: 90
rowToColAngle: 90
xSpacing: 1
ySpacing: 1
defaultIsoRootX: 0
defaultIsoRootY: 0
noteToCoordX: "note % 4"
noteToCoordY: "note / 4"
setPadNotesBulk: "0xF0 {#for pad in pads} pad.x pad.y pad.noteNumber {#end} 0xF7"
setPadColorsBulk: "0xF0 {#for pad in pads} pad.x pad.y pad.red pad.green pad.blue {#end} 0xF7"
`

func writeTestDescriptor(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDescriptorYAML), 0o644))
	return path
}

func loadCompiled(t *testing.T) *controller.Compiled {
	t.Helper()
	d, err := controller.Load(writeTestDescriptor(t))
	require.NoError(t, err)
	c, err := controller.Compile(d, obs.New("[test] "))
	require.NoError(t, err)
	return c
}

type fakeCore struct {
	mu sync.Mutex

	connected     bool
	forward       map[layout.Pad]int
	reverse       map[int]layout.Pad
	generation    int
	streamsSent   [][]byte
	setupsSent    [][]byte
	injected      [][]byte
	connectCalls  int
	disconnectErr error
}

func (f *fakeCore) ConnectController(string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.connectCalls++
	return nil
}

func (f *fakeCore) DisconnectController() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeCore) IsControllerConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeCore) UpdateNoteMapping(forward map[layout.Pad]int, reverse map[int]layout.Pad) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forward = forward
	f.reverse = reverse
}

func (f *fakeCore) CancelColorSend() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	return f.generation
}

func (f *fakeCore) SendColorStream(generation int, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamsSent = append(f.streamsSent, data)
}

func (f *fakeCore) SendSetup(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupsSent = append(f.setupsSent, data)
}

func (f *fakeCore) InjectVirtual(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected = append(f.injected, data)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeCore, *controller.Compiled) {
	t.Helper()
	core := &fakeCore{}
	co := New(core, obs.New("[test] "))
	c := loadCompiled(t)
	co.RegisterController("test-grid", c)
	return co, core, c
}

func TestSwitchControllerPopulatesReverseMappingBeforeAnyTuning(t *testing.T) {
	co, core, _ := newTestCoordinator(t)
	require.NoError(t, co.SwitchController("test-grid"))

	core.mu.Lock()
	defer core.mu.Unlock()
	// No tuning has arrived yet, so pad_to_index is legitimately empty;
	// the reverse (native note -> pad) table comes straight from the
	// descriptor and is populated regardless.
	require.Empty(t, core.forward)
	require.NotEmpty(t, core.reverse)
}

func TestSwitchControllerUnknownNameErrors(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	require.Error(t, co.SwitchController("nope"))
}

func TestConnectOpensPortsAndSendsSetup(t *testing.T) {
	co, core, _ := newTestCoordinator(t)
	require.NoError(t, co.Connect("test-grid"))

	require.True(t, co.IsConnected())
	core.mu.Lock()
	defer core.mu.Unlock()
	require.Equal(t, 1, core.connectCalls)
	require.Len(t, core.setupsSent, 1)
}

func TestOnTuningRetunesIsomorphicAndRecomputes(t *testing.T) {
	co, core, _ := newTestCoordinator(t)
	require.NoError(t, co.SwitchController("test-grid"))

	require.NoError(t, co.OnTuning(tuning.Tuning{
		Depth: 1, Mode: 0, RootFreq: 440, Stretch: 1, Skew: 0, Steps: 12,
	}))

	core.mu.Lock()
	require.NotEmpty(t, core.forward)
	core.mu.Unlock()
	waitForStreams(t, core)
}

func TestUpdateLayoutSwitchesVariantAndRecomputes(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	require.NoError(t, co.SwitchController("test-grid"))
	require.NoError(t, co.UpdateLayout(layout.KindStringLike))

	co.mu.Lock()
	kind := co.calc.Kind()
	co.mu.Unlock()
	require.Equal(t, layout.KindStringLike, kind)
}

func TestApplyTransformationWithoutLayoutErrors(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	require.Error(t, co.ApplyTransformation(layout.ShiftLeft))
}

func TestTriggerNoteInjectsVirtualNoteForMappedPad(t *testing.T) {
	co, core, _ := newTestCoordinator(t)
	require.NoError(t, co.SwitchController("test-grid"))
	require.NoError(t, co.OnTuning(tuning.Tuning{
		Depth: 1, Mode: 0, RootFreq: 440, Stretch: 1, Skew: 0, Steps: 12,
	}))

	co.mu.Lock()
	var anyPad layout.Pad
	for p := range co.padToIndex {
		anyPad = p
		break
	}
	co.mu.Unlock()

	co.TriggerNote(anyPad, 100, true)

	core.mu.Lock()
	defer core.mu.Unlock()
	require.Len(t, core.injected, 1)
	require.Equal(t, byte(0x90), core.injected[0][0])
}

func TestTriggerNoteOnUnmappedPadIsANoop(t *testing.T) {
	co, core, _ := newTestCoordinator(t)
	require.NoError(t, co.SwitchController("test-grid"))

	co.TriggerNote(layout.Pad{LX: 999, LY: 999}, 100, true)

	core.mu.Lock()
	defer core.mu.Unlock()
	require.Empty(t, core.injected)
}

func TestOnNoteEventEmitsStatusEvent(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	co.OnNoteEvent(layout.Pad{LX: 1, LY: 1}, true)

	ev := <-co.Events()
	require.Equal(t, "note_event", ev.Kind)
	require.NotEmpty(t, ev.ID)
}

func TestRecomputeWithoutCurrentControllerIsANoop(t *testing.T) {
	co := New(&fakeCore{}, obs.New("[test] "))
	require.NoError(t, co.Recompute())
}
