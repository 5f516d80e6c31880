package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pitchgrid/mapper/internal/controller"
)

func TestAnyMatchesSubstring(t *testing.T) {
	d := &controller.Descriptor{MIDIDeviceName: "Launchpad"}
	require.True(t, anyMatches([]string{"Ableton Push", "Launchpad Pro MIDI 1"}, d))
	require.False(t, anyMatches([]string{"Ableton Push"}, d))
}

func TestAnyMatchesEmptyDeviceNameNeverMatches(t *testing.T) {
	d := &controller.Descriptor{}
	require.False(t, anyMatches([]string{"anything"}, d))
}

func TestStartStopDiscoveryIsIdempotentAndDoesNotRace(t *testing.T) {
	co := New(&fakeCore{}, nil)
	co.StartDiscovery(time.Hour)
	co.StartDiscovery(time.Hour) // second call is a no-op, not a second loop
	co.StopDiscovery()
	co.StopDiscovery() // stopping an already-stopped loop is a no-op
}
