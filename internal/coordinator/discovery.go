package coordinator

import (
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/pitchgrid/mapper/internal/controller"
)

// DefaultDiscoveryInterval is how often the discovery loop re-polls the
// system's MIDI port list, per spec.md §5 thread 3 ("periodic (interval
// in seconds, default 3)").
const DefaultDiscoveryInterval = 3 * time.Second

// discoveryState is guarded by its own lock rather than Coordinator.mu:
// port enumeration can block on the OS MIDI layer, and the discovery
// loop must never hold a lock that the hot recompute path also needs.
type discoveryState struct {
	mu          sync.Mutex
	knownInputs []string
	stop        chan struct{}
	wg          sync.WaitGroup
}

// StartDiscovery launches a background loop that polls available MIDI
// input ports every interval, auto-connecting to a registered controller
// whose descriptor matches an available port whenever no controller is
// connected, and auto-disconnecting when the connected controller's port
// disappears.
// A zero interval uses DefaultDiscoveryInterval.
func (co *Coordinator) StartDiscovery(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	co.discMu.Lock()
	if co.disc != nil {
		co.discMu.Unlock()
		return
	}
	d := &discoveryState{stop: make(chan struct{})}
	co.disc = d
	co.discMu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				co.pollOnce(d)
			}
		}
	}()
}

// StopDiscovery halts the discovery loop, if running.
func (co *Coordinator) StopDiscovery() {
	co.discMu.Lock()
	d := co.disc
	co.disc = nil
	co.discMu.Unlock()
	if d == nil {
		return
	}
	close(d.stop)
	d.wg.Wait()
}

// KnownInputPorts returns the MIDI input port names observed on the most
// recent discovery poll, or nil if discovery is not running or has not
// polled yet. Read from a
// dedicated lock so a UI can query it without contending with the
// recompute path.
func (co *Coordinator) KnownInputPorts() []string {
	co.discMu.Lock()
	d := co.disc
	co.discMu.Unlock()
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.knownInputs...)
}

func (co *Coordinator) pollOnce(d *discoveryState) {
	names := make([]string, 0, 8)
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}

	d.mu.Lock()
	d.knownInputs = names
	d.mu.Unlock()

	co.mu.Lock()
	current := co.current
	currentName := co.currentName
	connected := co.core != nil && co.core.IsControllerConnected()
	co.mu.Unlock()

	if connected && current != nil {
		if !anyMatches(names, current.Descriptor) {
			co.logger.Infof("coordinator: controller port for %q disappeared", currentName)
			co.Disconnect()
		}
		return
	}

	if current == nil || !connected {
		for name, c := range co.snapshotControllers() {
			if anyMatches(names, c.Descriptor) {
				co.logger.Infof("coordinator: auto-connecting to %q", name)
				if err := co.Connect(name); err != nil {
					co.logger.Errorf("coordinator: auto-connect %q failed: %v", name, err)
				}
				return
			}
		}
	}
}

func (co *Coordinator) snapshotControllers() map[string]*controller.Compiled {
	co.mu.Lock()
	defer co.mu.Unlock()
	out := make(map[string]*controller.Compiled, len(co.controllers))
	for k, v := range co.controllers {
		out[k] = v
	}
	return out
}

func anyMatches(portNames []string, d *controller.Descriptor) bool {
	for _, name := range portNames {
		if d.MatchesMIDIPort(name) {
			return true
		}
	}
	return false
}
