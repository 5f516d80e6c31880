// Command pitchgridmapper wires config -> controller -> oscintake ->
// midiio -> coordinator and runs until interrupted.
//
// Grounded on schollz-221e/main.go's flag-parsing and signal-handling
// shape (flag.StringVar/IntVar, os/signal cleanup-on-exit), adapted from
// a TUI program's startup sequence to a headless service's.
package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pitchgrid/mapper/internal/config"
	"github.com/pitchgrid/mapper/internal/controller"
	"github.com/pitchgrid/mapper/internal/coordinator"
	"github.com/pitchgrid/mapper/internal/midiio"
	"github.com/pitchgrid/mapper/internal/obs"
	"github.com/pitchgrid/mapper/internal/oscintake"
)

func main() {
	var (
		virtualName    string
		oscHost        string
		oscPort        int
		controllerDir  string
		discoverySecs  int
		noAutoDiscover bool
	)

	def := config.Default()
	flag.StringVar(&virtualName, "virtual-name", def.VirtualOutputName, "virtual MIDI output name")
	flag.StringVar(&oscHost, "osc-host", def.OSCListenHost, "OSC listen host")
	flag.IntVar(&oscPort, "osc-port", def.OSCListenPort, "OSC listen port")
	flag.StringVar(&controllerDir, "controllers", def.ControllerDescriptorDir, "directory of controller descriptor YAML files")
	flag.IntVar(&discoverySecs, "discovery-interval", int(def.DiscoveryInterval.Seconds()), "MIDI port discovery poll interval, in seconds")
	flag.BoolVar(&noAutoDiscover, "no-auto-discover", false, "disable automatic controller port discovery")
	flag.Parse()

	logger := obs.New("[pitchgridmapper] ")

	settings, err := config.Load()
	if err != nil {
		logger.Errorf("config: %v, falling back to defaults", err)
		settings = def
	}
	settings.VirtualOutputName = virtualName
	settings.OSCListenHost = oscHost
	settings.OSCListenPort = oscPort
	settings.ControllerDescriptorDir = controllerDir
	settings.DiscoveryInterval = time.Duration(discoverySecs) * time.Second

	// The coordinator and the MIDI core each need a reference to the
	// other (coordinator drives the core; the core calls back into the
	// coordinator's NoteEventSink on every remapped note). Build the core
	// first with no sink, then wire the coordinator in once it exists.
	core := midiio.New(settings.VirtualOutputName, nil, logger.Named("midiio"))
	co := coordinator.New(core, logger.Named("coordinator"))
	core.SetSink(co)

	loadControllers(controllerDir, co, logger)

	if err := core.Start(); err != nil {
		logger.Errorf("midiio: failed to start: %v", err)
		os.Exit(1)
	}
	defer core.Stop()

	if !noAutoDiscover {
		co.StartDiscovery(settings.DiscoveryInterval)
		defer co.StopDiscovery()
	}

	oscServer := oscintake.New(settings.OSCListenHost, settings.OSCListenPort, co, nil, logger.Named("oscintake"))
	go func() {
		if err := oscServer.ListenAndServe(); err != nil {
			logger.Errorf("oscintake: %v", err)
		}
	}()

	logger.Infof("pitchgridmapper listening for OSC tuning updates on %s:%d", settings.OSCListenHost, settings.OSCListenPort)
	waitForShutdownSignal(logger)
}

// loadControllers compiles every *.yaml descriptor under dir and
// registers it with the coordinator by filename stem. A malformed
// descriptor is a ConfigLoad-class error (spec.md §7): logged and
// skipped, not fatal.
func loadControllers(dir string, co *coordinator.Coordinator, logger *obs.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Errorf("controllers: reading %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, name)
		d, err := controller.Load(path)
		if err != nil {
			logger.Errorf("controllers: %s: %v", path, err)
			continue
		}
		c, err := controller.Compile(d, logger.Named("controller"))
		if err != nil {
			logger.Errorf("controllers: %s: %v", path, err)
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		co.RegisterController(stem, c)
		logger.Infof("controllers: loaded %q from %s", stem, path)
	}
}

func waitForShutdownSignal(logger *obs.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-c
	logger.Infof("pitchgridmapper: shutting down")
}
