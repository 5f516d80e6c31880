// Package config loads the immutable Settings value threaded through the
// rest of the mapper's constructors (spec.md §10.2): no process-wide
// singleton, no mutation after Load.
//
// Grounded on the teacher's internal/config/config.go (Load/Save pair
// around a JSON document, os.UserConfigDir-based default path,
// default-on-missing-file semantics), serialized with jsoniter the way
// schollz-221e/internal/storage does rather than encoding/json.
package config

import (
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Settings is the fully-resolved, immutable application configuration.
type Settings struct {
	VirtualOutputName       string        `json:"virtual_output_name"`
	OSCListenHost           string        `json:"osc_listen_host"`
	OSCListenPort           int           `json:"osc_listen_port"`
	ControllerDescriptorDir string        `json:"controller_descriptor_dir"`
	QueueCapacity           int           `json:"queue_capacity"`
	DiscoveryInterval       time.Duration `json:"discovery_interval"`
	InterMessageDelay       time.Duration `json:"inter_message_delay"`
	DefaultColorPalette     []string      `json:"default_color_palette,omitempty"`
}

// Default returns the built-in settings used when no config file exists
// yet, mirroring the teacher's Load's "return defaults if not found".
func Default() Settings {
	return Settings{
		VirtualOutputName:       "PitchGrid Mapper",
		OSCListenHost:           "127.0.0.1",
		OSCListenPort:           9000,
		ControllerDescriptorDir: "controllers",
		QueueCapacity:           1024,
		DiscoveryInterval:       3 * time.Second,
		InterMessageDelay:       1500 * time.Microsecond,
	}
}

func dir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "pitchgrid-mapper"), nil
}

// Path returns the full path to the settings file.
func Path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "settings.json"), nil
}

// Load reads settings from disk, returning Default() if the file doesn't
// exist yet.
func Load() (Settings, error) {
	path, err := Path()
	if err != nil {
		return Settings{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes s to disk, creating the settings directory if needed.
func Save(s Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
