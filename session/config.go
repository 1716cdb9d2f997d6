// Package session is the ambient layer that wires the pure blkif codecs to
// a running process: YAML configuration, a pluggable backend registry, and
// a synchronous dispatcher that executes decoded requests against a
// Backend. None of this is part of the protocol core; it is the reference
// "frontend"/"backend" runtime the cmd binaries use.
package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/xenproject/goblkif/blkif"
)

// SessionConfig holds the configuration for one blkif backend process,
// analogous to the teacher's ServerConfig: one process, many devices. The
// wire-level enum fields are kept as plain strings here, matching the
// teacher's convention of decoding driver-facing YAML into strings and
// validating separately, so that the core blkif package never has to know
// about YAML.
type SessionConfig struct {
	Protocol string         // one of "x86_64-abi", "x86_32-abi", "native"
	Devices  []DeviceConfig // devices this backend exports
}

// DeviceConfig holds the configuration for one exported device.
type DeviceConfig struct {
	Name             string                 // virtual device name, e.g. "51712"
	Driver           string                 // registered backend driver name
	ReadOnly         bool                   // true if exported read-only
	Media            string                 // "disk" or "cdrom"
	Removable        bool                   // true if removable media
	BackendDomid     int                    // domid hosting the backend
	FrontendDomid    int                    // domid hosting the frontend
	BackendPath      string                 // KV path for the backend node
	FrontendPath     string                 // KV path for the frontend node
	Workers          int                    // number of dispatcher workers
	DriverParameters DriverParametersConfig `yaml:",inline"` // driver parameters
}

// DriverParametersConfig is an arbitrary map of driver-specific parameters
// in string form, inlined alongside DeviceConfig's own fields.
type DriverParametersConfig map[string]string

// DefaultWorkers matches the teacher's DefaultWorkers in spirit: a modest
// default degree of dispatcher concurrency per device.
var DefaultWorkers = 1

// LoadSessionConfig reads and parses a YAML session configuration file.
func LoadSessionConfig(path string) (SessionConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("could not read config %s: %w", path, err)
	}
	var cfg SessionConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ProtocolValue validates and converts the configured protocol string.
func (c SessionConfig) ProtocolValue() (blkif.Protocol, error) {
	p, ok := blkif.ProtocolFromString(c.Protocol)
	if !ok {
		return 0, fmt.Errorf("unknown protocol: %s", c.Protocol)
	}
	return p, nil
}

// MediaValue validates and converts the configured media string.
func (d DeviceConfig) MediaValue() (blkif.Media, error) {
	m, ok := blkif.MediaFromString(d.Media)
	if !ok {
		return 0, fmt.Errorf("unknown media type: %s", d.Media)
	}
	return m, nil
}

// Connection builds the blkif.Connection descriptor that must be emitted
// to the KV store before a device's ring can be negotiated.
func (d DeviceConfig) Connection() (blkif.Connection, error) {
	media, err := d.MediaValue()
	if err != nil {
		return blkif.Connection{}, err
	}
	mode := blkif.ReadWrite
	if d.ReadOnly {
		mode = blkif.ReadOnly
	}
	return blkif.Connection{
		VirtualDevice: d.Name,
		BackendPath:   d.BackendPath,
		FrontendPath:  d.FrontendPath,
		BackendDomid:  d.BackendDomid,
		FrontendDomid: d.FrontendDomid,
		Mode:          mode,
		Media:         media,
		Removable:     d.Removable,
	}, nil
}

// IsTrue determines whether an argument is true.
func IsTrue(v string) (bool, error) {
	if v == "true" {
		return true, nil
	} else if v == "false" || v == "" {
		return false, nil
	}
	return false, fmt.Errorf("unknown boolean value: %s", v)
}

// IsFalse determines whether an argument is false.
func IsFalse(v string) (bool, error) {
	if v == "false" {
		return true, nil
	} else if v == "true" || v == "" {
		return false, nil
	}
	return false, fmt.Errorf("unknown boolean value: %s", v)
}
