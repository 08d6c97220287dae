// Package config loads the project-level YAML configuration that selects
// and parameterizes the state store and stream registry backends
// cmd/stepflowd wires up at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when Load is given a path that does not exist.
var ErrNotFound = errors.New("config: file not found")

// Adapter selects a state/stream backend implementation.
type Adapter string

const (
	AdapterMemory Adapter = "memory"
	AdapterFile   Adapter = "file"
	AdapterRemote Adapter = "remote"
)

// BackendConfig is the shared shape used by both the state and stream
// backend declarations.
type BackendConfig struct {
	Adapter  Adapter `yaml:"adapter"`
	Path     string  `yaml:"path,omitempty"`     // file adapter only
	Host     string  `yaml:"host,omitempty"`     // remote adapter only
	Port     int     `yaml:"port,omitempty"`     // remote adapter only
	Password string  `yaml:"password,omitempty"` // remote adapter only
	DB       int     `yaml:"db,omitempty"`       // remote adapter only
	TTL      string  `yaml:"ttl,omitempty"`      // remote adapter only, e.g. "30s"
}

// Addr returns "host:port" for the remote adapter.
func (b BackendConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// Duration parses TTL, returning zero (no expiry) when it is unset.
func (b BackendConfig) Duration() (time.Duration, error) {
	if b.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.TTL)
	if err != nil {
		return 0, fmt.Errorf("config: parse ttl %q: %w", b.TTL, err)
	}
	return d, nil
}

// Project is the top-level project configuration file.
type Project struct {
	StepsDir string        `yaml:"stepsDir"`
	State    BackendConfig `yaml:"state"`
	Stream   BackendConfig `yaml:"stream"`
}

// Load parses a YAML project config file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Project) validate() error {
	if p.StepsDir == "" {
		return errors.New("config: stepsDir is required")
	}
	if err := validateAdapter(p.State, "state"); err != nil {
		return err
	}
	if err := validateAdapter(p.Stream, "stream"); err != nil {
		return err
	}
	if p.Stream.Adapter == AdapterFile {
		return errors.New("config: stream backend has no file adapter")
	}
	return nil
}

func validateAdapter(b BackendConfig, field string) error {
	switch b.Adapter {
	case AdapterMemory:
		return nil
	case AdapterFile:
		if b.Path == "" {
			return fmt.Errorf("config: %s.path is required for the file adapter", field)
		}
		return nil
	case AdapterRemote:
		if b.Host == "" {
			return fmt.Errorf("config: %s.host is required for the remote adapter", field)
		}
		if _, err := b.Duration(); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("config: %s.adapter %q must be one of memory|file|remote", field, b.Adapter)
	}
}
