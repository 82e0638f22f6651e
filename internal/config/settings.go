// Package config holds the harness's own operational settings — distinct
// from internal/taskconfig.TaskConfig, which describes one contest task
// and is treated as pre-validated input out of the harness's own scope.
// Grounded on the teacher's internal/config package (same YAML-backed
// Settings shape, same LoadSettings "missing file is not an error"
// contract).
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskforge/benchkeep/internal/taskconfig"
)

// Settings are the harness's own run-time defaults, loaded from a YAML
// file at the task root (or overridden per-invocation by CLI flags).
type Settings struct {
	CachePath   string `yaml:"cache_path"`
	Workers     int    `yaml:"workers"`
	Strict      bool   `yaml:"strict"`
	Color       bool   `yaml:"color"`
	FailFast    bool   `yaml:"fail_fast"`
	TestingLog  bool   `yaml:"testing_log"`
	PostRun     string `yaml:"post_run"` // shell command run after the report is written

	// DefaultLimits overrides per-program-kind limits from TaskConfig
	// when the task's own config leaves a field at its zero value.
	DefaultLimits map[string]taskconfig.Limits `yaml:"default_limits,omitempty"`
}

const defaultCachePath = ".benchkeep/cache.db"

// DefaultSettings returns the harness's built-in defaults, used when no
// config file is present.
func DefaultSettings() *Settings {
	return &Settings{
		CachePath: defaultCachePath,
		Workers:   1,
		Color:     true,
	}
}

// LoadSettings reads a YAML settings file. A missing file is not an
// error — it returns DefaultSettings(), mirroring the teacher's
// LoadSettings "zero-value on ErrNotExist" contract.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return s, nil
}

// Save persists s to path with an atomic tmp-then-rename write, the same
// pattern the teacher's internal/state.Tracker uses for its state file.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// ResolveLimits returns the effective limits for a program kind: the
// task's own declared limits, with any zero-valued field filled in from
// the harness's DefaultLimits for that kind.
func (s *Settings) ResolveLimits(kind string, declared taskconfig.Limits) taskconfig.Limits {
	def, ok := s.DefaultLimits[kind]
	if !ok {
		return declared
	}
	out := declared
	if out.TimeSeconds == 0 {
		out.TimeSeconds = def.TimeSeconds
	}
	if out.ClockMultiplier == 0 {
		out.ClockMultiplier = def.ClockMultiplier
	}
	if out.ClockFloorSeconds == 0 {
		out.ClockFloorSeconds = def.ClockFloorSeconds
	}
	if out.MemoryKB == 0 {
		out.MemoryKB = def.MemoryKB
	}
	if out.MaxProcesses == 0 {
		out.MaxProcesses = def.MaxProcesses
	}
	return out
}
