// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the shepherd supervision spec from a
// YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/shepherd/pkg/supervisor"
)

// Duration wraps time.Duration with YAML support for strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements custom YAML unmarshaling so durations can be
// written in Go's duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go's duration syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ProcessConfig describes the child process to supervise.
type ProcessConfig struct {
	// Path is the executable to run, resolved against PATH when it has no
	// path separator.
	Path string `yaml:"path"`

	// Args are the command arguments.
	Args []string `yaml:"args,omitempty"`

	// Dir is the working directory. Empty means inherit.
	Dir string `yaml:"dir,omitempty"`

	// Env contains environment overrides, merged onto the inherited
	// environment. Override wins on key collision.
	Env map[string]string `yaml:"env,omitempty"`

	// RunType is "self-terminating" or "non-terminating".
	RunType string `yaml:"run_type"`
}

// StopConfig controls cooperative shutdown.
type StopConfig struct {
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	// Zero means kill immediately.
	GracePeriod Duration `yaml:"grace_period,omitempty"`
}

// RestartConfig controls the keeper's restart policy.
type RestartConfig struct {
	// Enabled restarts non-terminating processes that exit unexpectedly.
	Enabled bool `yaml:"enabled"`

	// MaxPerMinute caps the restart rate. Zero means the default of 6.
	MaxPerMinute float64 `yaml:"max_per_minute,omitempty"`

	// WatchExecutable restarts the process when its binary changes on disk.
	WatchExecutable bool `yaml:"watch_executable,omitempty"`
}

// HistoryConfig controls run-history persistence.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `yaml:"path,omitempty"`
}

// LogConfig mirrors the logging options of internal/log.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint of the run command.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `yaml:"addr,omitempty"`
}

// Config is the root of the shepherd configuration file.
type Config struct {
	Process ProcessConfig `yaml:"process"`
	Stop    StopConfig    `yaml:"stop,omitempty"`
	Restart RestartConfig `yaml:"restart,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// PIDFile, when set, receives the child PID for each run.
	PIDFile string `yaml:"pid_file,omitempty"`
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		Process: ProcessConfig{RunType: string(supervisor.NonTerminating)},
		Stop:    StopConfig{GracePeriod: Duration(10 * time.Second)},
		Restart: RestartConfig{MaxPerMinute: 6},
		// Log is left empty: unset fields defer to the environment.
	}
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors that would otherwise only
// surface at runtime.
func (c *Config) Validate() error {
	if c.Process.Path == "" {
		return fmt.Errorf("process.path is required")
	}

	switch supervisor.RunType(c.Process.RunType) {
	case supervisor.SelfTerminating, supervisor.NonTerminating:
	default:
		return fmt.Errorf("process.run_type must be %q or %q, got %q",
			supervisor.SelfTerminating, supervisor.NonTerminating, c.Process.RunType)
	}

	if c.Stop.GracePeriod < 0 {
		return fmt.Errorf("stop.grace_period must not be negative")
	}
	if c.Restart.MaxPerMinute < 0 {
		return fmt.Errorf("restart.max_per_minute must not be negative")
	}
	if c.Restart.Enabled && supervisor.RunType(c.Process.RunType) == supervisor.SelfTerminating {
		return fmt.Errorf("restart.enabled requires a non-terminating process")
	}

	for key := range c.Process.Env {
		if key == "" || strings.Contains(key, "=") {
			return fmt.Errorf("invalid environment key %q", key)
		}
	}
	return nil
}

// Supervisor builds the launch configuration for pkg/supervisor.
func (c *Config) Supervisor() supervisor.Config {
	return supervisor.Config{
		Path:    c.Process.Path,
		Args:    c.Process.Args,
		Dir:     c.Process.Dir,
		Env:     c.Process.Env,
		RunType: supervisor.RunType(c.Process.RunType),
	}
}
