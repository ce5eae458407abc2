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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/shepherd/pkg/supervisor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shepherd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
process:
  path: /usr/bin/my-daemon
  args: ["--port", "9000"]
  dir: /var/lib/my-daemon
  env:
    PORT: "9000"
  run_type: non-terminating
stop:
  grace_period: 30s
restart:
  enabled: true
  max_per_minute: 12
  watch_executable: true
history:
  path: /var/lib/shepherd/history.db
metrics:
  addr: "127.0.0.1:9822"
pid_file: /run/my-daemon.pid
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "/usr/bin/my-daemon", cfg.Process.Path)
		assert.Equal(t, []string{"--port", "9000"}, cfg.Process.Args)
		assert.Equal(t, map[string]string{"PORT": "9000"}, cfg.Process.Env)
		assert.Equal(t, 30*time.Second, cfg.Stop.GracePeriod.Std())
		assert.True(t, cfg.Restart.Enabled)
		assert.Equal(t, 12.0, cfg.Restart.MaxPerMinute)
		assert.True(t, cfg.Restart.WatchExecutable)
		assert.Equal(t, "/var/lib/shepherd/history.db", cfg.History.Path)
		assert.Equal(t, "127.0.0.1:9822", cfg.Metrics.Addr)
		assert.Equal(t, "/run/my-daemon.pid", cfg.PIDFile)
	})

	t.Run("defaults", func(t *testing.T) {
		path := writeConfig(t, `
process:
  path: sleep
  args: ["60"]
  run_type: non-terminating
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 10*time.Second, cfg.Stop.GracePeriod.Std())
		assert.False(t, cfg.Restart.Enabled)
		assert.Equal(t, 6.0, cfg.Restart.MaxPerMinute)
		assert.Empty(t, cfg.History.Path)
		assert.Empty(t, cfg.Log.Level, "unset log level defers to the environment")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "process: ["))
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
process:
  path: sleep
  run_type: non-terminating
stop:
  grace_period: soon
`))
		assert.ErrorContains(t, err, "invalid duration")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Process.Path = "sleep"
		return cfg
	}

	t.Run("accepts valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("requires path", func(t *testing.T) {
		cfg := valid()
		cfg.Process.Path = ""
		assert.ErrorContains(t, cfg.Validate(), "process.path")
	})

	t.Run("rejects unknown run type", func(t *testing.T) {
		cfg := valid()
		cfg.Process.RunType = "forever"
		assert.ErrorContains(t, cfg.Validate(), "run_type")
	})

	t.Run("rejects restart of self-terminating process", func(t *testing.T) {
		cfg := valid()
		cfg.Process.RunType = string(supervisor.SelfTerminating)
		cfg.Restart.Enabled = true
		assert.ErrorContains(t, cfg.Validate(), "non-terminating")
	})

	t.Run("rejects invalid env key", func(t *testing.T) {
		cfg := valid()
		cfg.Process.Env = map[string]string{"A=B": "x"}
		assert.ErrorContains(t, cfg.Validate(), "environment key")
	})
}

func TestSupervisorConfig(t *testing.T) {
	cfg := Default()
	cfg.Process = ProcessConfig{
		Path:    "my-daemon",
		Args:    []string{"-v"},
		Dir:     "/tmp",
		Env:     map[string]string{"A": "1"},
		RunType: string(supervisor.SelfTerminating),
	}

	sc := cfg.Supervisor()
	assert.Equal(t, "my-daemon", sc.Path)
	assert.Equal(t, []string{"-v"}, sc.Args)
	assert.Equal(t, "/tmp", sc.Dir)
	assert.Equal(t, supervisor.SelfTerminating, sc.RunType)
}
