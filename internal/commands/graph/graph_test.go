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

package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGraphCommand(t *testing.T) {
	t.Run("prints DOT to stdout", func(t *testing.T) {
		cmd := NewGraphCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(out.String(), "digraph supervisor") {
			t.Errorf("output missing digraph header: %q", out.String())
		}
		if !strings.Contains(out.String(), `"NotStarted" -> "Starting";`) {
			t.Errorf("output missing initial edge: %q", out.String())
		}
	})

	t.Run("writes DOT to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "states.dot")
		cmd := NewGraphCommand()
		cmd.SetArgs([]string{"-o", path})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("graph file not written: %v", err)
		}
		if !strings.Contains(string(data), `"Running" -> "Stopping";`) {
			t.Errorf("file missing stop edge: %q", string(data))
		}
	})
}
