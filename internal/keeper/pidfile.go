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

package keeper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrInvalidPID is returned when the PID file contains non-numeric data.
var ErrInvalidPID = errors.New("invalid PID in file")

// PIDFile publishes the current child PID. Unlike a daemon lock file it is
// rewritten on every restart, so creation is not exclusive; the file simply
// tracks the live process.
type PIDFile struct {
	path string
}

// NewPIDFile creates a manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Write records the PID, creating the parent directory if needed with
// restrictive permissions.
func (f *PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	data := []byte(fmt.Sprintf("%d\n", pid))
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. Returns ErrInvalidPID if the file holds
// non-numeric data.
func (f *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Stale reports whether the file refers to a process that is no longer
// running. A missing or unparseable file counts as stale. The second return
// is the PID found in the file, if any.
func (f *PIDFile) Stale() (bool, int) {
	pid, err := f.Read()
	if err != nil {
		return true, 0
	}
	return !processAlive(pid), pid
}

// processAlive checks for process existence with signal 0, which performs
// the permission check without delivering anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Remove deletes the file. Removing an absent file is not an error.
func (f *PIDFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
