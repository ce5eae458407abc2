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

package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/tombee/shepherd/internal/log"
)

// RunType declares whether a supervised process is expected to exit on its
// own or must be told to stop.
type RunType string

const (
	// SelfTerminating processes exit on their own schedule; no Stop call
	// is expected.
	SelfTerminating RunType = "self-terminating"
	// NonTerminating processes run until stopped.
	NonTerminating RunType = "non-terminating"
)

// Stream identifies which output stream a line was captured from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// OutputLine is a single line of captured child output. Lines are ordered
// within a stream but carry no ordering guarantee across streams.
type OutputLine struct {
	Stream Stream
	Text   string
}

// OutputFunc receives captured output lines as they arrive. It is invoked
// from the capture goroutines; implementations must not block indefinitely.
type OutputFunc func(OutputLine)

// Config is the immutable launch configuration for a supervised process.
type Config struct {
	// Path is the executable to run. Resolved against PATH when it does
	// not contain a path separator.
	Path string

	// Args are the command arguments, not including the executable itself.
	Args []string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Env contains environment overrides merged onto the inherited
	// environment. Override wins on key collision.
	Env map[string]string

	// RunType declares the expected termination behavior.
	RunType RunType
}

// ExitStatus describes how a process run ended.
type ExitStatus struct {
	// Code is the numeric exit code. Processes killed by a signal report
	// 128+signal, following shell convention.
	Code int

	// Duration is the wall-clock time from launch to exit.
	Duration time.Duration
}

// Handle is a live supervised OS process. It is produced by Launcher.Launch
// and owned exclusively by the supervisor that launched it.
type Handle struct {
	cmd     *exec.Cmd
	pid     int
	started time.Time

	// exitCh delivers the exit status exactly once, then is closed.
	exitCh chan ExitStatus
	// done is closed after the exit status has been published.
	done chan struct{}
}

// PID returns the OS process ID.
func (h *Handle) PID() int {
	return h.pid
}

// Exited returns the channel carrying the single exit notification for
// this handle. The channel is closed after the value is delivered.
func (h *Handle) Exited() <-chan ExitStatus {
	return h.exitCh
}

// Done is closed once the process has exited and its status is recorded.
// Unlike Exited it can be selected on by any number of observers.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// RequestGracefulStop sends a cooperative termination request (SIGTERM) and
// returns immediately; it does not wait for the process to exit. Calling it
// after the process has exited is a no-op.
func (h *Handle) RequestGracefulStop() error {
	err := h.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal process %d: %w", h.pid, err)
	}
	return nil
}

// ForceKill immediately and unconditionally terminates the process with
// SIGKILL. It is idempotent: killing an already-exited process is a no-op.
func (h *Handle) ForceKill() error {
	err := h.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process %d: %w", h.pid, err)
	}
	return nil
}

// Launcher creates and monitors child processes. A single Launcher may be
// shared; each Launch call produces an independent Handle.
type Launcher struct {
	logger *slog.Logger
}

// NewLauncher creates a launcher that logs to the given logger.
func NewLauncher(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{logger: logger}
}

// Launch validates the configuration, starts the process and arms output
// capture and exit detection. Validation is eager: a missing executable or
// working directory fails here with a *StartError, before any process is
// created. On success the returned Handle is live and its output feed and
// exit notification are already running.
func (l *Launcher) Launch(cfg Config, onOutput OutputFunc) (*Handle, error) {
	path, err := exec.LookPath(cfg.Path)
	if err != nil {
		return nil, &StartError{Path: cfg.Path, Err: err}
	}

	if cfg.Dir != "" {
		info, err := os.Stat(cfg.Dir)
		if err != nil {
			return nil, &StartError{Path: cfg.Path, Err: fmt.Errorf("working directory %s: %w", cfg.Dir, err)}
		}
		if !info.IsDir() {
			return nil, &StartError{Path: cfg.Path, Err: fmt.Errorf("working directory %s is not a directory", cfg.Dir)}
		}
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	// Stdin stays nil so the child reads from the null device.

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Path: cfg.Path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &StartError{Path: cfg.Path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Path: cfg.Path, Err: err}
	}

	h := &Handle{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		started: time.Now(),
		exitCh:  make(chan ExitStatus, 1),
		done:    make(chan struct{}),
	}

	l.logger.Debug("process launched", log.ProcKey, cfg.Path, log.PIDKey, h.pid)

	var readers sync.WaitGroup
	readers.Add(2)
	go l.captureLines(&readers, Stdout, stdout, onOutput)
	go l.captureLines(&readers, Stderr, stderr, onOutput)

	go func() {
		// Drain both pipes before Wait so no buffered output is lost.
		readers.Wait()
		status := ExitStatus{
			Code:     exitCode(cmd.Wait()),
			Duration: time.Since(h.started),
		}
		l.logger.Debug("process exited", log.PIDKey, h.pid, log.ExitCodeKey, status.Code, log.DurationKey, status.Duration.Milliseconds())
		h.exitCh <- status
		close(h.exitCh)
		close(h.done)
	}()

	return h, nil
}

// captureLines forwards lines from one pipe to the output callback until
// the pipe closes.
func (l *Launcher) captureLines(wg *sync.WaitGroup, stream Stream, r io.Reader, onOutput OutputFunc) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onOutput != nil {
			onOutput(OutputLine{Stream: stream, Text: scanner.Text()})
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Debug("output capture ended", "stream", string(stream), "error", err)
	}
}

// exitCode converts the result of Cmd.Wait into a numeric exit code.
// Signal-terminated processes report 128+signal so a forced kill is
// distinguishable from a clean exit by code alone.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return -1
}

// mergeEnv appends overrides onto the inherited environment in sorted key
// order. os/exec uses the last value for a duplicated key, so an override
// always wins.
func mergeEnv(inherited []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return inherited
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(inherited)+len(keys))
	env = append(env, inherited...)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
