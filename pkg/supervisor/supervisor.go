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
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/shepherd/internal/log"
)

// Supervisor manages one external process across its full lifetime,
// including repeated restarts. All state mutation is serialized under a
// single mutex; the exit watcher, output capture and caller goroutines
// never race on the state machine.
type Supervisor struct {
	cfg      Config
	launcher *Launcher
	logger   *slog.Logger
	onOutput OutputFunc

	mu       sync.Mutex
	state    State
	gen      uint64 // run generation, bumped on every Start
	runID    string
	handle   *Handle
	startErr *StartError
	exitInfo *ExitStatus
	waiters  *waiterRegistry
}

// New creates a supervisor for the given launch configuration. The
// configuration is copied and immutable thereafter.
func New(cfg Config) *Supervisor {
	cfg.Args = append([]string(nil), cfg.Args...)
	if cfg.Env != nil {
		env := make(map[string]string, len(cfg.Env))
		for k, v := range cfg.Env {
			env[k] = v
		}
		cfg.Env = env
	}
	logger := log.WithComponent(slog.Default(), "supervisor").With(slog.String(log.ProcKey, cfg.Path))
	return &Supervisor{
		cfg:      cfg,
		launcher: NewLauncher(logger),
		logger:   logger,
		state:    NotStarted,
		waiters:  newWaiterRegistry(),
	}
}

// WithLogger sets the logger used by the supervisor and its launcher.
// The run already in flight keeps its previous logger; the change takes
// effect on the next Start.
func (s *Supervisor) WithLogger(logger *slog.Logger) *Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log.WithComponent(logger, "supervisor").With(slog.String(log.ProcKey, s.cfg.Path))
	s.launcher = NewLauncher(s.logger)
	return s
}

// WithOutput sets the callback invoked once per captured output line.
// The callback runs on the capture goroutines and must not block
// indefinitely. The run already in flight keeps its previous callback;
// the change takes effect on the next Start.
func (s *Supervisor) WithOutput(fn OutputFunc) *Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOutput = fn
	return s
}

// Config returns a copy of the launch configuration.
func (s *Supervisor) Config() Config {
	cfg := s.cfg
	cfg.Args = append([]string(nil), cfg.Args...)
	if cfg.Env != nil {
		env := make(map[string]string, len(cfg.Env))
		for k, v := range cfg.Env {
			env[k] = v
		}
		cfg.Env = env
	}
	return cfg
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunID returns the identifier of the current (or most recent) run, or ""
// before the first Start.
func (s *Supervisor) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// PID returns the OS process ID of the live child, or 0 when no process
// is running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.PID()
}

// LastStartError returns the launch failure of the current run, or nil.
// It is populated only in the StartFailed state and cleared by the next
// Start.
func (s *Supervisor) LastStartError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr == nil {
		return nil
	}
	return s.startErr
}

// LastExitInfo returns the exit record of the current run, or nil if no
// exit has been observed. It is cleared by the next Start.
func (s *Supervisor) LastExitInfo() *ExitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitInfo == nil {
		return nil
	}
	info := *s.exitInfo
	return &info
}

// Start begins a new run. It is legal only from NotStarted or a terminal
// state; calling it while a run is in flight returns an
// *InvalidTransitionError without touching the state machine.
//
// Launch validation is synchronous: when Start returns a *StartError the
// state is already StartFailed and LastStartError is populated, so callers
// can inspect the outcome immediately. On success the state is Running and
// the exit watcher is armed; it performs the single terminal transition for
// the run once the OS reports the exit, classified by the actual exit code.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted && !s.state.IsTerminal() {
		return &InvalidTransitionError{From: s.state, To: Starting}
	}

	// Records are run-scoped: clear before anything else so a caller never
	// sees run N-1 data attributed to run N.
	s.startErr = nil
	s.exitInfo = nil
	s.gen++
	s.runID = uuid.NewString()

	if err := s.transitionLocked(Starting); err != nil {
		return err
	}

	gen := s.gen
	handle, err := s.launcher.Launch(s.cfg, s.forwardOutput(gen))
	if err != nil {
		var startErr *StartError
		if !errors.As(err, &startErr) {
			startErr = &StartError{Path: s.cfg.Path, Err: err}
		}
		s.startErr = startErr
		startsTotal.WithLabelValues("failed").Inc()
		if terr := s.transitionLocked(StartFailed); terr != nil {
			return terr
		}
		s.logger.Warn("start failed", log.RunIDKey, s.runID, "error", err)
		return startErr
	}

	s.handle = handle
	startsTotal.WithLabelValues("ok").Inc()
	if err := s.transitionLocked(Running); err != nil {
		return err
	}
	s.logger.Info("process running", log.RunIDKey, s.runID, log.PIDKey, handle.PID())

	go s.watchExit(gen, handle)
	return nil
}

// Stop requests termination of the running process. It is legal only from
// Running; from any other state it returns ErrNotRunning.
//
// A graceful request (SIGTERM) is always issued first. With a zero timeout
// the process is force-killed immediately afterwards. With a positive
// timeout the exit race is armed: if the process exits within the grace
// period nothing more happens, otherwise it is force-killed. Stop returns
// once the request is issued; it does not wait for the exit. Callers that
// need the exit must wait for a terminal state.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	handle := s.handle
	if err := s.transitionLocked(Stopping); err != nil {
		s.mu.Unlock()
		return err
	}
	runID := s.runID
	logger := s.logger
	s.mu.Unlock()

	logger.Info("stopping process", log.RunIDKey, runID, log.PIDKey, handle.PID(), "grace_ms", timeout.Milliseconds())
	if err := handle.RequestGracefulStop(); err != nil {
		logger.Warn("graceful stop request failed", log.RunIDKey, runID, "error", err)
	}

	if timeout <= 0 {
		forceKills.Inc()
		return handle.ForceKill()
	}

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-handle.Done():
			// Exited within the grace period; the exit watcher records it.
		case <-timer.C:
			forceKills.Inc()
			logger.Warn("grace period expired, killing process", log.RunIDKey, runID, log.PIDKey, handle.PID())
			if err := handle.ForceKill(); err != nil {
				logger.Error("force kill failed", log.RunIDKey, runID, "error", err)
			}
		}
	}()
	return nil
}

// WhenStateIs returns a channel closed when the target state becomes
// current. If the target is already current the channel is closed on
// return, so no transition is required. Each returned channel is resolved
// exactly once; waiters survive restarts and resolve on the next occurrence
// of the state.
func (s *Supervisor) WhenStateIs(target State) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == target {
		return closedChan
	}
	return s.waiters.register(target)
}

// WhenTerminal returns a channel closed when any terminal state becomes
// current, immediately if one already is.
func (s *Supervisor) WhenTerminal() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return closedChan
	}
	return s.waiters.registerTerminal()
}

// WaitFor blocks until the target state becomes current or the context is
// done.
func (s *Supervisor) WaitFor(ctx context.Context, target State) error {
	select {
	case <-s.WhenStateIs(target):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTerminal blocks until the current run reaches a terminal state and
// returns it, or returns the current state with the context error.
func (s *Supervisor) WaitTerminal(ctx context.Context) (State, error) {
	select {
	case <-s.WhenTerminal():
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// watchExit is the single consumer of a handle's exit notification. It
// records the exit and performs the terminal transition for the run,
// exactly once, regardless of whether the exit was spontaneous,
// cooperative or forced.
func (s *Supervisor) watchExit(gen uint64, handle *Handle) {
	status, ok := <-handle.Exited()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		// A stale watcher from a superseded run must not touch state.
		return
	}

	info := status
	s.exitInfo = &info
	s.handle = nil
	runDuration.Observe(status.Duration.Seconds())

	to := ExitedWithError
	if status.Code == 0 {
		to = ExitedSuccessfully
	}
	if err := s.transitionLocked(to); err != nil {
		s.logger.Error("exit transition rejected", log.RunIDKey, s.runID, "error", err)
		return
	}
	s.logger.Info("process exited", log.RunIDKey, s.runID, log.ExitCodeKey, status.Code, log.DurationKey, status.Duration.Milliseconds())
}

// forwardOutput wraps the subscriber callback with a generation check so no
// output from a superseded run is ever delivered after a new Start. The
// callback is captured here, under the Start lock, so a WithOutput call
// during the run cannot race the capture goroutines.
func (s *Supervisor) forwardOutput(gen uint64) OutputFunc {
	fn := s.onOutput
	if fn == nil {
		return nil
	}
	return func(line OutputLine) {
		s.mu.Lock()
		stale := s.gen != gen
		s.mu.Unlock()
		if !stale {
			fn(line)
		}
	}
}

// transitionLocked applies a state change after checking it against the
// transition table, then resolves matching waiters. Must be called with
// s.mu held; waiters therefore always observe the satisfying state or
// later.
func (s *Supervisor) transitionLocked(to State) error {
	if !CanTransition(s.state, to) {
		return &InvalidTransitionError{From: s.state, To: to}
	}
	from := s.state
	s.state = to
	stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	s.logger.Debug("state transition", log.RunIDKey, s.runID, "from", from.String(), "to", to.String())
	s.waiters.notify(to)
	return nil
}
