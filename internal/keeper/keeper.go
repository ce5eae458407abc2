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

// Package keeper runs a supervisor under a restart policy: it restarts
// non-terminating processes that exit unexpectedly, throttled by a rate
// limiter, and optionally bounces the process when its executable changes
// on disk. Every run is recorded in the history store.
package keeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/shepherd/internal/history"
	"github.com/tombee/shepherd/internal/log"
	"github.com/tombee/shepherd/pkg/supervisor"
)

// Recorder persists completed runs. *history.Store implements it.
type Recorder interface {
	RecordRun(ctx context.Context, run history.Run) error
}

// Options configures a Keeper.
type Options struct {
	// GracePeriod is passed to Stop when the keeper terminates the child.
	GracePeriod time.Duration

	// Restart re-launches a non-terminating process after it exits.
	Restart bool

	// MaxRestartsPerMinute caps the restart rate. Zero means 6.
	MaxRestartsPerMinute float64

	// WatchExecutable bounces the process when its binary changes.
	WatchExecutable bool

	// PIDFile, when set, receives the child PID for each run.
	PIDFile string

	// Recorder receives every completed run. Nil disables history.
	Recorder Recorder

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Keeper drives one supervisor through successive runs.
type Keeper struct {
	sup     *supervisor.Supervisor
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter
}

// New creates a keeper for the given supervisor.
func New(sup *supervisor.Supervisor, opts Options) *Keeper {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	perMinute := opts.MaxRestartsPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	return &Keeper{
		sup:     sup,
		opts:    opts,
		logger:  log.WithComponent(opts.Logger, "keeper"),
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1),
	}
}

// Run supervises until the context is cancelled or the process reaches a
// terminal state the policy does not restart. Cancellation triggers a
// graceful stop with the configured grace period. The final state of the
// last run is returned alongside any error.
func (k *Keeper) Run(ctx context.Context) (supervisor.State, error) {
	var watcher *BinaryWatcher
	if k.opts.WatchExecutable {
		w, err := NewBinaryWatcher(k.sup.Config().Path, k.logger)
		if err != nil {
			k.logger.Warn("executable watch unavailable", "error", err)
		} else {
			watcher = w
			defer watcher.Close()
		}
	}

	var pidFile *PIDFile
	if k.opts.PIDFile != "" {
		pidFile = NewPIDFile(k.opts.PIDFile)
		if stale, pid := pidFile.Stale(); !stale {
			k.logger.Warn("pid file refers to a running process, overwriting",
				"path", k.opts.PIDFile, log.PIDKey, pid)
		}
		defer pidFile.Remove()
	}

	for {
		startedAt := time.Now()
		if err := k.sup.Start(); err != nil {
			// A start failure would recur on restart; report it instead.
			k.record(startedAt)
			return k.sup.State(), err
		}

		if pidFile != nil {
			if err := pidFile.Write(k.sup.PID()); err != nil {
				k.logger.Warn("failed to write pid file", "error", err)
			}
		}

		bounced, err := k.awaitRun(ctx, watcher)
		k.record(startedAt)
		if err != nil {
			return k.sup.State(), err
		}

		state := k.sup.State()
		if !bounced && !k.shouldRestart(state) {
			return state, nil
		}

		if err := k.limiter.Wait(ctx); err != nil {
			// Wait refuses reservations that cannot complete before the
			// deadline; honor the context rather than failing early.
			<-ctx.Done()
			return state, ctx.Err()
		}
		k.logger.Info("restarting process", log.StateKey, state.String())
	}
}

// awaitRun blocks until the current run ends. It reports whether the run
// was ended deliberately by a binary change (which always restarts).
func (k *Keeper) awaitRun(ctx context.Context, watcher *BinaryWatcher) (bounced bool, err error) {
	var changed <-chan struct{}
	if watcher != nil {
		changed = watcher.Changed()
	}

	select {
	case <-k.sup.WhenTerminal():
		return false, nil
	case <-changed:
		k.logger.Info("executable changed on disk, bouncing process")
		k.stopAndWait()
		return true, nil
	case <-ctx.Done():
		k.stopAndWait()
		return false, ctx.Err()
	}
}

// stopAndWait issues a graceful stop and blocks until the run is terminal.
func (k *Keeper) stopAndWait() {
	if err := k.sup.Stop(k.opts.GracePeriod); err != nil && !errors.Is(err, supervisor.ErrNotRunning) {
		k.logger.Error("stop failed", "error", err)
	}
	<-k.sup.WhenTerminal()
}

func (k *Keeper) shouldRestart(state supervisor.State) bool {
	if !k.opts.Restart {
		return false
	}
	if k.sup.Config().RunType != supervisor.NonTerminating {
		return false
	}
	// A non-terminating process has no expected exit; any exit restarts.
	return state == supervisor.ExitedSuccessfully || state == supervisor.ExitedWithError
}

// record persists the finished run, when a recorder is configured.
func (k *Keeper) record(startedAt time.Time) {
	if k.opts.Recorder == nil {
		return
	}

	cfg := k.sup.Config()
	run := history.Run{
		ID:         k.sup.RunID(),
		Executable: cfg.Path,
		Args:       cfg.Args,
		Outcome:    k.sup.State().String(),
		StartedAt:  startedAt,
		EndedAt:    time.Now(),
	}
	if info := k.sup.LastExitInfo(); info != nil {
		code := info.Code
		run.ExitCode = &code
	}
	if err := k.sup.LastStartError(); err != nil {
		run.StartError = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.opts.Recorder.RecordRun(ctx, run); err != nil {
		k.logger.Error("failed to record run", log.RunIDKey, run.ID, "error", err)
	}
}
