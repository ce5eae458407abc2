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
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tombee/shepherd/internal/log"
)

// debounceWindow coalesces the burst of events a non-atomic binary
// replacement produces into a single change notification.
const debounceWindow = 500 * time.Millisecond

// BinaryWatcher watches a supervised executable on disk and signals when it
// is replaced or rewritten. The parent directory is watched rather than the
// file itself so rename-over-replace (the common install pattern) is seen.
type BinaryWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changed chan struct{}
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBinaryWatcher creates a watcher for the given executable. Relative
// names are resolved against PATH first.
func NewBinaryWatcher(path string, logger *slog.Logger) (*BinaryWatcher, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable: %w", err)
	}
	absPath, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	w := &BinaryWatcher{
		path:    absPath,
		watcher: fsw,
		changed: make(chan struct{}, 1),
		logger:  log.WithComponent(logger, "binarywatcher").With(slog.String(log.ProcKey, absPath)),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.eventLoop()
	return w, nil
}

// Changed returns the channel that receives one notification per detected
// change. Notifications are level-triggered: an unread notification absorbs
// later changes.
func (w *BinaryWatcher) Changed() <-chan struct{} {
	return w.changed
}

// Close stops watching. Safe to call once.
func (w *BinaryWatcher) Close() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *BinaryWatcher) eventLoop() {
	defer close(w.doneCh)

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				debounceC = debounce.C
			} else {
				debounce.Reset(debounceWindow)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.logger.Debug("executable changed")
			select {
			case w.changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}
