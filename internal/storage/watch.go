/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "lifeboard/internal/log"
)

// DefaultDebounce coalesces bursts of writes into one notification.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to a board file made by other processes. It
// watches the parent directory so atomic replace-by-rename is seen too.
type Watcher struct {
	path     string
	debounce time.Duration
	w        *fsnotify.Watcher
	log      *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher starts watching path. Call Run to receive notifications.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch dir %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: abs, debounce: debounce, w: fw, log: applog.WithComponent("watcher"), done: make(chan struct{})}, nil
}

// Path is the absolute file being watched.
func (w *Watcher) Path() string { return w.path }

// Run delivers debounced change notifications to onChange until ctx is
// cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, _ := filepath.Abs(ev.Name)
			if abs != w.path && !isSidecar(abs, w.path) {
				continue
			}
			w.schedule(onChange)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", slog.Any("err", err))
		}
	}
}

// SQLite commits land in the -wal or -journal file next to the database.
func isSidecar(name, path string) bool {
	return name == path+"-wal" || name == path+"-journal"
}

func (w *Watcher) schedule(onChange func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.log.Debug("board changed on disk", slog.String("path", w.path))
		onChange(w.path)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return nil
	default:
		close(w.done)
	}
	w.mu.Unlock()
	return w.w.Close()
}
