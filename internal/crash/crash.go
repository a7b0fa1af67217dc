/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic at a command or window entry point into a
// report file plus a JSON autosave of the open board.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
	"lifeboard/internal/storage"
	"lifeboard/internal/telemetry"
	"lifeboard/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// autosaveTimeout bounds the board read during a crash.
const autosaveTimeout = 5 * time.Second

// Board identifies the board open when a panic happens. Store may be nil
// when nothing is open yet.
type Board struct {
	Path   string
	Extent float64
	Store  domain.ItemStore
}

// Recover captures a panic, logs it with the stack, writes a report file
// and snapshots the board next to its other backups.
//
// Usage: defer crash.Recover(board)
func Recover(b *Board) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(b, r, stack)
	if err != nil {
		l.Error("crash report failed", slog.Any("err", err))
	}
	if path, err := Autosave(b); err != nil {
		l.Error("autosave crash snapshot failed", slog.Any("err", err))
	} else if path != "" {
		l.Info("autosave crash snapshot written", slog.String("path", path))
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

// Autosave writes a board snapshot that OpenOrRecover can rebuild from.
// It returns "" when there is no board to save.
func Autosave(b *Board) (string, error) {
	if b == nil || b.Store == nil || b.Path == "" {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	s := storage.NewBackupScheduler(b.Store, storage.BackupDir(b.Path), 0)
	if b.Extent > 0 {
		s.Extent = b.Extent
	}
	return s.Snapshot(ctx)
}

func reportDir(b *Board) string {
	if b == nil || b.Path == "" {
		return os.TempDir()
	}
	dir := storage.BackupDir(b.Path)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func writeReport(b *Board, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(b), fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Lifeboard Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if b != nil && b.Path != "" {
		_, _ = fmt.Fprintf(&buf, "Board: %s\n", b.Path)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// opt-in upload
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
