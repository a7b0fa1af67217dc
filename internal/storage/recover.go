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
	"os"
	"path/filepath"
	"time"

	applog "lifeboard/internal/log"
)

// BackupDir is where snapshots and quarantined databases for the board at
// path are kept.
func BackupDir(path string) string {
	return filepath.Join(filepath.Dir(path), BackupsDirName)
}

// OpenOrRecover opens the board at path. If the database cannot be opened
// or fails its integrity check, the file is moved into the backup
// directory and a fresh board is rebuilt from the newest JSON snapshot.
// The bool reports whether a rebuild happened.
func OpenOrRecover(ctx context.Context, path string) (*Store, bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "recover").With(slog.String("path", path))
	s, err := Open(ctx, path)
	if err == nil {
		ok, cerr := s.QuickCheck(ctx)
		if cerr == nil && ok {
			return s, false, nil
		}
		_ = s.Close()
		err = fmt.Errorf("integrity check failed: %v", cerr)
	}
	l.Warn("board unusable, rebuilding", slog.Any("err", err))

	if qerr := quarantine(path); qerr != nil {
		return nil, false, fmt.Errorf("quarantine board: %w (open err: %v)", qerr, err)
	}
	s, oerr := Open(ctx, path)
	if oerr != nil {
		return nil, false, fmt.Errorf("rebuild board: %w (open err: %v)", oerr, err)
	}
	snaps, _ := listBackups(BackupDir(path), snapshotPrefix, ".json")
	if len(snaps) == 0 {
		l.Warn("no snapshot available, board starts empty")
		return s, true, nil
	}
	latest := snaps[len(snaps)-1]
	res, ierr := ImportJSON(ctx, s, latest, ImportOptions{})
	if ierr != nil {
		_ = s.Close()
		return nil, false, fmt.Errorf("restore from %s: %w", latest, ierr)
	}
	if res.Extent > 0 {
		_ = s.SetExtent(ctx, res.Extent)
	}
	l.Info("board restored from snapshot", slog.String("snapshot", latest), slog.Int("items", res.Created))
	return s, true, nil
}

func quarantine(path string) error {
	stamp := time.Now().Format("20060102-150405")
	dst := filepath.Join(BackupDir(path), fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), stamp))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(path, dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		_ = os.Remove(path + suffix)
	}
	return nil
}
