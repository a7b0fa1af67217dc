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
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
)

const snapshotPrefix = "board."

// BackupScheduler periodically snapshots a board to JSON files in Dir and
// keeps only the newest Keep of them.
type BackupScheduler struct {
	Store  domain.ItemStore
	Dir    string
	Keep   int
	Extent float64

	mu   sync.Mutex
	c    *cron.Cron
	log  *slog.Logger
	last string
}

// NewBackupScheduler returns a scheduler writing to dir.
func NewBackupScheduler(store domain.ItemStore, dir string, keep int) *BackupScheduler {
	return &BackupScheduler{Store: store, Dir: dir, Keep: keep, Extent: domain.DefaultCanvasExtent,
		log: applog.WithComponent("backup")}
}

// Start schedules snapshots with a standard five-field cron expression.
// An empty expression disables scheduling.
func (b *BackupScheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.c != nil {
		return fmt.Errorf("backup scheduler already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := b.Snapshot(ctx); err != nil {
			b.log.Error("scheduled backup failed", slog.Any("err", err))
		}
	}); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	c.Start()
	b.c = c
	b.log.Info("backups scheduled", slog.String("spec", spec), slog.String("dir", b.Dir))
	return nil
}

// Stop halts the schedule and waits for a running snapshot to finish.
func (b *BackupScheduler) Stop() {
	b.mu.Lock()
	c := b.c
	b.c = nil
	b.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Snapshot writes one backup now and prunes old ones. It returns the path
// written.
func (b *BackupScheduler) Snapshot(ctx context.Context) (string, error) {
	items, err := b.Store.Items(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}
	b.mu.Lock()
	name := snapshotPrefix + time.Now().UTC().Format("20060102-150405.000000") + ".json"
	if filepath.Join(b.Dir, name) <= b.last {
		// same microsecond; keep names strictly increasing
		name = filepath.Base(b.last[:len(b.last)-len(".json")]) + "1.json"
	}
	path := filepath.Join(b.Dir, name)
	b.last = path
	b.mu.Unlock()

	if err := SaveManifest(path, NewManifest(items, b.Extent)); err != nil {
		return "", err
	}
	if _, err := b.Prune(); err != nil {
		return path, err
	}
	b.log.Debug("snapshot written", slog.String("path", path), slog.Int("items", len(items)))
	return path, nil
}

// Snapshots lists the backup files oldest first.
func (b *BackupScheduler) Snapshots() ([]string, error) {
	if _, err := os.Stat(b.Dir); os.IsNotExist(err) {
		return nil, nil
	}
	return listBackups(b.Dir, snapshotPrefix, ".json")
}

// Prune removes all but the newest Keep snapshots. Keep <= 0 keeps all.
func (b *BackupScheduler) Prune() (int, error) {
	if b.Keep <= 0 {
		return 0, nil
	}
	files, err := b.Snapshots()
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(files) > b.Keep {
		if err := os.Remove(files[0]); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("prune %s: %w", files[0], err)
		}
		files = files[1:]
		removed++
	}
	return removed, nil
}
