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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lifeboard/internal/domain"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryStore()
	for _, n := range []domain.NewItem{
		{ID: "top", Kind: "note", Geometry: geom(5, 5, 100, 100, 30, 9)},
		{ID: "bottom", Kind: "image", Geometry: geom(-50, 40, 300, 200, -720, -2)},
		{ID: "mid", Kind: "note", Geometry: geom(0, 0, 60, 60, 0, 4)},
	} {
		if _, err := m.CreateItem(ctx, n); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}
	return m
}

func TestMemoryStore_Basics(t *testing.T) {
	ctx := context.Background()
	m := seedMemory(t)
	items, _ := m.Items(ctx)
	if len(items) != 3 || items[0].ID != "bottom" || items[2].ID != "top" {
		t.Fatalf("paint order wrong: %v", items)
	}
	if _, err := m.CreateItem(ctx, domain.NewItem{ID: "top"}); err == nil {
		t.Fatalf("duplicate id must fail")
	}
	if err := m.UpdateItem(ctx, "mid", domain.ZIndexPatch(20)); err != nil {
		t.Fatal(err)
	}
	items, _ = m.Items(ctx)
	if items[2].ID != "mid" {
		t.Fatalf("mid should now be on top: %v", items)
	}
	if err := m.DeleteItem(ctx, "mid"); err != nil || m.Len() != 2 {
		t.Fatalf("delete: %v len=%d", err, m.Len())
	}
	if err := m.UpdateItem(ctx, "mid", domain.ZIndexPatch(1)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update deleted item err = %v", err)
	}
	fresh, _ := m.CreateItem(ctx, domain.NewItem{})
	if fresh.ID == "" || fresh.Seq != 4 {
		t.Fatalf("generated id/seq: %+v", fresh)
	}
}

func TestManifest_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seedMemory(t)
	path := filepath.Join(t.TempDir(), ManifestFileName)

	m, err := ExportJSON(ctx, src, path, 2500)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if len(m.Items) != 3 || m.Format != ManifestFormat {
		t.Fatalf("manifest = %+v", m)
	}
	data, _ := os.ReadFile(path)
	if err := ValidateManifest(data); err != nil {
		t.Fatalf("exported manifest fails its own schema: %v", err)
	}

	dst := openTestStore(t)
	res, err := ImportJSON(ctx, dst, path, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if res.Created != 3 || res.Skipped != 0 || res.Repaired != 0 || res.Extent != 2500 {
		t.Fatalf("result = %+v", res)
	}
	got, _ := dst.Items(ctx)
	want, _ := src.Items(ctx)
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Geometry() != want[i].Geometry() || got[i].Kind != want[i].Kind {
			t.Fatalf("item %d: got %+v want %+v", i, got[i], want[i])
		}
	}

	res, err = ImportJSON(ctx, dst, path, ImportOptions{})
	if err != nil || res.Created != 0 || res.Skipped != 3 {
		t.Fatalf("second import = %+v err=%v", res, err)
	}
	res, err = ImportJSON(ctx, dst, path, ImportOptions{Replace: true})
	if err != nil || res.Created != 3 {
		t.Fatalf("replace import = %+v err=%v", res, err)
	}
}

func TestManifest_SaveKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	if err := SaveManifest(path, NewManifest(nil, 3000)); err != nil {
		t.Fatal(err)
	}
	if err := SaveManifest(path, NewManifest([]domain.Item{{ID: "x", Size: domain.Size{Width: 60, Height: 60}}}, 3000)); err != nil {
		t.Fatal(err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil || len(ents) != 1 || !strings.HasSuffix(ents[0].Name(), ".bak") {
		t.Fatalf("expected one backup, got %v err=%v", ents, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*tmp*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestManifest_LenientDecodeAndSchemaErrors(t *testing.T) {
	doc := `{"format":"lifeboard.board","version":1,"canvas":{"extent":2000},"items":[
		{"id":"a","position":{"x":"12","y":null},"size":{"width":"wide","height":10},"rotation":"45","zIndex":"3"},
		{"id":7,"x":1,"y":2,"width":80,"height":90,"zIndex":1}
	]}`
	m, repaired, err := ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if repaired != 1 || len(m.Items) != 2 {
		t.Fatalf("repaired=%d items=%d", repaired, len(m.Items))
	}
	a := m.Items[0]
	if a.Position != (domain.Point{X: 1000, Y: 1000}) || a.Size != (domain.Size{Width: 200, Height: 50}) || a.Rotation != 45 || a.ZIndex != 3 {
		t.Fatalf("lenient decode: %+v", a.Geometry())
	}
	if m.Items[1].ID != "7" || m.Items[1].Size != (domain.Size{Width: 80, Height: 90}) {
		t.Fatalf("flat item: %+v", m.Items[1])
	}

	for _, bad := range []string{
		`{"items":[]}`,
		`{"format":"other","items":[]}`,
		`{"format":"lifeboard.board","items":[42]}`,
		`{"format":"lifeboard.board","items":[{"position":{"x":true}}]}`,
	} {
		if _, _, err := ParseManifest([]byte(bad)); !errors.Is(err, ErrInvalidManifest) {
			t.Fatalf("ParseManifest(%s) err = %v, want ErrInvalidManifest", bad, err)
		}
	}
}

func TestLoadManifest_FallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	good := NewManifest([]domain.Item{{ID: "saved", Size: domain.Size{Width: 60, Height: 60}, ZIndex: 2}}, 3000)
	if err := SaveManifest(path, good); err != nil {
		t.Fatal(err)
	}
	if err := SaveManifest(path, good); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, _, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Items) != 1 || m.Items[0].ID != "saved" {
		t.Fatalf("backup not used: %+v", m.Items)
	}
	if _, _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error without file or backups")
	}
}

func TestBackupScheduler_SnapshotAndPrune(t *testing.T) {
	ctx := context.Background()
	b := NewBackupScheduler(seedMemory(t), filepath.Join(t.TempDir(), BackupsDirName), 2)
	var paths []string
	for i := 0; i < 4; i++ {
		p, err := b.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		paths = append(paths, p)
	}
	snaps, err := b.Snapshots()
	if err != nil || len(snaps) != 2 {
		t.Fatalf("snapshots = %v err=%v", snaps, err)
	}
	if snaps[0] != paths[2] || snaps[1] != paths[3] {
		t.Fatalf("prune kept the wrong files: %v (written %v)", snaps, paths)
	}
	m, _, err := LoadManifest(snaps[1])
	if err != nil || len(m.Items) != 3 {
		t.Fatalf("snapshot content: %d items err=%v", len(m.Items), err)
	}
}

func TestBackupScheduler_StartValidatesSpec(t *testing.T) {
	b := NewBackupScheduler(NewMemoryStore(), t.TempDir(), 1)
	if err := b.Start(context.Background(), ""); err != nil {
		t.Fatalf("empty spec should disable: %v", err)
	}
	if err := b.Start(context.Background(), "not a cron"); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if err := b.Start(context.Background(), "@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Start(context.Background(), "@every 1h"); err == nil {
		t.Fatalf("second Start must fail")
	}
	b.Stop()
	b.Stop()
}

func TestWatcher_ReportsExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	changed := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, func(p string) { changed <- p }) }()

	// unrelated files in the same directory are ignored
	_ = os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644)
	for i := 0; i < 3; i++ {
		_ = os.WriteFile(path, []byte(`{"n":1}`), 0o644)
	}
	select {
	case p := <-changed:
		if p != w.Path() {
			t.Fatalf("path = %s", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change notification")
	}
	select {
	case p := <-changed:
		t.Fatalf("burst should be debounced into one notification, got another for %s", p)
	case <-time.After(400 * time.Millisecond):
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
