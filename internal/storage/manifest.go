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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
	"lifeboard/internal/version"
)

const (
	ManifestFormat   = "lifeboard.board"
	ManifestVersion  = 1
	ManifestFileName = "board.json"
	BackupsDirName   = "backups"
)

//go:embed board.schema.json
var boardSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(boardSchema)

// Manifest is the portable JSON form of a board.
type Manifest struct {
	Format     string        `json:"format"`
	Version    int           `json:"version"`
	App        string        `json:"app,omitempty"`
	ExportedAt time.Time     `json:"exportedAt,omitzero"`
	Canvas     CanvasInfo    `json:"canvas"`
	Items      []domain.Item `json:"items"`
}

// CanvasInfo carries board-wide settings.
type CanvasInfo struct {
	Extent float64 `json:"extent"`
}

// ErrInvalidManifest wraps schema violations.
var ErrInvalidManifest = errors.New("invalid board manifest")

// NewManifest captures items in paint order.
func NewManifest(items []domain.Item, extent float64) Manifest {
	return Manifest{
		Format:     ManifestFormat,
		Version:    ManifestVersion,
		App:        "lifeboard " + version.String(),
		ExportedAt: time.Now().UTC(),
		Canvas:     CanvasInfo{Extent: extent},
		Items:      domain.PaintOrder(items),
	}
}

// ValidateManifest checks data against the embedded board schema.
func ValidateManifest(data []byte) error {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseManifest validates data and decodes it leniently. It returns how
// many items needed default substitution.
func ParseManifest(data []byte) (Manifest, int, error) {
	if err := ValidateManifest(data); err != nil {
		return Manifest{}, 0, err
	}
	var raw struct {
		Format  string `json:"format"`
		Version int    `json:"version"`
		App     string `json:"app"`
		Canvas  struct {
			Extent json.RawMessage `json:"extent"`
		} `json:"canvas"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, 0, fmt.Errorf("parse manifest: %w", err)
	}
	m := Manifest{Format: raw.Format, Version: raw.Version, App: raw.App, Canvas: CanvasInfo{Extent: domain.DefaultCanvasExtent}}
	var ext float64
	if json.Unmarshal(raw.Canvas.Extent, &ext) == nil && ext >= domain.MinCanvasExtent {
		m.Canvas.Extent = ext
	}
	repaired := 0
	for i, r := range raw.Items {
		it, fixed, err := domain.DecodeItem(r, m.Canvas.Extent)
		if err != nil {
			return Manifest{}, 0, fmt.Errorf("item %d: %w", i, err)
		}
		if fixed {
			repaired++
		}
		m.Items = append(m.Items, it)
	}
	return m, repaired, nil
}

// ExportJSON writes the board held by store to path. The previous file is
// copied to a timestamped backup next to it before being replaced.
func ExportJSON(ctx context.Context, store domain.ItemStore, path string, extent float64) (Manifest, error) {
	items, err := store.Items(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("export: %w", err)
	}
	m := NewManifest(items, extent)
	if err := SaveManifest(path, m); err != nil {
		return Manifest{}, err
	}
	applog.WithOperation(applog.WithComponent("storage"), "export_json").Info("board exported",
		slog.String("path", path), slog.Int("items", len(m.Items)))
	return m, nil
}

// SaveManifest writes m atomically: temp file in the same directory, fsync,
// then rename over the target.
func SaveManifest(path string, m Manifest) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("manifest path is required")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		bname := fmt.Sprintf("%s.%s.bak", filepath.Base(path), time.Now().Format("20060102-150405.000000"))
		if cerr := copyFile(path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// LoadManifest reads and parses path. If the file is missing or unreadable
// the newest backup next to it is used instead.
func LoadManifest(path string) (Manifest, int, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		m, n, perr := ParseManifest(data)
		if perr == nil {
			return m, n, nil
		}
		err = perr
	}
	m, n, berr := loadLatestBackup(path)
	if berr != nil {
		return Manifest{}, 0, fmt.Errorf("load manifest: %w; backup attempt: %v", err, berr)
	}
	applog.WithComponent("storage").Warn("manifest unreadable, using backup", slog.String("path", path), slog.Any("err", err))
	return m, n, nil
}

// ImportOptions controls ImportJSON.
type ImportOptions struct {
	// Replace deletes items whose id already exists before inserting.
	// Without it such items are skipped.
	Replace bool
}

// ImportResult summarizes an import.
type ImportResult struct {
	Created  int
	Skipped  int
	Repaired int
	Extent   float64
}

// ImportJSON loads a manifest and inserts its items into store keeping ids,
// geometry and relative order.
func ImportJSON(ctx context.Context, store domain.ItemStore, path string, opts ImportOptions) (ImportResult, error) {
	m, repaired, err := LoadManifest(path)
	if err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{Repaired: repaired, Extent: m.Canvas.Extent}
	existing, err := store.Items(ctx)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, it := range existing {
		have[it.ID] = true
	}
	for _, it := range domain.PaintOrder(m.Items) {
		if it.ID != "" && have[it.ID] {
			if !opts.Replace {
				res.Skipped++
				continue
			}
			if err := store.DeleteItem(ctx, it.ID); err != nil {
				return res, fmt.Errorf("import replace %s: %w", it.ID, err)
			}
		}
		g := it.Geometry()
		created, err := store.CreateItem(ctx, domain.NewItem{ID: it.ID, Kind: it.Kind, Geometry: &g, Payload: it.Payload})
		if err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		have[created.ID] = true
		res.Created++
	}
	applog.WithOperation(applog.WithComponent("storage"), "import_json").Info("board imported",
		slog.String("path", path), slog.Int("created", res.Created), slog.Int("skipped", res.Skipped), slog.Int("repaired", res.Repaired))
	return res, nil
}

func loadLatestBackup(path string) (Manifest, int, error) {
	backups, err := listBackups(filepath.Join(filepath.Dir(path), BackupsDirName), filepath.Base(path)+".", ".bak")
	if err != nil {
		return Manifest{}, 0, err
	}
	if len(backups) == 0 {
		return Manifest{}, 0, errors.New("no backups found")
	}
	data, err := os.ReadFile(backups[len(backups)-1])
	if err != nil {
		return Manifest{}, 0, fmt.Errorf("read latest backup: %w", err)
	}
	return ParseManifest(data)
}

// listBackups returns matching files in dir sorted oldest first; the
// timestamp in the name gives lexicographic order.
func listBackups(dir, prefix, suffix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
