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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
	"lifeboard/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// BoardFileName is the default database file inside a board directory.
	BoardFileName = "board.sqlite"

	// schemaVersion tracks the board schema. Bump it and add a migration
	// step when the layout changes.
	schemaVersion = 2

	metaExtent = "canvas_extent"
)

// Store is the SQLite-backed board. It implements domain.ItemStore and is
// safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	extent float64
	log    *slog.Logger
}

var _ domain.ItemStore = (*Store)(nil)

// Open creates or opens the board database at path, enables WAL and brings
// the schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("board path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create board dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureBoardSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	s := &Store{db: db, path: path, extent: domain.DefaultCanvasExtent, log: applog.WithComponent("storage")}
	if v, ok, err := s.meta(ctx, metaExtent); err == nil && ok {
		if f, perr := strconv.ParseFloat(v, 64); perr == nil && f >= domain.MinCanvasExtent {
			s.extent = f
		}
	}
	l.Info("board ready")
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the handle for maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

// Extent is the canvas extent used for default positions.
func (s *Store) Extent() float64 { return s.extent }

// SetExtent persists the canvas extent. Values below the minimum are raised.
func (s *Store) SetExtent(ctx context.Context, extent float64) error {
	if extent < domain.MinCanvasExtent {
		extent = domain.MinCanvasExtent
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, metaExtent, strconv.FormatFloat(extent, 'f', -1, 64)); err != nil {
		return fmt.Errorf("set extent: %w", err)
	}
	s.extent = extent
	return nil
}

func (s *Store) meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return v, true, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh boards start at 1 and migrate forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// Geometry columns are nullable and untyped on purpose: rows written by
// older tools or edited by hand decode to defaults instead of failing.
func ensureBoardSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS items (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT    NOT NULL UNIQUE,
			kind       TEXT,
			x          REAL,
			y          REAL,
			width      REAL,
			height     REAL,
			rotation   REAL,
			z_index    INTEGER,
			payload    TEXT,
			created_at TEXT,
			updated_at TEXT
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure board schema: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_items_paint ON items(z_index, seq);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

const itemColumns = `seq, id, kind, x, y, width, height, rotation, z_index, payload, created_at, updated_at`

// Items returns every item in paint order. Corrupt geometry is replaced by
// defaults and logged at debug level.
func (s *Store) Items(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY z_index, seq`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var out []domain.Item
	for rows.Next() {
		it, err := s.scanItem(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return domain.PaintOrder(out), nil
}

// Item returns one item by id.
func (s *Store) Item(ctx context.Context, id string) (domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id=?`, id)
	it, err := s.scanItem(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return it, err
}

type scanner interface{ Scan(dest ...any) error }

func (s *Store) scanItem(ctx context.Context, r scanner) (domain.Item, error) {
	var (
		it                  domain.Item
		kind, payload       sql.NullString
		created, updated    sql.NullString
		x, y, w, h, rot, zi any
	)
	if err := r.Scan(&it.Seq, &it.ID, &kind, &x, &y, &w, &h, &rot, &zi, &payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return it, err
		}
		return it, fmt.Errorf("scan item: %w", err)
	}
	it.Kind = kind.String
	if payload.Valid && payload.String != "" && json.Valid([]byte(payload.String)) {
		it.Payload = json.RawMessage(payload.String)
	}
	it.CreatedAt = parseTime(created.String)
	it.UpdatedAt = parseTime(updated.String)

	def := domain.DefaultGeometry(s.extent)
	g := domain.Geometry{
		Position: domain.Point{X: sqlFloat(x), Y: sqlFloat(y)},
		Size:     domain.Size{Width: sqlFloat(w), Height: sqlFloat(h)},
		Rotation: sqlFloat(rot),
		ZIndex:   def.ZIndex,
	}
	repaired := false
	if z, ok := sqlInt(zi); ok {
		g.ZIndex = z
	} else {
		repaired = true
	}
	g, changed := g.Sanitize(s.extent)
	it.SetGeometry(g)
	if repaired || changed {
		s.log.DebugContext(applog.WithItem(ctx, it.ID), "substituted defaults for stored geometry")
	}
	return it, nil
}

// sqlFloat converts a driver value to a finite float or NaN.
func sqlFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	}
	return math.NaN()
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func sqlInt(v any) (int, bool) {
	f := sqlFloat(v)
	if math.IsNaN(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// UpdateItem merges patch into the stored item with a single UPDATE.
func (s *Store) UpdateItem(ctx context.Context, id string, patch domain.GeometryPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	var (
		sets []string
		args []any
	)
	if p := patch.Position; p != nil {
		sets = append(sets, "x=?", "y=?")
		args = append(args, p.X, p.Y)
	}
	if sz := patch.Size; sz != nil {
		sets = append(sets, "width=?", "height=?")
		args = append(args, sz.Width, sz.Height)
	}
	if r := patch.Rotation; r != nil {
		sets = append(sets, "rotation=?")
		args = append(args, *r)
	}
	if z := patch.ZIndex; z != nil {
		sets = append(sets, "z_index=?")
		args = append(args, *z)
	}
	sets = append(sets, "updated_at=?")
	args = append(args, stamp(time.Now()), id)
	res, err := s.db.ExecContext(ctx, `UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return fmt.Errorf("update item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteItem removes the item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CreateItem inserts a new item. An empty id gets a fresh UUID; a caller
// supplied id is kept, so imports preserve identity.
func (s *Store) CreateItem(ctx context.Context, fields domain.NewItem) (domain.Item, error) {
	it := fields.Build(s.extent)
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	var payload any
	if len(it.Payload) > 0 {
		payload = string(it.Payload)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO items (id, kind, x, y, width, height, rotation, z_index, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Kind, it.Position.X, it.Position.Y, it.Size.Width, it.Size.Height, it.Rotation, it.ZIndex, payload, stamp(now), stamp(now))
	if err != nil {
		return domain.Item{}, fmt.Errorf("insert item %s: %w", it.ID, err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		it.Seq = seq
	}
	return it, nil
}

// QuickCheck runs SQLite's quick_check pragma and reports whether it passed.
func (s *Store) QuickCheck(ctx context.Context) (bool, error) {
	var chk string
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return false, fmt.Errorf("quick_check: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(chk), "ok"), nil
}
