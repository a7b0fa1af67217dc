/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore keeps a board in Postgres. It implements domain.ItemStore.
type PGStore struct {
	db     *sql.DB
	extent float64
	log    *slog.Logger
}

var _ domain.ItemStore = (*PGStore)(nil)

// OpenPG connects to dsn, checks the connection and applies migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPGStore(db), nil
}

// NewPGStore wraps an already migrated database.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, extent: domain.DefaultCanvasExtent, log: applog.WithComponent("pgstore")}
}

// DB exposes the handle for readiness checks.
func (s *PGStore) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *PGStore) Close() error { return s.db.Close() }

// Ping reports whether the database answers.
func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const pgItemColumns = `seq, id, kind, x, y, width, height, rotation, z_index, payload, created_at, updated_at`

// Items returns the board in paint order.
func (s *PGStore) Items(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgItemColumns+` FROM items ORDER BY z_index, seq`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var out []domain.Item
	for rows.Next() {
		var (
			it               domain.Item
			kind             sql.NullString
			payload          []byte
			x, y, w, h, rot  sql.NullFloat64
			z                sql.NullInt64
			created, updated time.Time
		)
		if err := rows.Scan(&it.Seq, &it.ID, &kind, &x, &y, &w, &h, &rot, &z, &payload, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Kind = kind.String
		if len(payload) > 0 {
			it.Payload = json.RawMessage(payload)
		}
		it.CreatedAt, it.UpdatedAt = created.UTC(), updated.UTC()
		g := domain.Geometry{
			Position: domain.Point{X: nullable(x), Y: nullable(y)},
			Size:     domain.Size{Width: nullable(w), Height: nullable(h)},
			Rotation: nullable(rot),
			ZIndex:   domain.DefaultZIndex,
		}
		if z.Valid {
			g.ZIndex = int(z.Int64)
		}
		g, changed := g.Sanitize(s.extent)
		if changed || !z.Valid {
			s.log.DebugContext(applog.WithItem(ctx, it.ID), "substituted defaults for stored geometry")
		}
		it.SetGeometry(g)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return domain.PaintOrder(out), nil
}

func nullable(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

// UpdateItem merges patch into the stored row.
func (s *PGStore) UpdateItem(ctx context.Context, id string, patch domain.GeometryPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+"=$"+strconv.Itoa(len(args)))
	}
	if p := patch.Position; p != nil {
		add("x", p.X)
		add("y", p.Y)
	}
	if sz := patch.Size; sz != nil {
		add("width", sz.Width)
		add("height", sz.Height)
	}
	if r := patch.Rotation; r != nil {
		add("rotation", *r)
	}
	if z := patch.ZIndex; z != nil {
		add("z_index", *z)
	}
	sets = append(sets, "updated_at=now()")
	args = append(args, id)
	q := `UPDATE items SET ` + strings.Join(sets, ", ") + ` WHERE id=$` + strconv.Itoa(len(args))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteItem removes the row.
func (s *PGStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CreateItem inserts a row, generating a UUID when no id is given.
func (s *PGStore) CreateItem(ctx context.Context, fields domain.NewItem) (domain.Item, error) {
	it := fields.Build(s.extent)
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	var payload any
	if len(it.Payload) > 0 {
		payload = string(it.Payload)
	}
	err := s.db.QueryRowContext(ctx, `INSERT INTO items (id, kind, x, y, width, height, rotation, z_index, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING seq, created_at, updated_at`,
		it.ID, it.Kind, it.Position.X, it.Position.Y, it.Size.Width, it.Size.Height, it.Rotation, it.ZIndex, payload,
	).Scan(&it.Seq, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return domain.Item{}, fmt.Errorf("insert item %s: %w", it.ID, err)
	}
	it.CreatedAt, it.UpdatedAt = it.CreatedAt.UTC(), it.UpdatedAt.UTC()
	return it, nil
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each one in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("pgstore"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if strings.TrimSpace(string(b)) != "" {
			if _, err := tx.ExecContext(ctx, string(b)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply %s: %w", fname, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
		l.Info("applied migration", slog.String("file", fname))
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
