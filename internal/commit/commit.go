/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package commit is the single durable write path of the canvas engine.
// Gestures get a Ticket that writes at most once; layering writes go
// through Write directly. Failures are reported, never retried and never
// rolled back.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
)

// ErrAlreadyCommitted is returned by a Ticket used a second time.
var ErrAlreadyCommitted = errors.New("gesture already committed")

// Boundary issues durable geometry writes to an item store.
type Boundary struct {
	store  domain.ItemStore
	log    *slog.Logger
	writes atomic.Int64

	// OnError receives every failed write. It is the user-facing error path.
	OnError func(itemID string, patch domain.GeometryPatch, err error)
	// OnCommit is called after a successful write.
	OnCommit func(itemID string, patch domain.GeometryPatch)
}

// New returns a boundary writing to store.
func New(store domain.ItemStore) *Boundary {
	return &Boundary{store: store, log: applog.WithComponent("commit")}
}

// Writes reports how many durable writes have been issued.
func (b *Boundary) Writes() int64 { return b.writes.Load() }

// Write merges patch into the durable record of itemID with one UpdateItem call.
func (b *Boundary) Write(ctx context.Context, itemID string, patch domain.GeometryPatch) error {
	l := applog.WithOperation(b.log, "write").With(slog.String("item", itemID), slog.String("patch", patch.String()))
	if err := patch.Validate(); err != nil {
		err = fmt.Errorf("commit %s: %w", itemID, err)
		l.Error("rejected invalid patch", slog.Any("err", err))
		b.fail(itemID, patch, err)
		return err
	}
	b.writes.Add(1)
	if err := b.store.UpdateItem(ctx, itemID, patch); err != nil {
		err = fmt.Errorf("commit %s: %w", itemID, err)
		l.Error("write failed", slog.Any("err", err))
		b.fail(itemID, patch, err)
		return err
	}
	l.Debug("committed")
	if b.OnCommit != nil {
		b.OnCommit(itemID, patch)
	}
	return nil
}

func (b *Boundary) fail(itemID string, patch domain.GeometryPatch, err error) {
	if b.OnError != nil {
		b.OnError(itemID, patch, err)
	}
}

// Open starts a commit ticket for one gesture on itemID.
func (b *Boundary) Open(itemID string) *Ticket {
	return &Ticket{b: b, itemID: itemID}
}

// Ticket allows exactly one write for a gesture.
type Ticket struct {
	b      *Boundary
	itemID string
	done   bool
}

// Done reports whether the ticket has been used.
func (t *Ticket) Done() bool { return t.done }

// Commit writes patch once. Later calls return ErrAlreadyCommitted without
// touching the store. A failed write still consumes the ticket.
func (t *Ticket) Commit(ctx context.Context, patch domain.GeometryPatch) error {
	if t.done {
		return ErrAlreadyCommitted
	}
	t.done = true
	return t.b.Write(ctx, t.itemID, patch)
}
