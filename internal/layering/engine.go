/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layering maintains the integer zIndex paint order of board items.
//
// Values need not be contiguous or unique; each operation only beats its
// neighbour by one step and writes a single item. When a value would leave
// [-Limit, Limit] the board is first renumbered 1..n in paint order.
package layering

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
)

// Op names a layering operation.
type Op int

const (
	Front Op = iota
	Back
	Forward
	Backward
)

func (o Op) String() string {
	switch o {
	case Front:
		return "front"
	case Back:
		return "back"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// ParseOp accepts the names produced by Op.String.
func ParseOp(s string) (Op, error) {
	for _, o := range []Op{Front, Back, Forward, Backward} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown layering op %q", s)
}

// DefaultLimit keeps zIndex inside a signed 32-bit column.
const DefaultLimit = math.MaxInt32

// Writer persists one geometry patch. *commit.Boundary implements it.
type Writer interface {
	Write(ctx context.Context, itemID string, patch domain.GeometryPatch) error
}

// Change describes the outcome of one operation.
type Change struct {
	Op     Op
	ItemID string
	From   int
	To     int
	// Applied is false when the item was not on the board.
	Applied bool
	// Renumbered counts the writes made by a renormalization pass.
	Renumbered int
}

// Engine runs layering operations against a board.
type Engine struct {
	items  func(ctx context.Context) ([]domain.Item, error)
	writer Writer
	log    *slog.Logger

	// Limit bounds |zIndex|. Zero means DefaultLimit.
	Limit int
	// OnChange is called after every applied operation.
	OnChange func(Change)
}

// New returns an engine that reads items from store and writes through w.
func New(store domain.ItemStore, w Writer) *Engine {
	return &Engine{items: store.Items, writer: w, log: applog.WithComponent("layering")}
}

func (e *Engine) limit() int64 {
	if e.Limit <= 0 {
		return DefaultLimit
	}
	return int64(e.Limit)
}

// BringToFront sets the item's zIndex to max(all)+1.
func (e *Engine) BringToFront(ctx context.Context, id string) (Change, error) {
	return e.Apply(ctx, Front, id)
}

// SendToBack sets the item's zIndex to min(all)-1.
func (e *Engine) SendToBack(ctx context.Context, id string) (Change, error) {
	return e.Apply(ctx, Back, id)
}

// StepForward places the item just above the next higher item.
func (e *Engine) StepForward(ctx context.Context, id string) (Change, error) {
	return e.Apply(ctx, Forward, id)
}

// StepBackward places the item just below the next lower item.
func (e *Engine) StepBackward(ctx context.Context, id string) (Change, error) {
	return e.Apply(ctx, Backward, id)
}

// Apply runs op on the item with the given id. Unknown ids are a no-op.
// Store errors are returned unchanged in meaning and never retried.
func (e *Engine) Apply(ctx context.Context, op Op, id string) (Change, error) {
	l := applog.WithOperation(e.log, op.String()).With(slog.String("item", id))
	ch := Change{Op: op, ItemID: id}

	items, err := e.items(ctx)
	if err != nil {
		return ch, fmt.Errorf("layering %s %s: %w", op, id, err)
	}
	it, ok := domain.FindItem(items, id)
	if !ok {
		l.Debug("unknown item, nothing to do")
		return ch, nil
	}
	ch.From = it.ZIndex

	target := Target(op, items, id)
	if lim := e.limit(); target > lim || target < -lim {
		n, err := e.renormalize(ctx, items)
		ch.Renumbered = n
		if err != nil {
			return ch, err
		}
		l.Info("renumbered board", slog.Int("writes", n), slog.Int64("overflow", target))
		target = Target(op, items, id)
	}

	ch.To = int(target)
	if err := e.writer.Write(ctx, id, domain.ZIndexPatch(ch.To)); err != nil {
		return ch, fmt.Errorf("layering %s %s: %w", op, id, err)
	}
	ch.Applied = true
	l.Debug("zIndex changed", slog.Int("from", ch.From), slog.Int("to", ch.To))
	if e.OnChange != nil {
		e.OnChange(ch)
	}
	return ch, nil
}

// renormalize rewrites items to 1..n in paint order, updating the slice in
// place and writing only values that change.
func (e *Engine) renormalize(ctx context.Context, items []domain.Item) (int, error) {
	ordered := domain.PaintOrder(items)
	rank := make(map[string]int, len(ordered))
	for i, it := range ordered {
		rank[it.ID] = i + 1
	}
	writes := 0
	for i := range items {
		z := rank[items[i].ID]
		if items[i].ZIndex == z {
			continue
		}
		if err := e.writer.Write(ctx, items[i].ID, domain.ZIndexPatch(z)); err != nil {
			return writes, fmt.Errorf("renumber %s: %w", items[i].ID, err)
		}
		items[i].ZIndex = z
		writes++
	}
	return writes, nil
}

// Target computes the new zIndex for id without writing. It is exact in
// int64 so callers can detect values outside the int32 range.
// The item must be present in items.
func Target(op Op, items []domain.Item, id string) int64 {
	var cur int64
	for _, it := range items {
		if it.ID == id {
			cur = int64(it.ZIndex)
			break
		}
	}
	switch op {
	case Front:
		hi := cur
		for _, it := range items {
			hi = max(hi, int64(it.ZIndex))
		}
		return hi + 1
	case Back:
		lo := cur
		for _, it := range items {
			lo = min(lo, int64(it.ZIndex))
		}
		return lo - 1
	case Forward:
		next, found := int64(0), false
		for _, it := range items {
			z := int64(it.ZIndex)
			if it.ID == id || z <= cur {
				continue
			}
			if !found || z < next {
				next, found = z, true
			}
		}
		if found {
			return next + 1
		}
		return cur + 1
	case Backward:
		prev, found := int64(0), false
		for _, it := range items {
			z := int64(it.ZIndex)
			if it.ID == id || z >= cur {
				continue
			}
			if !found || z > prev {
				prev, found = z, true
			}
		}
		if found {
			return prev - 1
		}
		return cur - 1
	}
	return cur
}
