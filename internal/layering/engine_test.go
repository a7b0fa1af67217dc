/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layering

import (
	"context"
	"errors"
	"math"
	"testing"

	"lifeboard/internal/commit"
	"lifeboard/internal/domain"
)

type boardStore struct {
	items   []domain.Item
	writes  int
	readErr error
	failOn  string
}

func newBoard(zs map[string]int) *boardStore {
	s := &boardStore{}
	seq := int64(0)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if z, ok := zs[id]; ok {
			seq++
			s.items = append(s.items, domain.Item{ID: id, ZIndex: z, Seq: seq, Size: domain.Size{Width: 100, Height: 100}})
		}
	}
	return s
}

func (s *boardStore) Items(context.Context) ([]domain.Item, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([]domain.Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *boardStore) UpdateItem(_ context.Context, id string, p domain.GeometryPatch) error {
	if id == s.failOn {
		return errors.New("write refused")
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.writes++
			p.ApplyTo(&s.items[i])
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *boardStore) DeleteItem(context.Context, string) error { return nil }
func (s *boardStore) CreateItem(context.Context, domain.NewItem) (domain.Item, error) {
	return domain.Item{}, nil
}

func (s *boardStore) z(id string) int {
	it, _ := domain.FindItem(s.items, id)
	return it.ZIndex
}

func (s *boardStore) top() string {
	order := domain.PaintOrder(s.items)
	return order[len(order)-1].ID
}

func newEngine(s *boardStore) *Engine { return New(s, commit.New(s)) }

func TestStepScenario(t *testing.T) {
	s := newBoard(map[string]int{"a": 1, "b": 2})
	e := newEngine(s)
	ctx := context.Background()

	ch, err := e.StepForward(ctx, "a")
	if err != nil || !ch.Applied || ch.From != 1 || ch.To != 3 {
		t.Fatalf("StepForward = %+v err=%v", ch, err)
	}
	if s.z("a") != 3 || s.z("b") != 2 || s.top() != "a" {
		t.Fatalf("after forward: a=%d b=%d", s.z("a"), s.z("b"))
	}
	if _, err := e.StepBackward(ctx, "a"); err != nil {
		t.Fatalf("StepBackward: %v", err)
	}
	if s.z("a") != 1 || s.top() != "b" {
		t.Fatalf("after backward: a=%d", s.z("a"))
	}
	if s.writes != 2 {
		t.Fatalf("writes = %d, want one per operation", s.writes)
	}
}

func TestBringToFront_Idempotent(t *testing.T) {
	s := newBoard(map[string]int{"a": 4, "b": 9, "c": -2})
	e := newEngine(s)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.BringToFront(ctx, "c"); err != nil {
			t.Fatalf("BringToFront: %v", err)
		}
		if s.top() != "c" {
			t.Fatalf("round %d: top = %s", i, s.top())
		}
	}
	if s.z("a") != 4 || s.z("b") != 9 {
		t.Fatalf("other items changed: a=%d b=%d", s.z("a"), s.z("b"))
	}
	if s.z("c") != 12 {
		t.Fatalf("c = %d, want 12", s.z("c"))
	}
}

func TestSendToBack(t *testing.T) {
	s := newBoard(map[string]int{"a": 4, "b": 9, "c": -2})
	if _, err := newEngine(s).SendToBack(context.Background(), "b"); err != nil {
		t.Fatalf("SendToBack: %v", err)
	}
	if s.z("b") != -3 || domain.PaintOrder(s.items)[0].ID != "b" {
		t.Fatalf("b = %d", s.z("b"))
	}
}

func TestStepForward_NeverBelowNextItem(t *testing.T) {
	s := newBoard(map[string]int{"a": 1, "b": 5, "c": 5, "d": 7})
	e := newEngine(s)
	if _, err := e.StepForward(context.Background(), "a"); err != nil {
		t.Fatalf("StepForward: %v", err)
	}
	if s.z("a") != 6 {
		t.Fatalf("a = %d, want 6 (just above the tied items at 5)", s.z("a"))
	}
	if s.z("a") >= s.z("d") {
		t.Fatalf("a jumped past d")
	}
}

func TestTieBreaksBySeq(t *testing.T) {
	// b and c share zIndex 2; c was inserted later so it paints above b.
	s := newBoard(map[string]int{"a": 1, "b": 2, "c": 2})
	if s.top() != "c" {
		t.Fatalf("top = %s, want c", s.top())
	}
	if _, err := newEngine(s).StepForward(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	// no item is strictly above b, so it gets a trivial increment and now beats c
	if s.z("b") != 3 || s.top() != "b" {
		t.Fatalf("b = %d top=%s", s.z("b"), s.top())
	}
}

func TestEmptyOneAndUnknown(t *testing.T) {
	ctx := context.Background()
	empty := newBoard(nil)
	ch, err := newEngine(empty).BringToFront(ctx, "a")
	if err != nil || ch.Applied || empty.writes != 0 {
		t.Fatalf("empty board: %+v err=%v writes=%d", ch, err, empty.writes)
	}

	one := newBoard(map[string]int{"a": 1})
	e := newEngine(one)
	for _, op := range []Op{Front, Forward} {
		if _, err := e.Apply(ctx, op, "a"); err != nil {
			t.Fatal(err)
		}
	}
	if one.z("a") != 3 {
		t.Fatalf("single item after front+forward = %d, want 3", one.z("a"))
	}
	for _, op := range []Op{Back, Backward} {
		if _, err := e.Apply(ctx, op, "a"); err != nil {
			t.Fatal(err)
		}
	}
	if one.z("a") != 1 {
		t.Fatalf("single item after back+backward = %d, want 1", one.z("a"))
	}

	before := one.writes
	if ch, err := e.StepForward(ctx, "missing"); err != nil || ch.Applied || one.writes != before {
		t.Fatalf("unknown id must be a no-op: %+v err=%v", ch, err)
	}
}

func TestRenormalizeWhenLimitExceeded(t *testing.T) {
	s := newBoard(map[string]int{"a": -7, "b": 10, "c": 3})
	e := newEngine(s)
	e.Limit = 10
	var got Change
	e.OnChange = func(c Change) { got = c }

	ch, err := e.BringToFront(context.Background(), "a")
	if err != nil {
		t.Fatalf("BringToFront: %v", err)
	}
	// paint order a,c,b becomes 1,2,3 then a goes to 4
	if s.z("c") != 2 || s.z("b") != 3 || s.z("a") != 4 {
		t.Fatalf("after renumber: a=%d b=%d c=%d", s.z("a"), s.z("b"), s.z("c"))
	}
	if ch.Renumbered != 3 || ch.To != 4 || got.To != 4 || got.Op != Front {
		t.Fatalf("change = %+v hook = %+v", ch, got)
	}
	if s.writes != 4 {
		t.Fatalf("writes = %d, want 3 renumber + 1", s.writes)
	}
}

func TestRenormalizeAtInt32Edge(t *testing.T) {
	s := newBoard(map[string]int{"a": math.MaxInt32, "b": 0})
	e := newEngine(s)
	if _, err := e.BringToFront(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if s.z("b") != 3 || s.z("a") != 2 || s.top() != "b" {
		t.Fatalf("a=%d b=%d", s.z("a"), s.z("b"))
	}
	if Target(Front, []domain.Item{{ID: "x", ZIndex: math.MaxInt32}}, "x") != math.MaxInt32+1 {
		t.Fatalf("Target must not wrap")
	}
}

func TestErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s := newBoard(map[string]int{"a": 1, "b": 2})
	s.readErr = errors.New("db gone")
	if _, err := newEngine(s).BringToFront(ctx, "a"); !errors.Is(err, s.readErr) {
		t.Fatalf("read err = %v", err)
	}

	s = newBoard(map[string]int{"a": 1, "b": 2})
	s.failOn = "a"
	b := commit.New(s)
	reported := 0
	b.OnError = func(string, domain.GeometryPatch, error) { reported++ }
	ch, err := New(s, b).StepForward(ctx, "a")
	if err == nil || ch.Applied || reported != 1 || s.z("a") != 1 {
		t.Fatalf("write failure: %+v err=%v reported=%d", ch, err, reported)
	}
}

func TestParseOp(t *testing.T) {
	for _, o := range []Op{Front, Back, Forward, Backward} {
		got, err := ParseOp(o.String())
		if err != nil || got != o {
			t.Fatalf("ParseOp(%q) = %v, %v", o, got, err)
		}
	}
	if _, err := ParseOp("sideways"); err == nil {
		t.Fatalf("expected error")
	}
}
