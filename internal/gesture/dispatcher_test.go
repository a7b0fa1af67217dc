/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"testing"

	"lifeboard/internal/domain"
	"lifeboard/internal/viewport"
)

func TestDispatcher_RemoveIsIdempotent(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	h := d.Listen(PointerMove, func(PointerEvent) { calls++ })
	d.Listen(PointerMove, func(PointerEvent) { calls += 10 })
	d.Move(pt(0, 0))
	h.Remove()
	h.Remove()
	d.Move(pt(0, 0))
	if calls != 21 {
		t.Fatalf("calls = %d, want 21", calls)
	}
	if d.Count() != 1 {
		t.Fatalf("Count = %d, want 1", d.Count())
	}
}

func TestDispatcher_ListenerMayRemoveItself(t *testing.T) {
	d := NewDispatcher()
	var h Handle
	order := []string{}
	h = d.Listen(PointerUp, func(PointerEvent) { order = append(order, "first"); h.Remove() })
	d.Listen(PointerUp, func(PointerEvent) { order = append(order, "second") })
	d.Up(pt(0, 0))
	d.Up(pt(0, 0))
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "second" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestSubscription_ReleaseTwice(t *testing.T) {
	d := NewDispatcher()
	s := d.Subscribe(func(PointerEvent) {}, func(PointerEvent) {}, func(PointerEvent) {})
	if d.Count() != 3 || !s.Active() {
		t.Fatalf("Count = %d active=%v", d.Count(), s.Active())
	}
	s.Release()
	s.Release()
	var nilSub *Subscription
	nilSub.Release()
	if d.Count() != 0 || s.Active() {
		t.Fatalf("Count = %d after release", d.Count())
	}
}

func TestHitTest_ZonesAndTopmost(t *testing.T) {
	vp := viewport.New(viewport.DefaultConfig())
	low := item("low", 0, 0, 100, 100)
	high := item("high", 50, 50, 100, 100)
	high.ZIndex = 5
	items := []domain.Item{high, low}

	h, ok := HitTest(items, vp, pt(75, 75))
	if !ok || h.Item.ID != "high" || h.Zone != ZoneBody {
		t.Fatalf("overlap should hit topmost body, got %+v ok=%v", h, ok)
	}
	h, _ = HitTest(items, vp, pt(10, 10))
	if h.Item.ID != "low" || h.Zone.Gesture() != Translating {
		t.Fatalf("expected low body, got %+v", h)
	}
	h, _ = HitTest(items, vp, pt(152, 149))
	if h.Item.ID != "high" || h.Zone != ZoneResize || h.Zone.Gesture() != Resizing {
		t.Fatalf("expected resize handle, got %+v", h)
	}
	h, _ = HitTest(items, vp, pt(100, 50-RotateHandleOffset))
	if h.Item.ID != "high" || h.Zone != ZoneRotate || h.Zone.Gesture() != Rotating {
		t.Fatalf("expected rotate handle, got %+v", h)
	}
	if _, ok := HitTest(items, vp, pt(500, 500)); ok {
		t.Fatalf("expected miss")
	}
}

func TestHitTest_FollowsRotationAndZoom(t *testing.T) {
	vp := viewport.New(viewport.DefaultConfig())
	vp.SetZoom(2)
	it := item("bar", 0, 0, 100, 20)
	it.Rotation = 90
	// on screen: 200x40 box centered at (100,20), turned upright
	if h, ok := HitTest([]domain.Item{it}, vp, pt(100, -60)); !ok || h.Zone != ZoneBody {
		t.Fatalf("expected body hit on rotated item, got %+v ok=%v", h, ok)
	}
	if _, ok := HitTest([]domain.Item{it}, vp, pt(10, 20)); ok {
		t.Fatalf("unrotated footprint must miss")
	}
	resize, rotate := HandlePositions(vp, it.Geometry())
	if h, _ := HitTest([]domain.Item{it}, vp, resize); h.Zone != ZoneResize {
		t.Fatalf("resize handle position %+v hit %v", resize, h.Zone)
	}
	if h, _ := HitTest([]domain.Item{it}, vp, rotate); h.Zone != ZoneRotate {
		t.Fatalf("rotate handle position %+v hit %v", rotate, h.Zone)
	}
}

func TestPointerDown_BeginsMatchingGesture(t *testing.T) {
	r := newRig(t, Options{})
	items := []domain.Item{item("a", 0, 0, 100, 100)}
	h, ok := r.ctl.PointerDown(items, pt(100, 100))
	if !ok || h.Zone != ZoneResize || r.ctl.State() != Resizing {
		t.Fatalf("hit %+v ok=%v state=%v", h, ok, r.ctl.State())
	}
	r.disp.Move(pt(130, 110))
	r.disp.Up(pt(130, 110))
	if s := r.store.updates[0].patch.Size; s == nil || *s != (domain.Size{Width: 130, Height: 110}) {
		t.Fatalf("committed size %+v", s)
	}
	if _, ok := r.ctl.PointerDown(items, pt(900, 900)); ok {
		t.Fatalf("pointer down on empty canvas must not start a gesture")
	}
}
