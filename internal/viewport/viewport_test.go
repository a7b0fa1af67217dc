/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import (
	"math"
	"testing"

	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
)

func screenViewport(t *testing.T) *Viewport {
	t.Helper()
	v := New(DefaultConfig())
	v.SetScreenSize(800, 600)
	return v
}

func TestScreenToLogical_UsesScrollAndZoom(t *testing.T) {
	v := screenViewport(t)
	v.SetZoom(0.5)
	v.SetScroll(100, 50)
	got := v.ScreenToLogical(domain.Point{X: 300, Y: 250})
	if got != (domain.Point{X: 800, Y: 600}) {
		t.Fatalf("ScreenToLogical = %+v, want (800,600)", got)
	}
	back := v.LogicalToScreen(got)
	if back != (domain.Point{X: 300, Y: 250}) {
		t.Fatalf("LogicalToScreen round trip = %+v", back)
	}
}

func TestLogicalDelta_ZoomInvariantAndScrollIndependent(t *testing.T) {
	v := screenViewport(t)
	for _, z := range []float64{0.2, 0.5, 1, 1.3, 2} {
		v.SetZoom(z)
		for _, s := range []float64{0, 200, 900} {
			v.SetScroll(s, s)
			d := v.LogicalDelta(50, -30)
			if math.Abs(d.X-50/z) > 1e-12 || math.Abs(d.Y+30/z) > 1e-12 {
				t.Fatalf("zoom %v scroll %v: delta %+v", z, s, d)
			}
		}
	}
}

func TestSetZoom_ClampsWithoutRecentering(t *testing.T) {
	v := screenViewport(t)
	v.SetScroll(120, 80)
	if z := v.SetZoom(5); z != 2 {
		t.Fatalf("SetZoom(5) = %v, want 2", z)
	}
	if v.Scroll() != (domain.Point{X: 120, Y: 80}) {
		t.Fatalf("zoom must not move scroll, got %+v", v.Scroll())
	}
	if z := v.SetZoom(0.01); z != 0.2 {
		t.Fatalf("SetZoom(0.01) = %v, want 0.2", z)
	}
	if z := v.SetZoom(math.NaN()); z != 0.2 {
		t.Fatalf("NaN zoom must be ignored, got %v", z)
	}
}

func TestZoomInOut_Steps(t *testing.T) {
	v := screenViewport(t)
	if z := v.ZoomIn(); math.Abs(z-1.1) > 1e-9 {
		t.Fatalf("ZoomIn = %v", z)
	}
	for i := 0; i < 30; i++ {
		v.ZoomOut()
	}
	if v.Zoom() != 0.2 {
		t.Fatalf("ZoomOut should stop at 0.2, got %v", v.Zoom())
	}
}

func TestCenterOn_MapsPointToVisualCenter(t *testing.T) {
	v := screenViewport(t)
	v.SetZoom(0.5)
	target := domain.Point{X: 1200, Y: 900}
	v.CenterOn(target)
	if got := v.LogicalCenter(); got != target {
		t.Fatalf("LogicalCenter = %+v, want %+v", got, target)
	}
	if got := v.LogicalToScreen(target); got != (domain.Point{X: 400, Y: 300}) {
		t.Fatalf("target on screen at %+v, want center", got)
	}
}

func TestHome_SpawnPointIsCanvasCenter(t *testing.T) {
	v := screenViewport(t)
	v.Home()
	if got := v.LogicalCenter(); got != (domain.Point{X: 1500, Y: 1500}) {
		t.Fatalf("LogicalCenter after Home = %+v", got)
	}
}

func TestSetExtent_ClampsAndKeepsCenter(t *testing.T) {
	v := screenViewport(t)
	// inside the area still scrollable after shrinking to the minimum
	v.CenterOn(domain.Point{X: 500, Y: 500})
	before := v.LogicalCenter()
	if n := v.SetExtent(200); n != 1000 {
		t.Fatalf("SetExtent(200) = %v, want min 1000", n)
	}
	if got := v.LogicalCenter(); got != before {
		t.Fatalf("center moved from %+v to %+v", before, got)
	}
	v.SetExtent(6000)
	if got := v.LogicalCenter(); got != before {
		t.Fatalf("center moved from %+v to %+v after growing", before, got)
	}
}

func TestScrollIsClampedToRenderedArea(t *testing.T) {
	v := screenViewport(t)
	v.SetScroll(-50, 99999)
	// extent 3000 at zoom 1 on a 800x600 screen
	if v.Scroll() != (domain.Point{X: 0, Y: 2400}) {
		t.Fatalf("scroll = %+v", v.Scroll())
	}
}

func TestZoomAround_KeepsAnchor(t *testing.T) {
	v := screenViewport(t)
	v.CenterOn(domain.Point{X: 1500, Y: 1500})
	cursor := domain.Point{X: 200, Y: 100}
	before := v.ScreenToLogical(cursor)
	v.ZoomAround(cursor, 1.5)
	after := v.ScreenToLogical(cursor)
	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Fatalf("anchor moved from %+v to %+v", before, after)
	}
}

func TestFitToView(t *testing.T) {
	v := screenViewport(t)
	v.FitToView(vector.R(1000, 1000, 1600, 1200), 0)
	if v.Zoom() != 0.5 {
		t.Fatalf("zoom = %v, want 0.5", v.Zoom())
	}
	if got := v.LogicalCenter(); got != (domain.Point{X: 1800, Y: 1600}) {
		t.Fatalf("center = %+v", got)
	}
	v.FitToView(vector.Rect{}, 10)
	if got := v.LogicalCenter(); got != v.CanvasCenter() {
		t.Fatalf("empty bounds should center on canvas, got %+v", got)
	}
}

func TestResolve_RenderTransform(t *testing.T) {
	v := screenViewport(t)
	v.SetZoom(0.5)
	v.SetScroll(100, 40)
	g := domain.Geometry{Position: domain.Point{X: 400, Y: 200}, Size: domain.Size{Width: 120, Height: 60}, Rotation: -30, ZIndex: 4}
	rt := v.Resolve(g)
	want := RenderTransform{TranslateX: 100, TranslateY: 60, Width: 60, Height: 30, RotateDeg: -30, ZIndex: 4}
	if rt != want {
		t.Fatalf("Resolve = %+v, want %+v", rt, want)
	}
	if css := rt.CSS(); css != "transform: translate(100px, 60px) rotate(-30deg); width: 60px; height: 30px; z-index: 4;" {
		t.Fatalf("CSS = %q", css)
	}
	if c := v.ScreenCenterOf(g); c != (domain.Point{X: 130, Y: 75}) {
		t.Fatalf("ScreenCenterOf = %+v", c)
	}
}

func TestOnChange_OnlyWhenStateChanges(t *testing.T) {
	v := screenViewport(t)
	calls := 0
	v.OnChange = func(*Viewport) { calls++ }

	v.SetScreenSize(800, 600)
	v.SetZoom(v.Zoom())
	v.SetScroll(v.Scroll().X, v.Scroll().Y)
	v.Pan(0, 0)
	v.SetExtent(v.Extent())
	if calls != 0 {
		t.Fatalf("no-op setters notified %d times", calls)
	}

	v.SetScreenSize(1024, 768)
	v.SetZoom(2)
	v.Pan(10, 0)
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	// clamped against the same edge twice: the second call changes nothing
	v.SetScroll(-500, -500)
	v.SetScroll(-900, -900)
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestOnChange_ReentrantRefreshTerminates(t *testing.T) {
	v := New(DefaultConfig())
	depth := 0
	v.OnChange = func(vp *Viewport) {
		depth++
		if depth > 10 {
			t.Fatal("OnChange recursed")
		}
		// a renderer that re-applies its size on every refresh
		vp.SetScreenSize(800, 600)
	}
	v.SetScreenSize(800, 600)
	if depth != 1 {
		t.Fatalf("depth = %d", depth)
	}
}

func TestContentBounds_ReachItemsOutsideCanvas(t *testing.T) {
	v := screenViewport(t)
	v.CenterOn(domain.Point{X: -400, Y: -300})
	if v.Scroll() != (domain.Point{}) {
		t.Fatalf("scroll without content bounds = %+v", v.Scroll())
	}

	v.SetContentBounds(vector.R(-1000, -1000, 200, 200))
	if a := v.ScrollArea(); a != vector.R(-1400, -1300, 4400, 4300) {
		t.Fatalf("area = %+v", a)
	}
	v.CenterOn(domain.Point{X: -400, Y: -300})
	if got := v.LogicalCenter(); got != (domain.Point{X: -400, Y: -300}) {
		t.Fatalf("center = %+v", got)
	}

	// the far corner of the content can be centered too
	v.CenterOn(domain.Point{X: -1000, Y: -1000})
	if got := v.LogicalCenter(); got != (domain.Point{X: -1000, Y: -1000}) {
		t.Fatalf("corner center = %+v", got)
	}

	v.SetContentBounds(vector.Rect{})
	if v.Scroll().X < 0 || v.Scroll().Y < 0 {
		t.Fatalf("scroll not re-clamped after reset: %+v", v.Scroll())
	}
}

func TestFitToView_NegativeBounds(t *testing.T) {
	v := screenViewport(t)
	v.FitToView(vector.R(-900, -700, 400, 300), 100)
	if z := v.Zoom(); math.Abs(z-1.2) > 1e-9 {
		t.Fatalf("zoom = %v, want 1.2", z)
	}
	if got := v.LogicalCenter(); math.Abs(got.X+700) > 1e-9 || math.Abs(got.Y+550) > 1e-9 {
		t.Fatalf("center = %+v, want (-700, -550)", got)
	}
}
