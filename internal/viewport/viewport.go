/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport maps logical board coordinates to screen pixels under
// zoom and scroll, the way a scroll container over a zoomed canvas does.
//
//	logical = (screen + scroll) / zoom
//	screen  = logical*zoom - scroll
//
// The scroll offset is kept inside the rendered area (extent*zoom) once the
// screen size is known, mirroring how a host scroll view clamps it.
package viewport

import (
	"fmt"
	"math"

	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
)

// Config bounds the viewport. Zero values fall back to DefaultConfig.
type Config struct {
	MinZoom   float64
	MaxZoom   float64
	ZoomStep  float64
	Extent    float64
	MinExtent float64
}

// DefaultConfig returns the stock bounds: zoom in [0.2, 2.0], step 0.1,
// extent 3000 with a floor of 1000.
func DefaultConfig() Config {
	return Config{
		MinZoom:   0.2,
		MaxZoom:   2.0,
		ZoomStep:  0.1,
		Extent:    domain.DefaultCanvasExtent,
		MinExtent: domain.MinCanvasExtent,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MinZoom <= 0 || c.MaxZoom <= 0 || c.MaxZoom < c.MinZoom {
		c.MinZoom, c.MaxZoom = def.MinZoom, def.MaxZoom
	}
	if c.ZoomStep <= 0 {
		c.ZoomStep = def.ZoomStep
	}
	if c.MinExtent <= 0 {
		c.MinExtent = def.MinExtent
	}
	if c.Extent <= 0 {
		c.Extent = def.Extent
	}
	if c.Extent < c.MinExtent {
		c.Extent = c.MinExtent
	}
	return c
}

// Viewport is per-session view state. It is not safe for concurrent use.
type Viewport struct {
	cfg     Config
	zoom    float64
	scroll  domain.Point
	screen  domain.Size
	extent  float64
	content vector.Rect

	// OnChange, if set, is called after zoom, scroll, screen size or extent
	// actually changed. Setting a value to what it already is stays silent.
	OnChange func(*Viewport)
}

// camera is the observable state compared to decide whether to notify.
type camera struct {
	zoom   float64
	scroll domain.Point
	screen domain.Size
	extent float64
}

// New returns a viewport at zoom 1 with the scroll at the origin.
func New(cfg Config) *Viewport {
	cfg = cfg.normalized()
	return &Viewport{cfg: cfg, zoom: clamp(1, cfg.MinZoom, cfg.MaxZoom), extent: cfg.Extent}
}

func (v *Viewport) Config() Config       { return v.cfg }
func (v *Viewport) Zoom() float64        { return v.zoom }
func (v *Viewport) Scroll() domain.Point { return v.scroll }
func (v *Viewport) Screen() domain.Size  { return v.screen }
func (v *Viewport) Extent() float64      { return v.extent }

func (v *Viewport) String() string {
	return fmt.Sprintf("zoom=%.2f scroll=(%.1f,%.1f) screen=%gx%g extent=%g",
		v.zoom, v.scroll.X, v.scroll.Y, v.screen.Width, v.screen.Height, v.extent)
}

// SetScreenSize records the visible client area in pixels.
func (v *Viewport) SetScreenSize(w, h float64) {
	prev := v.camera()
	v.screen = domain.Size{Width: math.Max(0, w), Height: math.Max(0, h)}
	v.clampScroll()
	v.notify(prev)
}

// SetContentBounds widens the scrollable area beyond the canvas square to
// cover r, in logical units. Items live in unbounded logical space; this
// keeps those outside the canvas reachable. An empty rect resets to the canvas.
func (v *Viewport) SetContentBounds(r vector.Rect) {
	prev := v.camera()
	v.content = r
	v.clampScroll()
	v.notify(prev)
}

// ScrollArea is the logical rectangle the scroll offset may show: the canvas
// square joined with the content bounds. Content gets half a screen of slack
// on each side so any point inside it can be centered.
func (v *Viewport) ScrollArea() vector.Rect {
	content := v.content
	if !content.Empty() {
		content = content.Inset(-v.screen.Width/(2*v.zoom), -v.screen.Height/(2*v.zoom))
	}
	return vector.R(0, 0, v.extent, v.extent).Union(content)
}

// ScreenToLogical converts a screen point to logical coordinates.
func (v *Viewport) ScreenToLogical(p domain.Point) domain.Point {
	return domain.Point{X: (p.X + v.scroll.X) / v.zoom, Y: (p.Y + v.scroll.Y) / v.zoom}
}

// LogicalToScreen is the inverse of ScreenToLogical.
func (v *Viewport) LogicalToScreen(p domain.Point) domain.Point {
	return domain.Point{X: p.X*v.zoom - v.scroll.X, Y: p.Y*v.zoom - v.scroll.Y}
}

// LogicalDelta converts a pointer movement in screen pixels to logical units.
// It depends on zoom only, never on the scroll offset.
func (v *Viewport) LogicalDelta(dx, dy float64) domain.Point {
	return domain.Point{X: dx / v.zoom, Y: dy / v.zoom}
}

// SetZoom clamps z into the configured range and applies it without
// recentering. It returns the zoom in effect.
func (v *Viewport) SetZoom(z float64) float64 {
	if math.IsNaN(z) {
		return v.zoom
	}
	prev := v.camera()
	v.zoom = clamp(z, v.cfg.MinZoom, v.cfg.MaxZoom)
	v.clampScroll()
	v.notify(prev)
	return v.zoom
}

func (v *Viewport) ZoomIn() float64  { return v.SetZoom(v.zoom + v.cfg.ZoomStep) }
func (v *Viewport) ZoomOut() float64 { return v.SetZoom(v.zoom - v.cfg.ZoomStep) }

// ZoomAround changes zoom while keeping the logical point under the given
// screen point in place, as a wheel zoom does.
func (v *Viewport) ZoomAround(screen domain.Point, z float64) float64 {
	if math.IsNaN(z) {
		return v.zoom
	}
	prev := v.camera()
	anchor := v.ScreenToLogical(screen)
	v.zoom = clamp(z, v.cfg.MinZoom, v.cfg.MaxZoom)
	v.scroll = domain.Point{X: anchor.X*v.zoom - screen.X, Y: anchor.Y*v.zoom - screen.Y}
	v.clampScroll()
	v.notify(prev)
	return v.zoom
}

// SetScroll sets the scroll offset in pixels.
func (v *Viewport) SetScroll(x, y float64) {
	prev := v.camera()
	v.scroll = domain.Point{X: x, Y: y}
	v.clampScroll()
	v.notify(prev)
}

// Pan moves the scroll offset by a screen delta.
func (v *Viewport) Pan(dx, dy float64) { v.SetScroll(v.scroll.X+dx, v.scroll.Y+dy) }

// CenterOn scrolls so that p maps to the visual center, as far as the
// scrollable area allows.
func (v *Viewport) CenterOn(p domain.Point) {
	prev := v.camera()
	v.centerOn(p)
	v.notify(prev)
}

func (v *Viewport) centerOn(p domain.Point) {
	v.scroll = domain.Point{
		X: p.X*v.zoom - v.screen.Width/2,
		Y: p.Y*v.zoom - v.screen.Height/2,
	}
	v.clampScroll()
}

// LogicalCenter is the logical point at the visual center; new items spawn here.
func (v *Viewport) LogicalCenter() domain.Point {
	return v.ScreenToLogical(domain.Point{X: v.screen.Width / 2, Y: v.screen.Height / 2})
}

// CanvasCenter is the center of the extent square.
func (v *Viewport) CanvasCenter() domain.Point {
	return domain.Point{X: v.extent / 2, Y: v.extent / 2}
}

// Home centers the view on the canvas center.
func (v *Viewport) Home() { v.CenterOn(v.CanvasCenter()) }

// SetExtent changes the canvas extent, clamped to the configured minimum,
// and recenters on the logical point that was centered before so the view
// does not jump. It returns the extent in effect.
func (v *Viewport) SetExtent(n float64) float64 {
	prev := v.camera()
	c := v.LogicalCenter()
	if math.IsNaN(n) || n < v.cfg.MinExtent {
		n = v.cfg.MinExtent
	}
	v.extent = n
	v.centerOn(c)
	v.notify(prev)
	return v.extent
}

// FitToView picks the largest zoom that shows bounds plus padding on screen
// and centers on it. The bounds join the scrollable area. Empty bounds
// center on the canvas center.
func (v *Viewport) FitToView(bounds vector.Rect, padding float64) {
	if bounds.Empty() || v.screen.Width <= 0 || v.screen.Height <= 0 {
		v.Home()
		return
	}
	prev := v.camera()
	w := bounds.W + 2*padding
	h := bounds.H + 2*padding
	z := math.Min(v.screen.Width/w, v.screen.Height/h)
	v.zoom = clamp(z, v.cfg.MinZoom, v.cfg.MaxZoom)
	c := bounds.Center()
	v.content = v.content.Union(bounds)
	v.centerOn(domain.Point{X: c.X, Y: c.Y})
	v.notify(prev)
}

// scrollRange is the allowed scroll interval along one axis for an area
// starting at lo with length n in logical units.
func (v *Viewport) scrollRange(lo, n, screen float64) (float64, float64) {
	from := lo * v.zoom
	return from, math.Max(from, (lo+n)*v.zoom-screen)
}

func (v *Viewport) clampScroll() {
	if v.screen.Width <= 0 || v.screen.Height <= 0 {
		return
	}
	a := v.ScrollArea()
	lo, hi := v.scrollRange(a.X, a.W, v.screen.Width)
	v.scroll.X = clamp(v.scroll.X, lo, hi)
	lo, hi = v.scrollRange(a.Y, a.H, v.screen.Height)
	v.scroll.Y = clamp(v.scroll.Y, lo, hi)
}

func (v *Viewport) camera() camera {
	return camera{zoom: v.zoom, scroll: v.scroll, screen: v.screen, extent: v.extent}
}

func (v *Viewport) notify(prev camera) {
	if v.OnChange != nil && v.camera() != prev {
		v.OnChange(v)
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
