//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	xvector "golang.org/x/image/vector"

	"lifeboard/internal/commit"
	"lifeboard/internal/domain"
	"lifeboard/internal/export"
	"lifeboard/internal/gesture"
	"lifeboard/internal/layering"
	applog "lifeboard/internal/log"
	"lifeboard/internal/telemetry"
	"lifeboard/internal/vector"
	"lifeboard/internal/viewport"
)

var (
	colBackground = color.RGBA{R: 30, G: 30, B: 34, A: 255}
	colCanvas     = color.RGBA{R: 250, G: 250, B: 247, A: 255}
	colOutline    = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	colSelection  = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	colRotate     = color.RGBA{R: 255, G: 170, B: 0, A: 255}
)

// BoardCanvas shows the items of one board through a viewport and turns
// pointer drags into move, resize and rotate gestures. Empty space pans,
// the wheel zooms around the pointer.
type BoardCanvas struct {
	widget.BaseWidget

	ctx      context.Context
	store    domain.ItemStore
	vp       *viewport.Viewport
	disp     *gesture.Dispatcher
	ctrl     *gesture.Controller
	boundary *commit.Boundary
	layers   *layering.Engine
	log      *slog.Logger

	items    []domain.Item
	selected string

	// homed is set once the first layout centered the camera
	homed bool
	// laying is set while the renderer lays out; camera changes then only
	// mark the raster stale instead of refreshing the widget again.
	laying bool
	stale  bool

	// drag bookkeeping; a drag is either a gesture or a pan
	dragging bool
	panning  bool
	// cancelled drops the rest of a drag whose gesture was cancelled
	cancelled bool
	last      domain.Point

	// OnStatus receives short user-facing messages.
	OnStatus func(string)
	// OnSelect is called when the selection changes; id is empty when cleared.
	OnSelect func(id string)
	// OnItems is called after every reload.
	OnItems func([]domain.Item)
}

// CanvasOptions configure a BoardCanvas.
type CanvasOptions struct {
	Viewport     viewport.Config
	CancelPolicy gesture.CancelPolicy
	LayerLimit   int
}

// NewBoardCanvas wires a viewport, pointer dispatcher, gesture controller
// and layering engine over store. Call Reload to fetch the items.
func NewBoardCanvas(ctx context.Context, store domain.ItemStore, opts CanvasOptions) *BoardCanvas {
	b := &BoardCanvas{
		ctx:   ctx,
		store: store,
		vp:    viewport.New(opts.Viewport),
		disp:  gesture.NewDispatcher(),
		log:   applog.WithComponent("ui.canvas"),
	}
	b.boundary = commit.New(store)
	b.boundary.OnError = func(id string, _ domain.GeometryPatch, err error) {
		b.status(fmt.Sprintf("Could not save %s: %v", id, err))
	}
	b.ctrl = gesture.NewController(b.vp, b.disp, b.boundary, gesture.Options{CancelPolicy: opts.CancelPolicy, Context: ctx})
	b.ctrl.OnChange = func(string, domain.Geometry) { b.Refresh() }
	b.ctrl.OnEnd = b.gestureEnded
	b.layers = layering.New(store, b.boundary)
	b.layers.Limit = opts.LayerLimit
	b.layers.OnChange = func(ch layering.Change) { telemetry.LayerChange(ch.Op.String(), ch.Renumbered > 0) }
	b.vp.OnChange = func(*viewport.Viewport) {
		if b.laying {
			b.stale = true
			return
		}
		b.Refresh()
	}
	b.ExtendBaseWidget(b)
	return b
}

// Viewport exposes the camera for zoom controls.
func (b *BoardCanvas) Viewport() *viewport.Viewport { return b.vp }

// Items returns the last loaded items.
func (b *BoardCanvas) Items() []domain.Item { return b.items }

// Selected returns the selected item id, empty when none.
func (b *BoardCanvas) Selected() string { return b.selected }

// Reload fetches the items from the store. It must run on the UI goroutine.
func (b *BoardCanvas) Reload() error {
	items, err := b.store.Items(b.ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	b.items = items
	b.vp.SetContentBounds(itemBounds(items))
	if b.OnItems != nil {
		b.OnItems(items)
	}
	if _, ok := domain.FindItem(items, b.selected); !ok && b.selected != "" {
		b.setSelected("")
	}
	b.Refresh()
	return nil
}

// Select marks id as selected. Unknown ids clear the selection.
func (b *BoardCanvas) Select(id string) {
	if _, ok := domain.FindItem(b.items, id); !ok {
		id = ""
	}
	b.setSelected(id)
	b.Refresh()
}

func (b *BoardCanvas) setSelected(id string) {
	if id == b.selected {
		return
	}
	b.selected = id
	if b.OnSelect != nil {
		b.OnSelect(id)
	}
}

// AddItem creates an item of kind centered in the visible area, above everything else.
func (b *BoardCanvas) AddItem(kind string) (domain.Item, error) {
	g := domain.DefaultGeometry(b.vp.Extent())
	if b.vp.Screen().Width > 0 {
		c := b.vp.LogicalCenter()
		g.Position = domain.Point{X: c.X - g.Size.Width/2, Y: c.Y - g.Size.Height/2}
	}
	for _, it := range b.items {
		g.ZIndex = max(g.ZIndex, it.ZIndex+1)
	}
	it, err := b.store.CreateItem(b.ctx, domain.NewItem{Kind: kind, Geometry: &g})
	if err != nil {
		return domain.Item{}, err
	}
	b.selected = it.ID
	if err := b.Reload(); err != nil {
		return it, err
	}
	if b.OnSelect != nil {
		b.OnSelect(it.ID)
	}
	return it, nil
}

// DeleteSelected removes the selected item.
func (b *BoardCanvas) DeleteSelected() error {
	if b.selected == "" {
		return nil
	}
	if err := b.store.DeleteItem(b.ctx, b.selected); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	b.setSelected("")
	return b.Reload()
}

// Layer applies a stacking operation to the selected item.
func (b *BoardCanvas) Layer(op layering.Op) error {
	if b.selected == "" {
		return nil
	}
	if _, err := b.layers.Apply(b.ctx, op, b.selected); err != nil {
		return err
	}
	return b.Reload()
}

// Dragging reports whether a pointer drag is in progress.
func (b *BoardCanvas) Dragging() bool { return b.dragging }

// Home centers the canvas at the current zoom.
func (b *BoardCanvas) Home() { b.vp.Home() }

// Fit zooms so every item is visible. An empty board goes home.
func (b *BoardCanvas) Fit() {
	if len(b.items) == 0 {
		b.vp.Home()
		return
	}
	b.vp.FitToView(itemBounds(b.items), 40)
}

// itemBounds is the logical rectangle covering every item's rotated box.
func itemBounds(items []domain.Item) vector.Rect {
	var bounds vector.Rect
	for i, it := range items {
		r := vector.Box{Rect: vector.R(it.Position.X, it.Position.Y, it.Size.Width, it.Size.Height), Rotation: it.Rotation}.Bounds()
		if i == 0 {
			bounds = r
		} else {
			bounds = bounds.Union(r)
		}
	}
	return bounds
}

// CancelGesture ends the active gesture under the configured cancel policy.
// The remainder of the physical drag is ignored until the pointer is released.
func (b *BoardCanvas) CancelGesture() {
	if b.ctrl.State() == gesture.Idle {
		return
	}
	b.disp.Cancel()
	if b.dragging {
		b.cancelled = true
	}
}

// Close tears down an active gesture without committing.
func (b *BoardCanvas) Close() { b.ctrl.Close() }

func (b *BoardCanvas) gestureEnded(r gesture.Result) {
	telemetry.GestureCommit(r.Kind.String(), r.Moves, r.Cancelled)
	if r.Err != nil {
		b.log.Warn("gesture ended with error", slog.String("item", r.ItemID), slog.Any("err", r.Err))
	}
	if err := b.Reload(); err != nil {
		b.status(err.Error())
		return
	}
	if r.Err == nil {
		b.status(fmt.Sprintf("%s %s", r.Kind, shortID(r.ItemID)))
	}
}

func (b *BoardCanvas) status(msg string) {
	if b.OnStatus != nil {
		b.OnStatus(msg)
	}
}

// view returns the items as they should be drawn: the active item carries
// its in-flight geometry.
func (b *BoardCanvas) view() []domain.Item {
	id, active := b.ctrl.ActiveItem()
	g, ok := b.ctrl.Ephemeral()
	if !active || !ok {
		return domain.PaintOrder(b.items)
	}
	items := make([]domain.Item, len(b.items))
	copy(items, b.items)
	for i := range items {
		if items[i].ID == id {
			items[i].Position, items[i].Size, items[i].Rotation = g.Position, g.Size, g.Rotation
		}
	}
	return domain.PaintOrder(items)
}

func point(p fyne.Position) domain.Point { return domain.Point{X: float64(p.X), Y: float64(p.Y)} }

func position(p domain.Point) fyne.Position { return fyne.NewPos(float32(p.X), float32(p.Y)) }

// Tapped selects the topmost item under the pointer or clears the selection.
func (b *BoardCanvas) Tapped(e *fyne.PointEvent) {
	if h, ok := gesture.HitTest(b.items, b.vp, point(e.Position)); ok {
		b.setSelected(h.Item.ID)
	} else {
		b.setSelected("")
	}
	b.Refresh()
}

// Dragged starts a gesture on the first event of a drag and forwards moves to it.
func (b *BoardCanvas) Dragged(e *fyne.DragEvent) {
	if b.cancelled {
		return
	}
	p := point(e.Position)
	if !b.dragging {
		b.dragging = true
		start := domain.Point{X: p.X - float64(e.Dragged.DX), Y: p.Y - float64(e.Dragged.DY)}
		h, began := b.ctrl.PointerDown(b.items, start)
		switch {
		case began:
			b.setSelected(h.Item.ID)
		case h.Item.ID == "":
			b.panning = true
		}
	}
	b.last = p
	if b.panning {
		b.vp.Pan(-float64(e.Dragged.DX), -float64(e.Dragged.DY))
		return
	}
	b.disp.Move(p)
}

// DragEnd releases the pointer.
func (b *BoardCanvas) DragEnd() {
	if b.dragging && !b.panning && !b.cancelled {
		b.disp.Up(b.last)
	}
	b.dragging, b.panning, b.cancelled = false, false, false
}

// Scrolled zooms by one step around the pointer.
func (b *BoardCanvas) Scrolled(e *fyne.ScrollEvent) {
	if e.Scrolled.DY == 0 || b.ctrl.State() != gesture.Idle {
		return
	}
	step := b.vp.Config().ZoomStep
	if e.Scrolled.DY < 0 {
		step = -step
	}
	b.vp.ZoomAround(point(e.Position), b.vp.Zoom()+step)
}

// MinSize keeps the canvas usable in small windows.
func (b *BoardCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

// CreateRenderer builds the raster for fills plus vector objects for
// outlines, labels and handles.
func (b *BoardCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &boardRenderer{b: b}
	r.raster = canvas.NewRaster(r.paint)
	for i := range r.outline {
		r.outline[i] = canvas.NewLine(colSelection)
		r.outline[i].StrokeWidth = 2
	}
	r.resize = canvas.NewRectangle(colSelection)
	r.rotate = canvas.NewCircle(colRotate)
	r.rebuild()
	return r
}

type boardRenderer struct {
	b       *BoardCanvas
	raster  *canvas.Raster
	labels  []*canvas.Text
	outline [4]*canvas.Line
	resize  *canvas.Rectangle
	rotate  *canvas.Circle
	objects []fyne.CanvasObject
}

func (r *boardRenderer) Destroy()                     {}
func (r *boardRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *boardRenderer) MinSize() fyne.Size           { return r.b.MinSize() }

func (r *boardRenderer) Refresh() {
	r.rebuild()
	r.Layout(r.b.Size())
	canvas.Refresh(r.b)
}

// rebuild keeps one label per item.
func (r *boardRenderer) rebuild() {
	n := len(r.b.items)
	for len(r.labels) < n {
		t := canvas.NewText("", colOutline)
		t.TextSize = 11
		r.labels = append(r.labels, t)
	}
	r.labels = r.labels[:n]
	r.objects = r.objects[:0]
	r.objects = append(r.objects, r.raster)
	for _, t := range r.labels {
		r.objects = append(r.objects, t)
	}
	for _, l := range r.outline {
		r.objects = append(r.objects, l)
	}
	r.objects = append(r.objects, r.resize, r.rotate)
}

func (r *boardRenderer) Layout(size fyne.Size) {
	b := r.b
	b.laying = true
	b.vp.SetScreenSize(float64(size.Width), float64(size.Height))
	if !b.homed && size.Width > 0 && size.Height > 0 {
		b.homed = true
		b.vp.Home()
	}
	b.laying = false
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
	if b.stale {
		b.stale = false
		r.raster.Refresh()
	}

	view := b.view()
	for i, it := range view {
		if i >= len(r.labels) {
			break
		}
		t := r.labels[i]
		t.Text = itemLabel(it)
		c := position(b.vp.ScreenCenterOf(it.Geometry()))
		ms := t.MinSize()
		t.Move(fyne.NewPos(c.X-ms.Width/2, c.Y-ms.Height/2))
		t.Resize(ms)
	}

	sel, ok := domain.FindItem(view, b.selected)
	for _, l := range r.outline {
		l.Hidden = !ok
	}
	r.resize.Hidden, r.rotate.Hidden = !ok, !ok
	if !ok {
		return
	}
	g := sel.Geometry()
	corners := b.vp.Resolve(g).Box().Corners()
	for i, l := range r.outline {
		a, z := corners[i], corners[(i+1)%4]
		l.Position1 = fyne.NewPos(float32(a.X), float32(a.Y))
		l.Position2 = fyne.NewPos(float32(z.X), float32(z.Y))
	}
	rs, ro := gesture.HandlePositions(b.vp, g)
	hs := float32(gesture.HandleSize)
	r.resize.Resize(fyne.NewSize(hs, hs))
	r.resize.Move(fyne.NewPos(float32(rs.X)-hs/2, float32(rs.Y)-hs/2))
	r.rotate.Resize(fyne.NewSize(hs, hs))
	r.rotate.Move(fyne.NewPos(float32(ro.X)-hs/2, float32(ro.Y)-hs/2))
}

// paint draws the canvas area and item fills at device resolution.
func (r *boardRenderer) paint(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return img
	}
	fillRect(img, img.Bounds(), colBackground)
	b := r.b
	size := b.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return img
	}
	sx := float64(w) / float64(size.Width)
	sy := float64(h) / float64(size.Height)
	dev := func(p vector.Pt) vector.Pt { return vector.Pt{X: p.X * sx, Y: p.Y * sy} }

	ext := b.vp.Extent()
	o := b.vp.LogicalToScreen(domain.Point{})
	area := vector.Box{Rect: vector.R(o.X, o.Y, ext*b.vp.Zoom(), ext*b.vp.Zoom())}
	z := xvector.NewRasterizer(w, h)
	quad(z, area.Corners(), dev, false)
	z.Draw(img, img.Bounds(), image.NewUniform(colCanvas), image.Point{})

	for _, it := range b.view() {
		box := b.vp.Resolve(it.Geometry()).Box()
		z.Reset(w, h)
		quad(z, box.Corners(), dev, false)
		z.Draw(img, img.Bounds(), image.NewUniform(export.KindColor(it)), image.Point{})

		inner := vector.Box{Rect: box.Rect.Inset(1, 1), Rotation: box.Rotation}
		z.Reset(w, h)
		quad(z, box.Corners(), dev, false)
		quad(z, inner.Corners(), dev, true)
		z.Draw(img, img.Bounds(), image.NewUniform(colOutline), image.Point{})
	}
	return img
}

// quad adds a closed four-point path; reverse winds it the other way so an
// inner quad cuts a hole.
func quad(z *xvector.Rasterizer, c [4]vector.Pt, dev func(vector.Pt) vector.Pt, reverse bool) {
	order := [4]int{0, 1, 2, 3}
	if reverse {
		order = [4]int{0, 3, 2, 1}
	}
	p := dev(c[order[0]])
	z.MoveTo(float32(p.X), float32(p.Y))
	for _, i := range order[1:] {
		p = dev(c[i])
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func itemLabel(it domain.Item) string {
	if it.Kind != "" {
		return it.Kind
	}
	return shortID(it.ID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// zoomPercent formats the zoom for the status bar.
func zoomPercent(z float64) string { return fmt.Sprintf("%d%%", int(math.Round(z*100))) }
