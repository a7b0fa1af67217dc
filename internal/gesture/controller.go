/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gesture turns raw pointer events into translate, resize and rotate
// gestures on board items. Moves only change ephemeral geometry; the durable
// write happens once, when the gesture ends.
package gesture

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"lifeboard/internal/commit"
	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
	"lifeboard/internal/vector"
	"lifeboard/internal/viewport"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	Translating
	Resizing
	Rotating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Translating:
		return "translate"
	case Resizing:
		return "resize"
	case Rotating:
		return "rotate"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CancelPolicy decides what a cancelled gesture commits.
type CancelPolicy int

const (
	// CommitOnCancel commits the last ephemeral geometry.
	CommitOnCancel CancelPolicy = iota
	// RevertOnCancel commits the geometry the gesture started from.
	RevertOnCancel
)

// ParseCancelPolicy maps "commit" and "revert" to a policy.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch s {
	case "", "commit":
		return CommitOnCancel, nil
	case "revert":
		return RevertOnCancel, nil
	}
	return CommitOnCancel, fmt.Errorf("unknown cancel policy %q", s)
}

func (p CancelPolicy) String() string {
	if p == RevertOnCancel {
		return "revert"
	}
	return "commit"
}

// Options tune a Controller.
type Options struct {
	CancelPolicy CancelPolicy
	// Context is used for commit writes. Defaults to context.Background().
	Context context.Context
}

// Result describes a finished gesture.
type Result struct {
	ItemID    string
	Kind      State
	Moves     int
	Cancelled bool
	Geometry  domain.Geometry
	Err       error
}

// session is the transient per-gesture state. It never leaves the controller
// except as a copy handed to the render callback.
type session struct {
	kind   State
	itemID string
	start  domain.Geometry
	cur    domain.Geometry
	moves  int

	startPointer domain.Point
	center       domain.Point
	prevAngle    float64
	turned       float64

	ticket *commit.Ticket
	sub    *Subscription
}

// Controller runs at most one gesture at a time. It is driven synchronously
// from the host event loop and is not safe for concurrent use.
type Controller struct {
	vp       *viewport.Viewport
	disp     *Dispatcher
	boundary *commit.Boundary
	opts     Options
	editable bool
	active   *session
	log      *slog.Logger

	// OnChange receives the ephemeral geometry after every move.
	OnChange func(itemID string, g domain.Geometry)
	// OnEnd is called after a gesture committed or was torn down.
	OnEnd func(Result)
}

// NewController wires a controller to a viewport, a pointer dispatcher and
// the commit boundary. Controllers start in editable mode.
func NewController(vp *viewport.Viewport, disp *Dispatcher, b *commit.Boundary, opts Options) *Controller {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Controller{
		vp:       vp,
		disp:     disp,
		boundary: b,
		opts:     opts,
		editable: true,
		log:      applog.WithComponent("gesture"),
	}
}

func (c *Controller) SetEditable(on bool) { c.editable = on }
func (c *Controller) Editable() bool      { return c.editable }

// State returns the current controller state.
func (c *Controller) State() State {
	if c.active == nil {
		return Idle
	}
	return c.active.kind
}

// ActiveItem returns the id of the item being manipulated, if any.
func (c *Controller) ActiveItem() (string, bool) {
	if c.active == nil {
		return "", false
	}
	return c.active.itemID, true
}

// Ephemeral returns the in-flight geometry of the active gesture.
func (c *Controller) Ephemeral() (domain.Geometry, bool) {
	if c.active == nil {
		return domain.Geometry{}, false
	}
	return c.active.cur, true
}

// Begin starts a gesture of the given kind on item with the pointer at the
// screen point p. It returns false, without side effects, when a gesture is
// already running, the board is read-only or kind is Idle.
func (c *Controller) Begin(item domain.Item, kind State, p domain.Point) bool {
	l := applog.WithOperation(c.log, "begin").With(slog.String("item", item.ID), slog.String("kind", kind.String()))
	switch {
	case kind == Idle || kind > Rotating:
		return false
	case !c.editable:
		l.Debug("rejected: not editable")
		return false
	case c.active != nil:
		l.Debug("rejected: gesture active", slog.String("active", c.active.itemID))
		return false
	}
	g := item.Geometry()
	s := &session{
		kind:         kind,
		itemID:       item.ID,
		start:        g,
		cur:          g,
		startPointer: p,
		ticket:       c.boundary.Open(item.ID),
	}
	if kind == Rotating {
		s.center = c.vp.ScreenCenterOf(g)
		s.prevAngle = angle(s.center, p)
	}
	s.sub = c.disp.Subscribe(c.onMove, c.onUp, c.onCancel)
	c.active = s
	l.Debug("started")
	return true
}

// PointerDown hit-tests items at p and begins the matching gesture.
func (c *Controller) PointerDown(items []domain.Item, p domain.Point) (Hit, bool) {
	h, ok := HitTest(items, c.vp, p)
	if !ok {
		return Hit{}, false
	}
	return h, c.Begin(h.Item, h.Zone.Gesture(), p)
}

func (c *Controller) onMove(ev PointerEvent) {
	s := c.active
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.abort("panic during move")
			panic(r)
		}
	}()
	s.moves++
	s.cur = c.step(s, ev.Pos)
	if c.OnChange != nil {
		c.OnChange(s.itemID, s.cur)
	}
}

// step computes the ephemeral geometry for pointer position p from the
// reference frame captured at Begin.
func (c *Controller) step(s *session, p domain.Point) domain.Geometry {
	g := s.start
	switch s.kind {
	case Translating:
		d := c.vp.LogicalDelta(p.X-s.startPointer.X, p.Y-s.startPointer.Y)
		g.Position = s.start.Position.Add(d)
	case Resizing:
		d := c.vp.LogicalDelta(p.X-s.startPointer.X, p.Y-s.startPointer.Y)
		g.Size = domain.Size{
			Width:  math.Max(domain.MinSize, s.start.Size.Width+d.X),
			Height: math.Max(domain.MinSize, s.start.Size.Height+d.Y),
		}
	case Rotating:
		// Accumulate the shortest signed step between samples so crossing
		// the atan2 branch cut at +-180 degrees never jumps.
		a := angle(s.center, p)
		s.turned += vector.WrapAngle(a - s.prevAngle)
		s.prevAngle = a
		g.Rotation = s.start.Rotation + vector.Rad2Deg(s.turned)
	}
	return g
}

func (c *Controller) onUp(PointerEvent)     { c.end(false) }
func (c *Controller) onCancel(PointerEvent) { c.end(true) }

// Cancel ends the active gesture as cancelled, as a pointer-cancel would.
func (c *Controller) Cancel() error { return c.end(true) }

func (c *Controller) end(cancelled bool) error {
	s := c.active
	if s == nil {
		return nil
	}
	c.active = nil
	s.sub.Release()

	g := s.cur
	if cancelled && c.opts.CancelPolicy == RevertOnCancel {
		g = s.start
	}
	err := s.ticket.Commit(c.opts.Context, patchFor(s.kind, g))
	l := applog.WithOperation(c.log, "end").With(
		slog.String("item", s.itemID),
		slog.String("kind", s.kind.String()),
		slog.Int("moves", s.moves),
		slog.Bool("cancelled", cancelled),
	)
	if err != nil {
		l.Warn("commit failed", slog.Any("err", err))
	} else {
		l.Debug("committed")
	}
	if c.OnEnd != nil {
		c.OnEnd(Result{ItemID: s.itemID, Kind: s.kind, Moves: s.moves, Cancelled: cancelled, Geometry: g, Err: err})
	}
	return err
}

// abort drops the active gesture without committing.
func (c *Controller) abort(reason string) {
	s := c.active
	if s == nil {
		return
	}
	c.active = nil
	s.sub.Release()
	c.log.Warn("gesture aborted", slog.String("item", s.itemID), slog.String("reason", reason))
}

// Close tears the controller down. An active gesture is discarded without a
// write and its listeners are released.
func (c *Controller) Close() { c.abort("teardown") }

func patchFor(kind State, g domain.Geometry) domain.GeometryPatch {
	switch kind {
	case Translating:
		return domain.PositionPatch(g.Position)
	case Resizing:
		return domain.SizePatch(g.Size)
	default:
		return domain.RotationPatch(g.Rotation)
	}
}

func angle(center, p domain.Point) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}
