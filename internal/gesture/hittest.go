/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
	"lifeboard/internal/viewport"
)

// Zone is the part of an item a pointer landed on.
type Zone int

const (
	ZoneNone Zone = iota
	ZoneBody
	ZoneResize
	ZoneRotate
)

// Handle geometry in screen pixels. The resize handle is a square centered
// on the bottom-right corner; the rotate handle a disc above the top edge.
const (
	HandleSize         = 12.0
	RotateHandleOffset = 24.0
)

// Gesture returns the gesture a pointer-down in the zone starts.
func (z Zone) Gesture() State {
	switch z {
	case ZoneBody:
		return Translating
	case ZoneResize:
		return Resizing
	case ZoneRotate:
		return Rotating
	}
	return Idle
}

func (z Zone) String() string {
	switch z {
	case ZoneBody:
		return "body"
	case ZoneResize:
		return "resize-handle"
	case ZoneRotate:
		return "rotate-handle"
	}
	return "none"
}

// Hit is the result of a hit test.
type Hit struct {
	Item domain.Item
	Zone Zone
}

// HitTest finds the topmost item under the screen point p. Handles are
// checked before bodies since they overhang the item.
func HitTest(items []domain.Item, vp *viewport.Viewport, p domain.Point) (Hit, bool) {
	ordered := domain.PaintOrder(items)
	sp := vector.Pt{X: p.X, Y: p.Y}
	for i := len(ordered) - 1; i >= 0; i-- {
		it := ordered[i]
		if z := zoneAt(vp.Resolve(it.Geometry()).Box(), sp); z != ZoneNone {
			return Hit{Item: it, Zone: z}, true
		}
	}
	return Hit{}, false
}

// HandlePositions returns the screen centers of the resize and rotate handles.
func HandlePositions(vp *viewport.Viewport, g domain.Geometry) (resize, rotate domain.Point) {
	box := vp.Resolve(g).Box()
	r := box.Place(box.Rect.Max())
	c := box.Rect.Center()
	o := box.Place(vector.Pt{X: c.X, Y: box.Rect.Y - RotateHandleOffset})
	return domain.Point{X: r.X, Y: r.Y}, domain.Point{X: o.X, Y: o.Y}
}

func zoneAt(box vector.Box, p vector.Pt) Zone {
	local := box.Local(p)
	r := box.Rect
	half := HandleSize / 2
	if vector.R(r.X+r.W-half, r.Y+r.H-half, HandleSize, HandleSize).Contains(local) {
		return ZoneResize
	}
	if local.Dist(vector.Pt{X: r.X + r.W/2, Y: r.Y - RotateHandleOffset}) <= half {
		return ZoneRotate
	}
	if r.Contains(local) {
		return ZoneBody
	}
	return ZoneNone
}
