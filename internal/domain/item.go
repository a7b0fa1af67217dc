/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the board data model: items placed on the canvas and
// the partial geometry updates that move, size, rotate and layer them.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"
)

const (
	// MinSize is the smallest width or height an item may have at rest.
	MinSize = 50.0

	DefaultWidth  = 200.0
	DefaultHeight = 200.0
	DefaultZIndex = 1

	// DefaultCanvasExtent is the side length of the logical square the board
	// renders chrome for. Default positions sit at its center.
	DefaultCanvasExtent = 3000.0
	// MinCanvasExtent bounds the extent from below.
	MinCanvasExtent = 1000.0
)

// ErrNotFound is returned by stores when an item id is unknown.
var ErrNotFound = errors.New("item not found")

// Point is a logical canvas coordinate. The origin is fixed; values may be negative.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Size is a width/height pair in logical units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Geometry is the spatial state of an item: where it is, how big, how turned
// and where it sits in paint order.
type Geometry struct {
	Position Point   `json:"position"`
	Size     Size    `json:"size"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"zIndex"`
}

// DefaultGeometry returns the geometry substituted for missing data:
// centered on a canvas of the given extent, default size, no rotation, zIndex 1.
func DefaultGeometry(extent float64) Geometry {
	if !finite(extent) || extent < MinCanvasExtent {
		extent = DefaultCanvasExtent
	}
	return Geometry{
		Position: Point{X: extent / 2, Y: extent / 2},
		Size:     Size{Width: DefaultWidth, Height: DefaultHeight},
		Rotation: 0,
		ZIndex:   DefaultZIndex,
	}
}

// Sanitize replaces non-finite values with defaults and raises sizes below
// MinSize. It reports whether anything had to be changed.
func (g Geometry) Sanitize(extent float64) (Geometry, bool) {
	def := DefaultGeometry(extent)
	changed := false
	if !finite(g.Position.X) || !finite(g.Position.Y) {
		g.Position = def.Position
		changed = true
	}
	if !finite(g.Size.Width) || g.Size.Width <= 0 {
		g.Size.Width = def.Size.Width
		changed = true
	} else if g.Size.Width < MinSize {
		g.Size.Width = MinSize
		changed = true
	}
	if !finite(g.Size.Height) || g.Size.Height <= 0 {
		g.Size.Height = def.Size.Height
		changed = true
	} else if g.Size.Height < MinSize {
		g.Size.Height = MinSize
		changed = true
	}
	if !finite(g.Rotation) {
		g.Rotation = 0
		changed = true
	}
	return g, changed
}

// Center returns the logical center of the item's unrotated box.
func (g Geometry) Center() Point {
	return Point{X: g.Position.X + g.Size.Width/2, Y: g.Position.Y + g.Size.Height/2}
}

// Item is one placed object on the board. Kind and Payload describe the
// content and are passed through untouched.
type Item struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind,omitempty"`
	Position  Point           `json:"position"`
	Size      Size            `json:"size"`
	Rotation  float64         `json:"rotation"`
	ZIndex    int             `json:"zIndex"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	CreatedAt time.Time       `json:"createdAt,omitzero"`
	UpdatedAt time.Time       `json:"updatedAt,omitzero"`
}

// Geometry returns the item's spatial state.
func (it Item) Geometry() Geometry {
	return Geometry{Position: it.Position, Size: it.Size, Rotation: it.Rotation, ZIndex: it.ZIndex}
}

// SetGeometry replaces the item's spatial state.
func (it *Item) SetGeometry(g Geometry) {
	it.Position = g.Position
	it.Size = g.Size
	it.Rotation = g.Rotation
	it.ZIndex = g.ZIndex
}

// NewItem carries the initial fields for CreateItem. A nil Geometry means
// defaults; ID may be empty to let the store assign one.
type NewItem struct {
	ID       string          `json:"id,omitempty"`
	Kind     string          `json:"kind"`
	Geometry *Geometry       `json:"geometry,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Build returns the item described by n. Missing geometry becomes the
// default for a canvas of the given extent and the result is sanitized.
func (n NewItem) Build(extent float64) Item {
	g := DefaultGeometry(extent)
	if n.Geometry != nil {
		g, _ = n.Geometry.Sanitize(extent)
	}
	it := Item{ID: n.ID, Kind: n.Kind}
	if len(n.Payload) > 0 {
		it.Payload = append(json.RawMessage(nil), n.Payload...)
	}
	it.SetGeometry(g)
	return it
}

// ItemStore is the persistence collaborator for the board. The canvas
// engine only ever calls UpdateItem; Create and Delete belong to the host.
type ItemStore interface {
	Items(ctx context.Context) ([]Item, error)
	UpdateItem(ctx context.Context, id string, patch GeometryPatch) error
	DeleteItem(ctx context.Context, id string) error
	CreateItem(ctx context.Context, fields NewItem) (Item, error)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
