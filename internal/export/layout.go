/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a board as a wireframe: every item is drawn as its
// rotated box in paint order, optionally labelled with its kind. PNG, SVG
// and PDF outputs share one layout.
package export

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"path/filepath"
	"strings"

	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
)

// Color is an 8-bit RGBA color.
type Color struct{ R, G, B, A uint8 }

func (c Color) zero() bool { return c == Color{} }

func (c Color) rgba() color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

func (c Color) hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// Options controls all exporters. Zero values get defaults.
type Options struct {
	// Scale is output units per logical unit (pixels for PNG and SVG, points for PDF).
	Scale float64
	// Padding in logical units around the items' bounds.
	Padding float64
	// Extent, when > 0 and IncludeCanvas is set, draws the canvas square.
	Extent        float64
	IncludeCanvas bool
	Labels        bool

	Background Color
	Stroke     Color
	StrokeW    float64 // logical units
	CanvasLine Color
	// Fill picks an item's fill color. Nil uses a palette keyed by kind.
	Fill func(it domain.Item) Color
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
	if o.Background.zero() {
		o.Background = Color{255, 255, 255, 255}
	}
	if o.Stroke.zero() {
		o.Stroke = Color{40, 40, 40, 255}
	}
	if o.StrokeW <= 0 {
		o.StrokeW = 2
	}
	if o.CanvasLine.zero() {
		o.CanvasLine = Color{220, 60, 60, 255}
	}
	if o.Fill == nil {
		o.Fill = kindColor
	}
	return o
}

var palette = []Color{
	{255, 236, 179, 255},
	{200, 230, 201, 255},
	{187, 222, 251, 255},
	{248, 187, 208, 255},
	{225, 190, 231, 255},
	{255, 204, 188, 255},
}

// KindColor is the default fill for an item, picked from a fixed palette by kind.
func KindColor(it domain.Item) color.RGBA { return kindColor(it).rgba() }

func kindColor(it domain.Item) Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(it.Kind))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Shape is one item ready to draw.
type Shape struct {
	Item domain.Item
	Box  vector.Box
	Fill Color
}

// Layout is the board arranged for output. Page is in logical units.
type Layout struct {
	Page   vector.Rect
	Shapes []Shape
	Canvas vector.Rect
	opts   Options
}

// NewLayout orders items bottom to top and computes a page that contains
// all of them. An empty board yields the canvas square.
func NewLayout(items []domain.Item, opts Options) Layout {
	opts = opts.withDefaults()
	l := Layout{opts: opts}
	extent := opts.Extent
	if extent <= 0 {
		extent = domain.DefaultCanvasExtent
	}
	l.Canvas = vector.R(0, 0, extent, extent)

	var bounds vector.Rect
	for _, it := range domain.PaintOrder(items) {
		b := vector.Box{
			Rect:     vector.R(it.Position.X, it.Position.Y, it.Size.Width, it.Size.Height),
			Rotation: it.Rotation,
		}
		l.Shapes = append(l.Shapes, Shape{Item: it, Box: b, Fill: opts.Fill(it)})
		bounds = bounds.Union(b.Bounds())
	}
	if opts.IncludeCanvas {
		bounds = bounds.Union(l.Canvas)
	}
	if bounds.Empty() {
		bounds = l.Canvas
	}
	l.Page = bounds.Inset(-opts.Padding, -opts.Padding)
	return l
}

// Options returns the resolved options.
func (l Layout) Options() Options { return l.opts }

// toPage maps a logical point to output units with the page origin at 0,0.
func (l Layout) toPage(p vector.Pt) vector.Pt {
	return p.Sub(l.Page.Min()).Scale(l.opts.Scale)
}

// Size is the output size in output units.
func (l Layout) Size() (w, h float64) {
	return l.Page.W * l.opts.Scale, l.Page.H * l.opts.Scale
}

func label(it domain.Item) string {
	if it.Kind != "" {
		return it.Kind
	}
	if len(it.ID) > 8 {
		return it.ID[:8]
	}
	return it.ID
}

// Format names an output format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
)

// FormatFor derives the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")); f {
	case FormatPNG, FormatSVG, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

// ExportFile writes items to path in the format named by its extension.
func ExportFile(items []domain.Item, path string, opts Options) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	return exportAs(f, items, path, opts)
}

func exportAs(f Format, items []domain.Item, path string, opts Options) error {
	switch f {
	case FormatPNG:
		return ExportPNG(items, path, opts)
	case FormatSVG:
		return ExportSVG(items, path, opts)
	case FormatPDF:
		return ExportPDF(items, path, opts)
	}
	return fmt.Errorf("unknown format: %s", f)
}
