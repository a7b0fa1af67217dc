/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"

	xvector "golang.org/x/image/vector"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
)

// MaxImageSide bounds either PNG dimension.
const MaxImageSide = 16384

// RenderImage rasterizes the board.
func RenderImage(items []domain.Item, opts Options) (*image.RGBA, error) {
	l := NewLayout(items, opts)
	return l.render()
}

func (l Layout) render() (*image.RGBA, error) {
	o := l.opts
	fw, fh := l.Size()
	w, h := int(math.Ceil(fw)), int(math.Ceil(fh))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > MaxImageSide || h > MaxImageSide {
		return nil, fmt.Errorf("image %dx%d exceeds %d px; lower the scale", w, h, MaxImageSide)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(o.Background.rgba()), image.Point{}, draw.Src)

	z := xvector.NewRasterizer(w, h)
	if o.IncludeCanvas {
		l.stroke(z, img, vector.Box{Rect: l.Canvas}, o.StrokeW, o.CanvasLine)
	}
	for _, s := range l.Shapes {
		l.fill(z, img, s.Box, s.Fill)
		l.stroke(z, img, s.Box, o.StrokeW, o.Stroke)
		if o.Labels {
			l.label(img, s)
		}
	}
	return img, nil
}

func (l Layout) path(z *xvector.Rasterizer, c [4]vector.Pt, reverse bool) {
	if reverse {
		c[1], c[3] = c[3], c[1]
	}
	p := l.toPage(c[0])
	z.MoveTo(float32(p.X), float32(p.Y))
	for _, q := range c[1:] {
		p = l.toPage(q)
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

func (l Layout) paint(z *xvector.Rasterizer, img *image.RGBA, col Color) {
	b := img.Bounds()
	z.Draw(img, b, image.NewUniform(col.rgba()), image.Point{})
	z.Reset(b.Dx(), b.Dy())
}

func (l Layout) fill(z *xvector.Rasterizer, img *image.RGBA, b vector.Box, col Color) {
	l.path(z, b.Corners(), false)
	l.paint(z, img, col)
}

// stroke draws a ring of width sw centered on the box outline. The inner
// contour runs the other way so the rasterizer leaves it hollow.
func (l Layout) stroke(z *xvector.Rasterizer, img *image.RGBA, b vector.Box, sw float64, col Color) {
	outer := vector.Box{Rect: b.Rect.Inset(-sw/2, -sw/2), Rotation: b.Rotation}
	l.path(z, outer.Corners(), false)
	inner := vector.Box{Rect: b.Rect.Inset(sw/2, sw/2), Rotation: b.Rotation}
	if !inner.Rect.Empty() {
		l.path(z, inner.Corners(), true)
	}
	l.paint(z, img, col)
}

func (l Layout) label(img *image.RGBA, s Shape) {
	text := label(s.Item)
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(l.opts.Stroke.rgba()),
		Face: basicfont.Face7x13,
	}
	c := l.toPage(s.Box.Rect.Center())
	tw := d.MeasureString(text).Ceil()
	d.Dot = fixed.P(int(c.X)-tw/2, int(c.Y)+basicfont.Face7x13.Ascent/2)
	d.DrawString(text)
}

// ExportPNG writes the board as a PNG image.
func ExportPNG(items []domain.Item, path string, opts Options) error {
	img, err := RenderImage(items, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
