/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"os"

	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
)

// RenderSVG returns the board as an SVG document. Coordinates stay logical;
// the viewBox maps them onto the scaled page.
func RenderSVG(items []domain.Item, opts Options) ([]byte, error) {
	l := NewLayout(items, opts)
	o := l.opts
	pw, ph := l.Size()

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"%g %g %g %g\">\n",
		int(math.Ceil(pw)), int(math.Ceil(ph)), l.Page.X, l.Page.Y, l.Page.W, l.Page.H)
	wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n",
		l.Page.X, l.Page.Y, l.Page.W, l.Page.H, o.Background.hex())
	if o.IncludeCanvas {
		wf("  <rect class=\"canvas\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
			l.Canvas.X, l.Canvas.Y, l.Canvas.W, l.Canvas.H, o.CanvasLine.hex(), o.StrokeW)
	}
	for _, s := range l.Shapes {
		r := s.Box.Rect
		c := r.Center()
		wf("  <g data-id=\"%s\" data-z=\"%d\"", escAttr(s.Item.ID), s.Item.ZIndex)
		if rot := vector.FloatRound(s.Box.Rotation, 4); rot != 0 {
			wf(" transform=\"rotate(%g %g %g)\"", rot, c.X, c.Y)
		}
		wf(">\n")
		wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
			r.X, r.Y, r.W, r.H, s.Fill.hex(), o.Stroke.hex(), o.StrokeW)
		if o.Labels {
			if text := label(s.Item); text != "" {
				wf("    <text x=\"%g\" y=\"%g\" text-anchor=\"middle\" dominant-baseline=\"middle\" font-family=\"sans-serif\" font-size=\"14\" fill=\"%s\">%s</text>\n",
					c.X, c.Y, o.Stroke.hex(), escText(text))
			}
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// ExportSVG writes the board as an SVG file.
func ExportSVG(items []domain.Item, path string, opts Options) error {
	b, err := RenderSVG(items, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func escText(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func escAttr(s string) string { return escText(s) }
