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
	"io"
	"math"
	"os"

	"github.com/jung-kurt/gofpdf"

	"lifeboard/internal/domain"
	"lifeboard/internal/version"
)

func (l Layout) pdf() *gofpdf.Fpdf {
	w, h := l.Size()
	w, h = math.Max(w, 1), math.Max(h, 1)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetTitle("Lifeboard board", false)
	pdf.SetCreator(version.String(), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: w, Ht: h})

	o := l.opts
	s := o.Scale
	setFillColor(pdf, o.Background)
	pdf.Rect(0, 0, w, h, "F")
	pdf.SetLineWidth(o.StrokeW * s)

	if o.IncludeCanvas {
		setDrawColor(pdf, o.CanvasLine)
		p := l.toPage(l.Canvas.Min())
		pdf.Rect(p.X, p.Y, l.Canvas.W*s, l.Canvas.H*s, "D")
	}
	setDrawColor(pdf, o.Stroke)
	pdf.SetFont("Helvetica", "", 10*s)
	for _, sh := range l.Shapes {
		r := sh.Box.Rect
		p := l.toPage(r.Min())
		c := l.toPage(r.Center())
		// gofpdf rotates counter-clockwise; item rotation is clockwise.
		pdf.TransformBegin()
		if sh.Box.Rotation != 0 {
			pdf.TransformRotate(-sh.Box.Rotation, c.X, c.Y)
		}
		setFillColor(pdf, sh.Fill)
		pdf.Rect(p.X, p.Y, r.W*s, r.H*s, "FD")
		if o.Labels {
			if text := label(sh.Item); text != "" {
				pdf.SetTextColor(int(o.Stroke.R), int(o.Stroke.G), int(o.Stroke.B))
				pdf.Text(c.X-pdf.GetStringWidth(text)/2, c.Y+3*s, text)
			}
		}
		pdf.TransformEnd()
	}
	return pdf
}

// RenderPDF writes the board as a single-page PDF to w.
func RenderPDF(items []domain.Item, w io.Writer, opts Options) error {
	pdf := NewLayout(items, opts).pdf()
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF writes the board as a PDF file.
func ExportPDF(items []domain.Item, path string, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := RenderPDF(items, f, opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func setDrawColor(pdf *gofpdf.Fpdf, c Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
