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
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lifeboard/internal/domain"
)

func item(id string, x, y, w, h, rot float64, z int) domain.Item {
	return domain.Item{
		ID:       id,
		Kind:     "note",
		Position: domain.Point{X: x, Y: y},
		Size:     domain.Size{Width: w, Height: h},
		Rotation: rot,
		ZIndex:   z,
	}
}

func blue(domain.Item) Color { return Color{0, 0, 255, 255} }

func TestNewLayout_EmptyBoardUsesCanvas(t *testing.T) {
	l := NewLayout(nil, Options{Extent: 1200, Padding: 10})
	if l.Page.X != -10 || l.Page.Y != -10 || l.Page.W != 1220 || l.Page.H != 1220 {
		t.Fatalf("page = %+v", l.Page)
	}
	if len(l.Shapes) != 0 {
		t.Fatalf("shapes = %d", len(l.Shapes))
	}
}

func TestNewLayout_BoundsAndPaintOrder(t *testing.T) {
	items := []domain.Item{
		item("top", 0, 0, 100, 100, 45, 5),
		item("bottom", 500, 500, 100, 50, 0, 1),
	}
	l := NewLayout(items, Options{})
	if l.Shapes[0].Item.ID != "bottom" || l.Shapes[1].Item.ID != "top" {
		t.Fatalf("paint order = %s,%s", l.Shapes[0].Item.ID, l.Shapes[1].Item.ID)
	}
	half := 50 * math.Sqrt2
	if math.Abs(l.Page.X-(50-half)) > 1e-9 || math.Abs(l.Page.Y-(50-half)) > 1e-9 {
		t.Fatalf("page origin = %v,%v", l.Page.X, l.Page.Y)
	}
	if math.Abs(l.Page.X+l.Page.W-600) > 1e-9 || math.Abs(l.Page.Y+l.Page.H-550) > 1e-9 {
		t.Fatalf("page max = %+v", l.Page)
	}
	w, h := NewLayout(items, Options{Scale: 2}).Size()
	if math.Abs(w-2*l.Page.W) > 1e-9 || math.Abs(h-2*l.Page.H) > 1e-9 {
		t.Fatalf("scaled size = %v x %v", w, h)
	}
}

func TestRenderImage_FillAndStroke(t *testing.T) {
	img, err := RenderImage([]domain.Item{item("a", 0, 0, 100, 100, 0, 1)}, Options{Padding: 10, Fill: blue})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Fatalf("bounds = %v", b)
	}
	if got := img.RGBAAt(60, 60); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("center = %v", got)
	}
	if got := img.RGBAAt(10, 60); got != (color.RGBA{40, 40, 40, 255}) {
		t.Fatalf("edge = %v", got)
	}
	if got := img.RGBAAt(3, 3); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("background = %v", got)
	}
}

func TestRenderImage_Rotated(t *testing.T) {
	l := NewLayout([]domain.Item{item("a", 0, 0, 100, 100, 45, 1)}, Options{Padding: 10, Fill: blue})
	img, err := l.render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// The unrotated top-left corner falls outside the diamond.
	cx, cy := int(3-l.Page.X), int(3-l.Page.Y)
	if got := img.RGBAAt(cx, cy); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("corner = %v", got)
	}
	mx, my := int(50-l.Page.X), int(50-l.Page.Y)
	if got := img.RGBAAt(mx, my); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("center = %v", got)
	}
}

func TestRenderImage_TooLarge(t *testing.T) {
	if _, err := RenderImage(nil, Options{Scale: 100}); err == nil {
		t.Fatal("expected size error")
	}
}

func TestRenderSVG(t *testing.T) {
	items := []domain.Item{
		item("upper", 100, 100, 100, 100, 30, 2),
		item("lower", 0, 0, 50, 50, 0, 1),
	}
	items[0].Kind = "a<b"
	b, err := RenderSVG(items, Options{Labels: true, IncludeCanvas: true, Extent: 1000})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := string(b)
	for _, want := range []string{
		`transform="rotate(30 150 150)"`,
		`a&lt;b`,
		`class="canvas"`,
		`viewBox="0 0 1000 1000"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("svg missing %q:\n%s", want, s)
		}
	}
	if strings.Index(s, `data-id="lower"`) > strings.Index(s, `data-id="upper"`) {
		t.Fatal("lower item must be drawn first")
	}
	if strings.Count(s, "rotate(") != 1 {
		t.Fatal("unrotated items must not carry a transform")
	}
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	items := []domain.Item{item("a", 0, 0, 100, 100, 15, 1)}
	if err := RenderPDF(items, &buf, Options{Labels: true}); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:8])
	}
}

func TestExportFile_ByExtension(t *testing.T) {
	dir := t.TempDir()
	items := []domain.Item{item("a", 0, 0, 100, 100, 0, 1)}
	for _, name := range []string{"b.png", "b.svg", "b.PDF"} {
		p := filepath.Join(dir, name)
		if err := ExportFile(items, p, Options{}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if st, err := os.Stat(p); err != nil || st.Size() == 0 {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	if err := ExportFile(items, filepath.Join(dir, "b.gif"), Options{}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestBatchExport_WebPreset(t *testing.T) {
	root := t.TempDir()
	items := []domain.Item{item("a", 0, 0, 100, 100, 0, 1)}
	got, err := BatchExport(items, BatchOptions{Preset: PresetWeb, Root: root})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	checks := []string{
		filepath.Join(root, "exports", "web", "board.png"),
		filepath.Join(root, "exports", "web", "board.svg"),
	}
	if len(got) != len(checks) {
		t.Fatalf("written = %v", got)
	}
	for _, p := range checks {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExport_PrintPresetAbsoluteDir(t *testing.T) {
	out := t.TempDir()
	no := false
	got, err := BatchExport(nil, BatchOptions{Preset: PresetPrint, OutDir: out, Scale: 0.5, IncludeCanvas: &no})
	if err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	if len(got) != 2 || got[0] != filepath.Join(out, "board.pdf") {
		t.Fatalf("written = %v", got)
	}
}

func TestBatchExport_UnknownFormat(t *testing.T) {
	if _, err := BatchExport(nil, BatchOptions{Preset: PresetWeb, Root: t.TempDir(), Formats: []string{"cbz"}}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParsePreset("Print"); err != nil {
		t.Fatalf("parse preset: %v", err)
	}
	if _, err := ParsePreset("poster"); err == nil {
		t.Fatal("expected unknown preset error")
	}
}
