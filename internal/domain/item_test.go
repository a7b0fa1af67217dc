/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDecodeItem_WellFormed(t *testing.T) {
	doc := `{"id":"a","kind":"quote","position":{"x":10,"y":-20},"size":{"width":120,"height":80},"rotation":370,"zIndex":4,"payload":{"text":"go"}}`
	it, repaired, err := DecodeItem([]byte(doc), DefaultCanvasExtent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if repaired {
		t.Fatalf("well-formed record reported as repaired")
	}
	if it.Position != (Point{X: 10, Y: -20}) || it.Size != (Size{Width: 120, Height: 80}) {
		t.Fatalf("unexpected geometry: %+v", it)
	}
	if it.Rotation != 370 || it.ZIndex != 4 {
		t.Fatalf("rotation/zIndex mismatch: %v %d", it.Rotation, it.ZIndex)
	}
	if string(it.Payload) != `{"text":"go"}` {
		t.Fatalf("payload not passed through: %s", it.Payload)
	}
}

func TestDecodeItem_DefaultsForCorruptFields(t *testing.T) {
	cases := map[string]string{
		"missing":     `{"id":"a"}`,
		"nulls":       `{"id":"a","position":null,"size":null,"rotation":null,"zIndex":null}`,
		"non-numeric": `{"id":"a","position":{"x":"left","y":true},"size":{"width":"big","height":[]},"rotation":"spin","zIndex":"top"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			var it Item
			if err := json.Unmarshal([]byte(doc), &it); err != nil {
				t.Fatalf("unmarshal must not fail: %v", err)
			}
			want := DefaultGeometry(DefaultCanvasExtent)
			if got := it.Geometry(); got != want {
				t.Fatalf("got %+v, want defaults %+v", got, want)
			}
			if want.Position != (Point{X: 1500, Y: 1500}) {
				t.Fatalf("default position should be canvas center, got %+v", want.Position)
			}
		})
	}
}

func TestDecodeItem_NumericStringsAndFlatFields(t *testing.T) {
	doc := `{"id":7,"x":"12.5","y":" 4 ","width":300,"height":"90","zIndex":"3"}`
	it, _, err := DecodeItem([]byte(doc), DefaultCanvasExtent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if it.ID != "7" {
		t.Fatalf("numeric id should be kept as string, got %q", it.ID)
	}
	if it.Position != (Point{X: 12.5, Y: 4}) || it.Size != (Size{Width: 300, Height: 90}) || it.ZIndex != 3 {
		t.Fatalf("unexpected decode: %+v", it)
	}
}

func TestDecodeItem_SizeBelowMinimumIsRaised(t *testing.T) {
	it, repaired, err := DecodeItem([]byte(`{"id":"a","position":{"x":0,"y":0},"size":{"width":10,"height":60},"zIndex":1}`), DefaultCanvasExtent)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !repaired || it.Size.Width != MinSize || it.Size.Height != 60 {
		t.Fatalf("expected width raised to %v, got %+v repaired=%v", MinSize, it.Size, repaired)
	}
}

func TestDecodeItem_RejectsNonObject(t *testing.T) {
	if _, _, err := DecodeItem([]byte(`[1,2]`), DefaultCanvasExtent); err == nil {
		t.Fatalf("expected error for array document")
	}
	if _, _, err := DecodeItem([]byte(`null`), DefaultCanvasExtent); err == nil {
		t.Fatalf("expected error for null document")
	}
}

func TestSanitize_NonFinite(t *testing.T) {
	g := Geometry{Position: Point{X: math.NaN(), Y: 1}, Size: Size{Width: math.Inf(1), Height: 70}, Rotation: math.NaN(), ZIndex: 9}
	got, changed := g.Sanitize(2000)
	if !changed {
		t.Fatalf("expected change")
	}
	if got.Position != (Point{X: 1000, Y: 1000}) || got.Size.Width != DefaultWidth || got.Size.Height != 70 || got.Rotation != 0 || got.ZIndex != 9 {
		t.Fatalf("unexpected sanitize result: %+v", got)
	}
}

func TestGeometryPatch_ApplyOnlyPresentFields(t *testing.T) {
	it := Item{ID: "a", Position: Point{X: 1, Y: 2}, Size: Size{Width: 60, Height: 70}, Rotation: 5, ZIndex: 2}
	p := RotationPatch(-190)
	p.ApplyTo(&it)
	if it.Rotation != -190 || it.Position != (Point{X: 1, Y: 2}) || it.ZIndex != 2 {
		t.Fatalf("patch touched too much: %+v", it)
	}
	if (GeometryPatch{}).Empty() != true || p.Empty() {
		t.Fatalf("Empty() mismatch")
	}
}

func TestGeometryPatch_Validate(t *testing.T) {
	if err := SizePatch(Size{Width: 49, Height: 100}).Validate(); err == nil {
		t.Fatalf("expected error for undersized patch")
	}
	if err := PositionPatch(Point{X: math.Inf(-1)}).Validate(); err == nil {
		t.Fatalf("expected error for non-finite position")
	}
	if err := ZIndexPatch(-1000).Validate(); err != nil {
		t.Fatalf("negative zIndex is valid: %v", err)
	}
}

func TestPaintOrder_TiesByInsertionThenID(t *testing.T) {
	items := []Item{
		{ID: "c", ZIndex: 2, Seq: 1},
		{ID: "b", ZIndex: 1, Seq: 5},
		{ID: "a", ZIndex: 1, Seq: 5},
		{ID: "d", ZIndex: 1, Seq: 2},
		{ID: "e", ZIndex: -3, Seq: 9},
	}
	got := PaintOrder(items)
	want := []string{"e", "d", "a", "b", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s want %s (order %v)", i, got[i].ID, id, got)
		}
	}
	if items[0].ID != "c" {
		t.Fatalf("input slice was reordered")
	}
}

func TestNewItem_Build(t *testing.T) {
	it := NewItem{ID: "n1", Kind: "note", Payload: json.RawMessage(`{"text":"hi"}`)}.Build(2000)
	if it.Position != (Point{X: 1000, Y: 1000}) || it.Size != (Size{Width: DefaultWidth, Height: DefaultHeight}) || it.ZIndex != DefaultZIndex {
		t.Fatalf("defaults not applied: %+v", it)
	}
	g := Geometry{Position: Point{X: -5, Y: 7}, Size: Size{Width: 10, Height: 80}, Rotation: 30, ZIndex: 4}
	it = NewItem{Geometry: &g}.Build(DefaultCanvasExtent)
	if it.Position != g.Position || it.Size.Width != MinSize || it.Size.Height != 80 || it.ZIndex != 4 || it.Rotation != 30 {
		t.Fatalf("geometry not sanitized: %+v", it)
	}
}
