/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// UnmarshalJSON decodes an item leniently: geometry that is missing, null,
// non-numeric or non-finite falls back to defaults instead of failing.
func (it *Item) UnmarshalJSON(data []byte) error {
	dec, _, err := DecodeItem(data, DefaultCanvasExtent)
	if err != nil {
		return err
	}
	*it = dec
	return nil
}

// DecodeItem decodes one item record. Only a document that is not a JSON
// object is an error; the bool reports whether defaults were substituted.
// Flat records (x, y, width, height at the top level) are accepted too.
func DecodeItem(data []byte, extent float64) (Item, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Item{}, false, err
	}
	if fields == nil {
		return Item{}, false, errors.New("item is null")
	}
	def := DefaultGeometry(extent)
	repaired := false

	var it Item
	it.ID = lenientString(fields["id"])
	it.Kind = lenientString(fields["kind"])
	if p, ok := fields["payload"]; ok && !isNull(p) {
		it.Payload = append(json.RawMessage(nil), p...)
	}

	pos, sz := fields, fields
	if raw, ok := fields["position"]; ok {
		pos = object(raw)
	}
	if raw, ok := fields["size"]; ok {
		sz = object(raw)
	}

	x, okX := lenientFloat(pos["x"])
	y, okY := lenientFloat(pos["y"])
	if okX && okY {
		it.Position = Point{X: x, Y: y}
	} else {
		it.Position = def.Position
		repaired = true
	}

	if w, ok := lenientFloat(sz["width"]); ok {
		it.Size.Width = w
	} else {
		it.Size.Width = def.Size.Width
		repaired = true
	}
	if h, ok := lenientFloat(sz["height"]); ok {
		it.Size.Height = h
	} else {
		it.Size.Height = def.Size.Height
		repaired = true
	}

	if r, ok := lenientFloat(fields["rotation"]); ok {
		it.Rotation = r
	} else {
		it.Rotation = def.Rotation
		if _, present := fields["rotation"]; present {
			repaired = true
		}
	}

	if z, ok := lenientInt(fields["zIndex"]); ok {
		it.ZIndex = z
	} else {
		it.ZIndex = def.ZIndex
		repaired = true
	}

	if s, ok := lenientInt(fields["seq"]); ok {
		it.Seq = int64(s)
	}
	it.CreatedAt = lenientTime(fields["createdAt"])
	it.UpdatedAt = lenientTime(fields["updatedAt"])

	g, changed := it.Geometry().Sanitize(extent)
	it.SetGeometry(g)
	return it, repaired || changed, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func object(raw json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func lenientString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// lenientFloat accepts JSON numbers and numeric strings with finite values.
func lenientFloat(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	t := bytes.TrimSpace(raw)
	s := string(t)
	if t[0] == '"' {
		if err := json.Unmarshal(t, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func lenientInt(raw json.RawMessage) (int, bool) {
	f, ok := lenientFloat(raw)
	if !ok || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func lenientTime(raw json.RawMessage) time.Time {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
