/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// GeometryPatch is a partial geometry update. Nil fields are left untouched.
type GeometryPatch struct {
	Position *Point   `json:"position,omitempty"`
	Size     *Size    `json:"size,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	ZIndex   *int     `json:"zIndex,omitempty"`
}

// PositionPatch, SizePatch, RotationPatch and ZIndexPatch build single-field patches.
func PositionPatch(p Point) GeometryPatch     { return GeometryPatch{Position: &p} }
func SizePatch(s Size) GeometryPatch          { return GeometryPatch{Size: &s} }
func RotationPatch(deg float64) GeometryPatch { return GeometryPatch{Rotation: &deg} }
func ZIndexPatch(z int) GeometryPatch         { return GeometryPatch{ZIndex: &z} }

// Empty reports whether the patch changes nothing.
func (p GeometryPatch) Empty() bool {
	return p.Position == nil && p.Size == nil && p.Rotation == nil && p.ZIndex == nil
}

// Apply merges the present fields into g.
func (p GeometryPatch) Apply(g Geometry) Geometry {
	if p.Position != nil {
		g.Position = *p.Position
	}
	if p.Size != nil {
		g.Size = *p.Size
	}
	if p.Rotation != nil {
		g.Rotation = *p.Rotation
	}
	if p.ZIndex != nil {
		g.ZIndex = *p.ZIndex
	}
	return g
}

// ApplyTo merges the patch into the item in place.
func (p GeometryPatch) ApplyTo(it *Item) {
	it.SetGeometry(p.Apply(it.Geometry()))
}

// Validate rejects values a store must never persist: non-finite numbers
// and sizes below MinSize.
func (p GeometryPatch) Validate() error {
	if p.Position != nil && (!finite(p.Position.X) || !finite(p.Position.Y)) {
		return fmt.Errorf("invalid position %v", *p.Position)
	}
	if p.Size != nil {
		if !finite(p.Size.Width) || !finite(p.Size.Height) {
			return fmt.Errorf("invalid size %v", *p.Size)
		}
		if p.Size.Width < MinSize || p.Size.Height < MinSize {
			return fmt.Errorf("size %gx%g below minimum %g", p.Size.Width, p.Size.Height, MinSize)
		}
	}
	if p.Rotation != nil && !finite(*p.Rotation) {
		return fmt.Errorf("invalid rotation %v", *p.Rotation)
	}
	return nil
}

func (p GeometryPatch) String() string {
	var parts []string
	if p.Position != nil {
		parts = append(parts, fmt.Sprintf("position=(%g,%g)", p.Position.X, p.Position.Y))
	}
	if p.Size != nil {
		parts = append(parts, fmt.Sprintf("size=%gx%g", p.Size.Width, p.Size.Height))
	}
	if p.Rotation != nil {
		parts = append(parts, fmt.Sprintf("rotation=%g", *p.Rotation))
	}
	if p.ZIndex != nil {
		parts = append(parts, fmt.Sprintf("zIndex=%d", *p.ZIndex))
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}
