/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import (
	"fmt"
	"strconv"

	"lifeboard/internal/domain"
	"lifeboard/internal/vector"
)

// RenderTransform is an item's geometry resolved to screen space. Content
// renderers draw into a Width x Height box translated to (TranslateX,
// TranslateY) and rotated by RotateDeg about its center.
type RenderTransform struct {
	TranslateX float64
	TranslateY float64
	Width      float64
	Height     float64
	RotateDeg  float64
	ZIndex     int
}

// Resolve maps logical geometry to screen space at the current zoom and scroll.
func (v *Viewport) Resolve(g domain.Geometry) RenderTransform {
	p := v.LogicalToScreen(g.Position)
	return RenderTransform{
		TranslateX: p.X,
		TranslateY: p.Y,
		Width:      g.Size.Width * v.zoom,
		Height:     g.Size.Height * v.zoom,
		RotateDeg:  g.Rotation,
		ZIndex:     g.ZIndex,
	}
}

// ScreenCenterOf returns the on-screen center of an item.
func (v *Viewport) ScreenCenterOf(g domain.Geometry) domain.Point {
	return v.LogicalToScreen(g.Center())
}

// Box returns the transform as a rotated screen-space box.
func (t RenderTransform) Box() vector.Box {
	return vector.Box{Rect: vector.R(t.TranslateX, t.TranslateY, t.Width, t.Height), Rotation: t.RotateDeg}
}

// CSS renders the transform as style declarations.
func (t RenderTransform) CSS() string {
	return fmt.Sprintf("transform: translate(%spx, %spx) rotate(%sdeg); width: %spx; height: %spx; z-index: %d;",
		num(t.TranslateX), num(t.TranslateY), num(t.RotateDeg), num(t.Width), num(t.Height), t.ZIndex)
}

func num(f float64) string { return strconv.FormatFloat(vector.FloatRound(f, 3), 'f', -1, 64) }
