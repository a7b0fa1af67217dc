/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Box is a rectangle rotated about its own center, the shape of a board item.
type Box struct {
	Rect     Rect
	Rotation float64 // degrees, clockwise in a y-down space
}

// Transform maps the box's unrotated frame to its placed frame.
func (b Box) Transform() Affine2D {
	return RotateAbout(b.Rect.Center(), Deg2Rad(b.Rotation))
}

// Corners returns the placed corners: top-left, top-right, bottom-right, bottom-left.
func (b Box) Corners() [4]Pt {
	m := b.Transform()
	r := b.Rect
	return [4]Pt{
		m.Apply(Pt{r.X, r.Y}),
		m.Apply(Pt{r.X + r.W, r.Y}),
		m.Apply(Pt{r.X + r.W, r.Y + r.H}),
		m.Apply(Pt{r.X, r.Y + r.H}),
	}
}

// Bounds returns the axis-aligned bounds of the placed box.
func (b Box) Bounds() Rect {
	c := b.Corners()
	return BoundsOf(c[:]...)
}

// Local maps a placed point back into the unrotated frame.
func (b Box) Local(p Pt) Pt { return b.Transform().Invert().Apply(p) }

// Hit reports whether p lies inside the placed box.
func (b Box) Hit(p Pt) bool { return b.Rect.Contains(b.Local(p)) }

// Place maps a point given in the unrotated frame to the placed frame.
func (b Box) Place(p Pt) Pt { return b.Transform().Apply(p) }
