/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"cmp"
	"slices"
)

// PaintOrder returns the items sorted bottom to top: by zIndex, then by
// insertion sequence, then by id. The input is not modified.
func PaintOrder(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, comparePaint)
	return out
}

func comparePaint(a, b Item) int {
	if c := cmp.Compare(a.ZIndex, b.ZIndex); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// FindItem returns the item with the given id.
func FindItem(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
