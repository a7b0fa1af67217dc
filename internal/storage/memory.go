/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifeboard/internal/domain"
)

// MemoryStore keeps a board in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]domain.Item
	seq    int64
	extent float64
	now    func() time.Time
}

var _ domain.ItemStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty board with the default canvas extent.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]domain.Item{}, extent: domain.DefaultCanvasExtent, now: time.Now}
}

// Items returns a copy of the board in paint order.
func (m *MemoryStore) Items(context.Context) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return domain.PaintOrder(out), nil
}

// UpdateItem merges patch into the item.
func (m *MemoryStore) UpdateItem(_ context.Context, id string, patch domain.GeometryPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	patch.ApplyTo(&it)
	it.UpdatedAt = m.now().UTC()
	m.items[id] = it
	return nil
}

// DeleteItem removes the item.
func (m *MemoryStore) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

// CreateItem adds an item, assigning a UUID when fields.ID is empty.
func (m *MemoryStore) CreateItem(_ context.Context, fields domain.NewItem) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := fields.Build(m.extent)
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if _, dup := m.items[it.ID]; dup {
		return domain.Item{}, fmt.Errorf("item %s already exists", it.ID)
	}
	m.seq++
	it.Seq = m.seq
	it.CreatedAt = m.now().UTC()
	it.UpdatedAt = it.CreatedAt
	m.items[it.ID] = it
	return it, nil
}

// Len reports the number of items.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
