/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gesture

import "lifeboard/internal/domain"

// EventKind identifies a pointer event.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerCancel
)

func (k EventKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerCancel:
		return "cancel"
	}
	return "unknown"
}

// PointerEvent is a pointer sample in screen pixels.
type PointerEvent struct {
	Kind EventKind
	Pos  domain.Point
}

// --- Listener registry ---

type listener struct {
	id uint32
	fn func(PointerEvent)
}

// Dispatcher fans pointer events from the host event loop out to global
// listeners. It is not safe for concurrent use.
type Dispatcher struct {
	nextID    uint32
	listeners [4][]listener
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// Handle removes a registered listener.
type Handle struct {
	id   uint32
	kind EventKind
	d    *Dispatcher
}

// Remove unregisters the listener. Removing twice is a no-op.
func (h Handle) Remove() {
	if h.d == nil {
		return
	}
	s := h.d.listeners[h.kind]
	for i := range s {
		if s[i].id == h.id {
			h.d.listeners[h.kind] = append(s[:i:i], s[i+1:]...)
			return
		}
	}
}

// Listen registers fn for events of the given kind.
func (d *Dispatcher) Listen(kind EventKind, fn func(PointerEvent)) Handle {
	d.nextID++
	d.listeners[kind] = append(d.listeners[kind], listener{id: d.nextID, fn: fn})
	return Handle{id: d.nextID, kind: kind, d: d}
}

// Count reports how many listeners are registered.
func (d *Dispatcher) Count() int {
	n := 0
	for _, s := range d.listeners {
		n += len(s)
	}
	return n
}

func (d *Dispatcher) Down(p domain.Point) { d.dispatch(PointerEvent{Kind: PointerDown, Pos: p}) }
func (d *Dispatcher) Move(p domain.Point) { d.dispatch(PointerEvent{Kind: PointerMove, Pos: p}) }
func (d *Dispatcher) Up(p domain.Point)   { d.dispatch(PointerEvent{Kind: PointerUp, Pos: p}) }
func (d *Dispatcher) Cancel()             { d.dispatch(PointerEvent{Kind: PointerCancel}) }

// dispatch iterates over a snapshot so listeners may remove themselves.
func (d *Dispatcher) dispatch(ev PointerEvent) {
	snap := append([]listener(nil), d.listeners[ev.Kind]...)
	for _, l := range snap {
		l.fn(ev)
	}
}

// Subscription is a group of listeners acquired together and released
// together. Release is idempotent.
type Subscription struct {
	handles []Handle
}

// Subscribe registers the move, up and cancel listeners of one gesture.
func (d *Dispatcher) Subscribe(move, up, cancel func(PointerEvent)) *Subscription {
	return &Subscription{handles: []Handle{
		d.Listen(PointerMove, move),
		d.Listen(PointerUp, up),
		d.Listen(PointerCancel, cancel),
	}}
}

// Release removes every listener of the subscription.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	for _, h := range s.handles {
		h.Remove()
	}
	s.handles = nil
}

// Active reports whether the subscription still holds listeners.
func (s *Subscription) Active() bool { return s != nil && len(s.handles) > 0 }
