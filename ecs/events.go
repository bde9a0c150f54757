package ecs

import (
	"iter"
	"reflect"
	"sync"
)

// eventQueue is the type-erased view of an Events resource used for rotation.
type eventQueue interface {
	Update()
}

// Events is the double-buffered queue of one event type. Events sent during a
// frame are readable during that frame and the next one, then dropped.
type Events[E any] struct {
	mu       sync.Mutex
	previous []E
	current  []E
}

// Send appends an event to the current buffer.
func (ev *Events[E]) Send(e E) {
	ev.mu.Lock()
	ev.current = append(ev.current, e)
	ev.mu.Unlock()
}

// Previous returns the events sent during the previous frame.
func (ev *Events[E]) Previous() []E {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]E(nil), ev.previous...)
}

// Current returns the events sent so far in this frame.
func (ev *Events[E]) Current() []E {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]E(nil), ev.current...)
}

// All returns previous followed by current events.
func (ev *Events[E]) All() []E {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make([]E, 0, len(ev.previous)+len(ev.current))
	out = append(out, ev.previous...)
	return append(out, ev.current...)
}

// Len returns the number of readable events.
func (ev *Events[E]) Len() int {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return len(ev.previous) + len(ev.current)
}

// Update rotates the buffers: current becomes previous and the old previous
// events are discarded.
func (ev *Events[E]) Update() {
	ev.mu.Lock()
	ev.previous = ev.current
	ev.current = nil
	ev.mu.Unlock()
}

// RegisterEvent makes sure the World holds an Events[E] resource and returns
// it. The queue takes part in rotation from then on.
func RegisterEvent[E any](w *World) *Events[E] {
	if ev, ok := GetResource[Events[E]](w); ok {
		return ev
	}
	w.insertResource(reflect.TypeFor[Events[E]](), &Events[E]{})
	ev, _ := GetResource[Events[E]](w)
	w.events = append(w.events, ev)
	return ev
}

// SendEvent sends e from outside a system.
func SendEvent[E any](w *World, e E) {
	RegisterEvent[E](w).Send(e)
}

// UpdateEvents rotates every event queue of the World. The App calls this
// once at the end of each tick.
func (w *World) UpdateEvents() {
	for _, ev := range w.events {
		ev.Update()
	}
}

// EventReader reads one event type from inside a system.
type EventReader[E any] struct {
	events *Events[E]
}

// NewEventReader declares read access to events of type E.
func NewEventReader[E any](p *SystemParams) *EventReader[E] {
	r := &EventReader[E]{}
	_ = r.initParam(p)
	return r
}

func (r *EventReader[E]) initParam(p *SystemParams) error {
	r.events = RegisterEvent[E](p.world)
	p.access.read(ResourceIDOf[Events[E]](p.world.registry))
	return nil
}

func (r *EventReader[E]) initialized() bool {
	return r.events != nil
}

// Read returns the previous frame's events followed by this frame's.
func (r *EventReader[E]) Read() []E {
	return r.events.All()
}

// Previous returns only the events sent during the previous frame.
func (r *EventReader[E]) Previous() []E {
	return r.events.Previous()
}

// Current returns only the events sent so far in this frame. Writers ordered
// after the reading system have not sent theirs yet.
func (r *EventReader[E]) Current() []E {
	return r.events.Current()
}

// Iter returns an iterator over the readable events.
func (r *EventReader[E]) Iter() iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, e := range r.events.All() {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of readable events.
func (r *EventReader[E]) Len() int {
	return r.events.Len()
}

// EventWriter sends one event type from inside a system.
type EventWriter[E any] struct {
	events *Events[E]
}

// NewEventWriter declares write access to events of type E.
func NewEventWriter[E any](p *SystemParams) *EventWriter[E] {
	w := &EventWriter[E]{}
	_ = w.initParam(p)
	return w
}

func (w *EventWriter[E]) initParam(p *SystemParams) error {
	w.events = RegisterEvent[E](p.world)
	p.access.write(ResourceIDOf[Events[E]](p.world.registry))
	return nil
}

func (w *EventWriter[E]) initialized() bool {
	return w.events != nil
}

// Send appends an event to the current frame's buffer.
func (w *EventWriter[E]) Send(e E) {
	w.events.Send(e)
}
