package ecs

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kamstrup/intmap"
)

type entityRecord struct {
	archetype *Archetype
	slot      int
}

// World is the storage root for one simulation space: entities, their
// components, resources and event queues.
type World struct {
	id       uuid.UUID
	registry *ComponentRegistry
	entities *EntityAllocator
	records  *intmap.Map[Entity, entityRecord]

	archetypes       []*Archetype
	archetypeIndex   map[string]*Archetype
	archetypeVersion uint64

	resources *intmap.Map[ComponentID, any]
	events    []eventQueue

	tick    atomic.Uint64
	running atomic.Int32
	// gate is held shared by running systems and exclusively by command flushes.
	gate sync.RWMutex
}

// WorldOption configures a World.
type WorldOption func(*worldOptions)

type worldOptions struct {
	capacity int
}

// WithEntityCapacity preallocates room for n entities.
func WithEntityCapacity(n int) WorldOption {
	return func(o *worldOptions) {
		o.capacity = n
	}
}

// NewWorld creates a new World with the given component registry
func NewWorld(registry *ComponentRegistry, opts ...WorldOption) *World {
	o := worldOptions{capacity: 256}
	for _, opt := range opts {
		opt(&o)
	}

	return &World{
		id:             uuid.New(),
		registry:       registry,
		entities:       newEntityAllocator(o.capacity),
		records:        intmap.New[Entity, entityRecord](o.capacity),
		archetypeIndex: make(map[string]*Archetype),
		resources:      intmap.New[ComponentID, any](16),
	}
}

// ID returns the World's unique identity.
func (w *World) ID() uuid.UUID {
	return w.id
}

// Registry returns the component registry used by the World.
func (w *World) Registry() *ComponentRegistry {
	return w.registry
}

// Tick returns the World's current change tick.
func (w *World) Tick() Tick {
	return Tick(w.tick.Load())
}

func (w *World) nextTick() Tick {
	return Tick(w.tick.Add(1))
}

// Running reports whether a system of this World is executing.
func (w *World) Running() bool {
	return w.running.Load() > 0
}

func (w *World) checkStructural() error {
	if w.Running() {
		return ErrSystemRunning
	}
	return nil
}

// Spawn creates a new entity with the provided components. Outside system
// execution the entity is visible to queries immediately; systems must use
// Commands instead.
func (w *World) Spawn(components ...any) Entity {
	if err := w.checkStructural(); err != nil {
		panic(err)
	}
	e := w.entities.Reserve()
	w.insertEntity(e, components, w.nextTick())
	return e
}

// SpawnNamed creates a new entity carrying a Name component.
func (w *World) SpawnNamed(name string, components ...any) Entity {
	return w.Spawn(append(components, Name(name))...)
}

// insertEntity makes a reserved entity live with the given components.
func (w *World) insertEntity(e Entity, components []any, tick Tick) {
	ids, values := w.resolveComponents(components)
	archetype := w.archetypeFor(ids)
	slot := archetype.allocate(e)
	for i, id := range ids {
		archetype.set(slot, id, values[i], tick, true)
	}
	w.records.Put(e, entityRecord{archetype: archetype, slot: slot})
}

// resolveComponents maps component values to sorted ids. A later value of the
// same type replaces an earlier one.
func (w *World) resolveComponents(components []any) ([]ComponentID, []any) {
	byID := make(map[ComponentID]any, len(components))
	ids := make([]ComponentID, 0, len(components))
	for _, comp := range components {
		id := w.registry.mustComponentID(componentType(comp))
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = comp
	}
	slices.Sort(ids)

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = byID[id]
	}
	return ids, values
}

// componentType returns the value type of a component, dereferencing pointers.
func componentType(component any) reflect.Type {
	if component == nil {
		panic("cannot store a nil component")
	}
	compType := reflect.TypeOf(component)
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}
	return compType
}

func (w *World) archetypeFor(ids []ComponentID) *Archetype {
	mask := newComponentMask(ids...)
	key := mask.key()
	if archetype, ok := w.archetypeIndex[key]; ok {
		return archetype
	}

	archetype := newArchetype(uint32(len(w.archetypes)), ids, w.registry)
	w.archetypes = append(w.archetypes, archetype)
	w.archetypeIndex[key] = archetype
	w.archetypeVersion++
	return archetype
}

// Contains reports whether e is alive in this World.
func (w *World) Contains(e Entity) bool {
	return w.records.Has(e)
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.records.Len()
}

// Despawn removes the entity and drops its components. Children linked through
// Parent are left alone; use DespawnRecursive to cascade.
func (w *World) Despawn(e Entity) error {
	if err := w.checkStructural(); err != nil {
		return err
	}
	return w.despawn(e)
}

func (w *World) despawn(e Entity) error {
	record, ok := w.records.Get(e)
	if !ok {
		return ErrEntityNotFound
	}
	record.archetype.remove(record.slot)
	w.records.Del(e)
	w.entities.Free(e)
	return nil
}

// Set adds or replaces a component on the entity.
func (w *World) Set(e Entity, component any) error {
	if err := w.checkStructural(); err != nil {
		return err
	}
	return w.set(e, component, w.nextTick())
}

func (w *World) set(e Entity, component any, tick Tick) error {
	record, ok := w.records.Get(e)
	if !ok {
		return ErrEntityNotFound
	}

	id := w.registry.mustComponentID(componentType(component))
	if record.archetype.mask.has(id) {
		record.archetype.set(record.slot, id, component, tick, false)
		return nil
	}

	ids := make([]ComponentID, 0, len(record.archetype.ids)+1)
	ids = append(ids, record.archetype.ids...)
	ids = append(ids, id)
	slices.Sort(ids)

	target := w.archetypeFor(ids)
	w.move(e, record, target)
	moved, _ := w.records.Get(e)
	target.set(moved.slot, id, component, tick, true)
	return nil
}

// Remove removes the component of the given type from the entity.
func (w *World) Remove(e Entity, compType reflect.Type) error {
	if err := w.checkStructural(); err != nil {
		return err
	}
	return w.remove(e, compType)
}

// RemoveComponent removes the component T from the entity.
func RemoveComponent[T any](w *World, e Entity) error {
	return w.Remove(e, reflect.TypeFor[T]())
}

func (w *World) remove(e Entity, compType reflect.Type) error {
	record, ok := w.records.Get(e)
	if !ok {
		return ErrEntityNotFound
	}
	id, registered := w.registry.ComponentID(compType)
	if !registered || !record.archetype.mask.has(id) {
		return ErrComponentNotFound
	}

	ids := make([]ComponentID, 0, len(record.archetype.ids)-1)
	for _, cid := range record.archetype.ids {
		if cid != id {
			ids = append(ids, cid)
		}
	}
	w.move(e, record, w.archetypeFor(ids))
	return nil
}

// move relocates e into target, carrying over the columns both archetypes share.
func (w *World) move(e Entity, record entityRecord, target *Archetype) {
	slot := target.allocate(e)
	target.copyFrom(record.archetype, record.slot, slot)
	record.archetype.remove(record.slot)
	w.records.Put(e, entityRecord{archetype: target, slot: slot})
}

// Component returns a pointer to the component of the given type.
func (w *World) Component(e Entity, compType reflect.Type) (any, error) {
	record, ok := w.records.Get(e)
	if !ok {
		return nil, ErrEntityNotFound
	}
	comp := record.archetype.GetComponent(record.slot, compType)
	if comp == nil {
		return nil, fmt.Errorf("%s: %w", compType, ErrComponentNotFound)
	}
	return comp, nil
}

// GetComponent returns a pointer to the entity's component T. Writes through
// the pointer are not tracked as changes; use Set for that.
func GetComponent[T any](w *World, e Entity) (*T, error) {
	comp, err := w.Component(e, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return comp.(*T), nil
}

// HasComponent checks if an entity has a specific component type
func HasComponent[T any](w *World, e Entity) bool {
	record, ok := w.records.Get(e)
	if !ok {
		return false
	}
	return record.archetype.HasComponent(reflect.TypeFor[T]())
}

// Entities returns every live entity, grouped by archetype.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, w.records.Len())
	for _, archetype := range w.archetypes {
		for _, e := range archetype.Iter() {
			out = append(out, e)
		}
	}
	return out
}

// EntityByName returns the first entity whose Name equals name.
func (w *World) EntityByName(name string) (Entity, bool) {
	nameID, _ := ComponentIDOf[Name](w.registry)
	for _, archetype := range w.archetypes {
		col := archetype.column(nameID)
		if col == -1 {
			continue
		}
		for slot, e := range archetype.Iter() {
			if n := archetype.storages[col].Get(slot).(*Name); string(*n) == name {
				return e, true
			}
		}
	}
	return 0, false
}

// Archetypes returns the archetypes created so far, in creation order.
func (w *World) Archetypes() []*Archetype {
	return w.archetypes
}

// Compact reorganizes every archetype to remove empty slots.
// Entity handles stay valid.
func (w *World) Compact() error {
	if err := w.checkStructural(); err != nil {
		return err
	}
	for _, archetype := range w.archetypes {
		for slot, e := range archetype.compact() {
			w.records.Put(e, entityRecord{archetype: archetype, slot: slot})
		}
	}
	return nil
}

// Clear drops every entity, resource and event queue. Outstanding entity
// handles become stale.
func (w *World) Clear() error {
	if err := w.checkStructural(); err != nil {
		return err
	}
	w.records.Clear()
	w.archetypes = nil
	w.archetypeIndex = make(map[string]*Archetype)
	w.archetypeVersion++
	w.resources.Clear()
	w.events = nil
	w.entities.reset()
	return nil
}
