package ecs

import (
	"iter"
	"reflect"
	"slices"
)

// Tick is a monotonically increasing change counter owned by a World.
type Tick uint64

type componentTicks struct {
	added   Tick
	changed Tick
}

// Archetype represents a unique combination of component types. All columns
// share slot indices: slot i of every column belongs to entities[i].
type Archetype struct {
	id        uint32
	mask      componentMask
	ids       []ComponentID
	types     []reflect.Type
	storages  []iComponentStorage
	ticks     [][]componentTicks
	entities  []Entity
	freeSlots []int
	count     int
}

// newArchetype creates a new archetype for the given sorted component ids
func newArchetype(id uint32, ids []ComponentID, registry *ComponentRegistry) *Archetype {
	a := &Archetype{
		id:       id,
		mask:     newComponentMask(ids...),
		ids:      ids,
		types:    make([]reflect.Type, len(ids)),
		storages: make([]iComponentStorage, len(ids)),
		ticks:    make([][]componentTicks, len(ids)),
	}

	for idx, cid := range ids {
		factory := registry.getFactory(cid)
		if factory == nil {
			panic("component id " + registry.TypeOf(cid).String() + " not registered")
		}
		a.types[idx] = registry.TypeOf(cid)
		a.storages[idx] = factory()
	}

	return a
}

// column returns the column index holding id, or -1.
func (a *Archetype) column(id ComponentID) int {
	idx, ok := slices.BinarySearch(a.ids, id)
	if !ok {
		return -1
	}
	return idx
}

// allocate reserves a slot for entity and returns it. Freed slots are reused
// first, so slot order is stable for entities that stay put.
func (a *Archetype) allocate(entity Entity) int {
	var slot int
	if n := len(a.freeSlots); n > 0 {
		slot = a.freeSlots[n-1]
		a.freeSlots = a.freeSlots[:n-1]
		a.entities[slot] = entity
	} else {
		slot = len(a.entities)
		a.entities = append(a.entities, entity)
		for col := range a.ticks {
			a.ticks[col] = append(a.ticks[col], componentTicks{})
		}
	}
	a.count++
	return slot
}

// set writes a component value into the column for id.
func (a *Archetype) set(slot int, id ComponentID, component any, tick Tick, added bool) bool {
	col := a.column(id)
	if col == -1 {
		return false
	}
	if !a.storages[col].Set(slot, component) {
		return false
	}
	if added {
		a.ticks[col][slot] = componentTicks{added: tick, changed: tick}
	} else {
		a.ticks[col][slot].changed = tick
	}
	return true
}

// copyFrom moves the shared columns of slot src in archetype from into slot
// dst of a, preserving change ticks.
func (a *Archetype) copyFrom(from *Archetype, src, dst int) {
	for col, cid := range a.ids {
		fromCol := from.column(cid)
		if fromCol == -1 {
			continue
		}
		a.storages[col].Set(dst, from.storages[fromCol].Get(src))
		a.ticks[col][dst] = from.ticks[fromCol][src]
	}
}

// remove clears slot and returns it to the free list.
// Indices remain stable - the slot is simply marked as empty.
func (a *Archetype) remove(slot int) {
	if slot < 0 || slot >= len(a.entities) || a.entities[slot] == 0 {
		return
	}
	for col, storage := range a.storages {
		storage.Delete(slot)
		a.ticks[col][slot] = componentTicks{}
	}
	a.entities[slot] = 0
	a.freeSlots = append(a.freeSlots, slot)
	a.count--
}

// GetComponent returns a pointer to the component of the given type for the
// entity in slot, or nil.
func (a *Archetype) GetComponent(slot int, compType reflect.Type) any {
	for col, typ := range a.types {
		if typ == compType {
			return a.storages[col].Get(slot)
		}
	}
	return nil
}

// HasComponent checks if this archetype has the given component type
func (a *Archetype) HasComponent(compType reflect.Type) bool {
	return slices.Contains(a.types, compType)
}

// ID returns the archetype's identifier. Identifiers follow creation order.
func (a *Archetype) ID() uint32 {
	return a.id
}

// Types returns the component types for this archetype, ordered by ComponentID
func (a *Archetype) Types() []reflect.Type {
	return a.types
}

// Len returns the number of live entities stored in the archetype.
func (a *Archetype) Len() int {
	return a.count
}

// Iter returns an iterator over occupied slots and their entities, in slot order.
func (a *Archetype) Iter() iter.Seq2[int, Entity] {
	return func(yield func(int, Entity) bool) {
		for slot, e := range a.entities {
			if e == 0 {
				continue
			}
			if !yield(slot, e) {
				return
			}
		}
	}
}

// compact reorganizes all columns to eliminate empty slots and returns the
// entities in their new slot order.
func (a *Archetype) compact() []Entity {
	order := make([]int, 0, a.count)
	for slot, e := range a.entities {
		if e != 0 {
			order = append(order, slot)
		}
	}

	for col, storage := range a.storages {
		storage.Compact(order)
		ticks := make([]componentTicks, len(order))
		for newSlot, oldSlot := range order {
			ticks[newSlot] = a.ticks[col][oldSlot]
		}
		a.ticks[col] = ticks
	}

	entities := make([]Entity, len(order))
	for newSlot, oldSlot := range order {
		entities[newSlot] = a.entities[oldSlot]
	}
	a.entities = entities
	a.freeSlots = a.freeSlots[:0]
	return entities
}
