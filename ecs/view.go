package ecs

import (
	"fmt"
	"iter"
	"reflect"
	"unsafe"
)

type fieldKind uint8

const (
	fieldWrite fieldKind = iota
	fieldRead
	fieldEntity
)

type rowField struct {
	kind     fieldKind
	typ      reflect.Type
	id       ComponentID
	optional bool
	offset   uintptr
}

// rowLayout is the compiled form of a row struct.
type rowLayout struct {
	fields   []rowField
	required componentMask
	writes   bool
}

// newRowLayout inspects T. Pointer fields are mutable component access, value
// fields are read-only copies and a field of type Entity receives the entity.
// Pointer fields tagged `ecs:"optional"` may be nil.
func newRowLayout[T any](registry *ComponentRegistry) (*rowLayout, error) {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("query row type %s must be a struct", structType)
	}

	layout := &rowLayout{fields: make([]rowField, 0, structType.NumField())}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		f := rowField{offset: field.Offset}
		switch {
		case field.Type == entityType:
			f.kind = fieldEntity
		case field.Type.Kind() == reflect.Ptr:
			f.kind = fieldWrite
			f.typ = field.Type.Elem()
		default:
			f.kind = fieldRead
			f.typ = field.Type
		}

		if tag := field.Tag.Get("ecs"); tag != "" {
			if tag != "optional" {
				return nil, fmt.Errorf("field %s: invalid ecs tag value %q (only \"optional\" is supported)", field.Name, tag)
			}
			if f.kind != fieldWrite {
				return nil, fmt.Errorf("field %s: only pointer fields can be optional", field.Name)
			}
			f.optional = true
		}

		if f.kind != fieldEntity {
			id, ok := registry.ComponentID(f.typ)
			if !ok {
				return nil, fmt.Errorf("field %s: %s: %w", field.Name, f.typ, ErrUnregisteredComponent)
			}
			f.id = id
			if !f.optional {
				layout.required = layout.required.with(id)
			}
			if f.kind == fieldWrite {
				layout.writes = true
			}
		}
		layout.fields = append(layout.fields, f)
	}
	return layout, nil
}

func (l *rowLayout) declareAccess(access *Access) {
	for _, f := range l.fields {
		switch f.kind {
		case fieldWrite:
			access.write(f.id)
		case fieldRead:
			access.read(f.id)
		}
	}
}

// columns maps each field to its column in a, or -1.
func (l *rowLayout) columns(a *Archetype) []int {
	cols := make([]int, len(l.fields))
	for i, f := range l.fields {
		cols[i] = -1
		if f.kind != fieldEntity {
			cols[i] = a.column(f.id)
		}
	}
	return cols
}

// populate fills the row at dst from slot. Mutable fields are stamped as
// changed at tick.
func (l *rowLayout) populate(dst unsafe.Pointer, a *Archetype, slot int, e Entity, cols []int, tick Tick) bool {
	for i, f := range l.fields {
		fieldPtr := unsafe.Add(dst, f.offset)
		switch f.kind {
		case fieldEntity:
			*(*Entity)(fieldPtr) = e
		case fieldRead:
			if cols[i] == -1 {
				return false
			}
			a.storages[cols[i]].CopyTo(slot, fieldPtr)
		case fieldWrite:
			if cols[i] == -1 {
				if !f.optional {
					return false
				}
				*(*unsafe.Pointer)(fieldPtr) = nil
				continue
			}
			*(*unsafe.Pointer)(fieldPtr) = a.storages[cols[i]].Pointer(slot)
			a.ticks[cols[i]][slot].changed = tick
		}
	}
	return true
}

// View is an immediately evaluated query over a World. The type T is a row
// struct: pointer fields give mutable access, value fields receive a copy and
// an Entity field receives the entity. Pointer fields may be tagged
// `ecs:"optional"`.
//
// Views are meant for code running outside systems; systems declare a Query.
type View[T any] struct {
	world   *World
	layout  *rowLayout
	filters []compiledFilter
}

// NewView creates a new view for the given row type. It panics if T is not a
// valid row struct or names an unregistered component.
func NewView[T any](w *World, filters ...QueryFilter) *View[T] {
	v, err := newView[T](w, filters)
	if err != nil {
		panic(err)
	}
	return v
}

func newView[T any](w *World, filters []QueryFilter) (*View[T], error) {
	layout, err := newRowLayout[T](w.registry)
	if err != nil {
		return nil, err
	}
	compiled, err := compileFilters(w.registry, filters)
	if err != nil {
		return nil, err
	}
	return &View[T]{world: w, layout: layout, filters: compiled}, nil
}

func (v *View[T]) matchesArchetype(a *Archetype) bool {
	if !a.mask.containsAll(v.layout.required) {
		return false
	}
	for _, f := range v.filters {
		if !f.matchArchetype(a) {
			return false
		}
	}
	return true
}

func (v *View[T]) matchesSlot(a *Archetype, slot int, since Tick) bool {
	for _, f := range v.filters {
		if f.perEntity() && !f.matchSlot(a, slot, since) {
			return false
		}
	}
	return true
}

// scan walks the matching entities of archetypes in order. Change filters
// compare against since and mutable fields are stamped with tick.
func (v *View[T]) scan(archetypes []*Archetype, since, tick Tick, yield func(Entity, T) bool) {
	var result T
	resultPtr := unsafe.Pointer(&result)

	for _, archetype := range archetypes {
		if archetype.count == 0 {
			continue
		}
		cols := v.layout.columns(archetype)
		for slot, e := range archetype.Iter() {
			if !v.matchesSlot(archetype, slot, since) {
				continue
			}
			if !v.layout.populate(resultPtr, archetype, slot, e, cols, tick) {
				continue
			}
			if !yield(e, result) {
				return
			}
		}
	}
}

// stampTick returns the tick mutable fields are stamped with when the view
// is evaluated outside a system.
func (v *View[T]) stampTick() Tick {
	if v.layout.writes {
		return v.world.nextTick()
	}
	return v.world.Tick()
}

// Fill populates the provided row for the given entity.
// Returns false if the entity is dead or does not match the view.
func (v *View[T]) Fill(e Entity, ptr *T) bool {
	return v.fill(e, ptr, 0, v.stampTick())
}

func (v *View[T]) fill(e Entity, ptr *T, since, tick Tick) bool {
	record, ok := v.world.records.Get(e)
	if !ok {
		return false
	}
	a := record.archetype
	if !v.matchesArchetype(a) || !v.matchesSlot(a, record.slot, since) {
		return false
	}
	return v.layout.populate(unsafe.Pointer(ptr), a, record.slot, e, v.layout.columns(a), tick)
}

// Get returns the populated row for the given entity.
func (v *View[T]) Get(e Entity) (T, bool) {
	var result T
	ok := v.Fill(e, &result)
	return result, ok
}

// Iter returns an iterator over all matching entities and their rows.
// Change filters match anything written since the World was created.
func (v *View[T]) Iter() iter.Seq2[Entity, T] {
	return func(yield func(Entity, T) bool) {
		matching := make([]*Archetype, 0, len(v.world.archetypes))
		for _, a := range v.world.archetypes {
			if v.matchesArchetype(a) {
				matching = append(matching, a)
			}
		}
		v.scan(matching, 0, v.stampTick(), yield)
	}
}

// Values returns an iterator over just the rows (without entities)
func (v *View[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range v.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// Count returns the number of matching entities.
func (v *View[T]) Count() int {
	n := 0
	for range v.Iter() {
		n++
	}
	return n
}

// Spawn creates a new entity with the components held by the row. Nil
// optional fields are skipped; Entity fields are ignored.
func (v *View[T]) Spawn(data T) Entity {
	structPtr := unsafe.Pointer(&data)

	components := make([]any, 0, len(v.layout.fields))
	for _, f := range v.layout.fields {
		fieldPtr := unsafe.Add(structPtr, f.offset)
		switch f.kind {
		case fieldWrite:
			componentPtr := *(*unsafe.Pointer)(fieldPtr)
			if componentPtr == nil {
				if !f.optional {
					panic("required component is nil in View.Spawn")
				}
				continue
			}
			components = append(components, reflect.NewAt(f.typ, componentPtr).Elem().Interface())
		case fieldRead:
			components = append(components, reflect.NewAt(f.typ, fieldPtr).Elem().Interface())
		}
	}

	if len(components) == 0 {
		panic("cannot spawn entity without components")
	}
	return v.world.Spawn(components...)
}
