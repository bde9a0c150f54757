package ecs

import (
	"fmt"
	"reflect"
)

type filterKind uint8

const (
	filterWith filterKind = iota
	filterWithout
	filterAdded
	filterChanged
	filterOr
)

// QueryFilter narrows the entities a View or Query matches without fetching
// component data.
type QueryFilter struct {
	kind     filterKind
	typ      reflect.Type
	children []QueryFilter
}

// With matches entities that carry T.
func With[T any]() QueryFilter {
	return QueryFilter{kind: filterWith, typ: reflect.TypeFor[T]()}
}

// Without matches entities that do not carry T.
func Without[T any]() QueryFilter {
	return QueryFilter{kind: filterWithout, typ: reflect.TypeFor[T]()}
}

// Added matches entities whose T was added after the query last ran.
func Added[T any]() QueryFilter {
	return QueryFilter{kind: filterAdded, typ: reflect.TypeFor[T]()}
}

// Changed matches entities whose T was written after the query last ran.
// Adding a component counts as a write.
func Changed[T any]() QueryFilter {
	return QueryFilter{kind: filterChanged, typ: reflect.TypeFor[T]()}
}

// Or matches entities accepted by any of the filters.
func Or(filters ...QueryFilter) QueryFilter {
	return QueryFilter{kind: filterOr, children: filters}
}

type compiledFilter struct {
	kind     filterKind
	id       ComponentID
	children []compiledFilter
}

func compileFilters(registry *ComponentRegistry, filters []QueryFilter) ([]compiledFilter, error) {
	out := make([]compiledFilter, 0, len(filters))
	for _, f := range filters {
		cf := compiledFilter{kind: f.kind}
		if f.kind == filterOr {
			children, err := compileFilters(registry, f.children)
			if err != nil {
				return nil, err
			}
			cf.children = children
		} else {
			id, ok := registry.ComponentID(f.typ)
			if !ok {
				return nil, fmt.Errorf("filter on %s: %w", f.typ, ErrUnregisteredComponent)
			}
			cf.id = id
		}
		out = append(out, cf)
	}
	return out, nil
}

// declareAccess records the data a filter inspects. With and Without only
// look at archetype membership and need no access.
func (f compiledFilter) declareAccess(access *Access) {
	switch f.kind {
	case filterAdded, filterChanged:
		access.read(f.id)
	case filterOr:
		for _, child := range f.children {
			child.declareAccess(access)
		}
	}
}

func (f compiledFilter) matchArchetype(a *Archetype) bool {
	switch f.kind {
	case filterWithout:
		return !a.mask.has(f.id)
	case filterOr:
		for _, child := range f.children {
			if child.matchArchetype(a) {
				return true
			}
		}
		return false
	default:
		return a.mask.has(f.id)
	}
}

func (f compiledFilter) perEntity() bool {
	switch f.kind {
	case filterAdded, filterChanged:
		return true
	case filterOr:
		for _, child := range f.children {
			if child.perEntity() {
				return true
			}
		}
	}
	return false
}

// matchSlot evaluates tick-based filters; archetype membership is assumed
// to be checked already for non-Or filters.
func (f compiledFilter) matchSlot(a *Archetype, slot int, since Tick) bool {
	switch f.kind {
	case filterAdded:
		return a.ticks[a.column(f.id)][slot].added > since
	case filterChanged:
		return a.ticks[a.column(f.id)][slot].changed > since
	case filterOr:
		for _, child := range f.children {
			if child.matchArchetype(a) && child.matchSlot(a, slot, since) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
