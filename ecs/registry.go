package ecs

import (
	"reflect"
	"sync"
)

// ComponentID is the stable identifier the registry assigns to a component,
// resource or event type. Identifiers are dense and follow registration order.
type ComponentID uint32

type componentInfo struct {
	id      ComponentID
	typ     reflect.Type
	factory func() iComponentStorage
}

// ComponentRegistry manages type registration for one or more Worlds.
// Component types must be registered before they can be stored on entities;
// resource and event types get identifiers lazily on first use.
type ComponentRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*componentInfo
	infos  []*componentInfo
}

// NewComponentRegistry creates a new component registry with the built-in
// Name and Parent components already registered.
func NewComponentRegistry() *ComponentRegistry {
	r := &ComponentRegistry{
		byType: make(map[reflect.Type]*componentInfo),
	}
	RegisterComponent[Name](r)
	RegisterComponent[Parent](r)
	return r
}

// RegisterComponent registers a component type with the given registry and
// returns its identifier. Registering the same type twice returns the same id.
func RegisterComponent[T any](r *ComponentRegistry) ComponentID {
	t := reflect.TypeFor[T]()
	checkComponentType(t)

	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.lookupOrAdd(t)
	if info.factory == nil {
		info.factory = func() iComponentStorage {
			return &genericComponentStorage[T]{}
		}
	}
	return info.id
}

// ComponentIDOf returns the identifier of a registered component type.
func ComponentIDOf[T any](r *ComponentRegistry) (ComponentID, bool) {
	return r.ComponentID(reflect.TypeFor[T]())
}

// ComponentID returns the identifier of a registered component type.
// Types that were only seen as resources are not components.
func (r *ComponentRegistry) ComponentID(t reflect.Type) (ComponentID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byType[t]
	if !ok || info.factory == nil {
		return 0, false
	}
	return info.id, true
}

// ResourceIDOf returns the identifier for a resource type, assigning one on
// first use.
func ResourceIDOf[T any](r *ComponentRegistry) ComponentID {
	return r.resourceID(reflect.TypeFor[T]())
}

func (r *ComponentRegistry) resourceID(t reflect.Type) ComponentID {
	r.mu.RLock()
	info, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return info.id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupOrAdd(t).id
}

// TypeOf returns the type registered under id.
func (r *ComponentRegistry) TypeOf(id ComponentID) reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(id) >= len(r.infos) {
		return nil
	}
	return r.infos[id].typ
}

// Len returns the number of registered types.
func (r *ComponentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}

// getFactory returns the storage factory for a given component type.
// Returns nil if the type is not registered as a component.
func (r *ComponentRegistry) getFactory(id ComponentID) func() iComponentStorage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(id) >= len(r.infos) {
		return nil
	}
	return r.infos[id].factory
}

// mustComponentID resolves t or panics the way an unregistered spawn does.
func (r *ComponentRegistry) mustComponentID(t reflect.Type) ComponentID {
	id, ok := r.ComponentID(t)
	if !ok {
		panic("component type " + t.String() + " not registered")
	}
	return id
}

func (r *ComponentRegistry) lookupOrAdd(t reflect.Type) *componentInfo {
	if info, ok := r.byType[t]; ok {
		return info
	}
	info := &componentInfo{
		id:  ComponentID(len(r.infos)),
		typ: t,
	}
	r.infos = append(r.infos, info)
	r.byType[t] = info
	return info
}

var entityType = reflect.TypeFor[Entity]()

// checkComponentType rejects kinds that are not plain values.
// Components can be structs or primitives (int, string, etc.) but not
// pointers, maps, channels, or functions.
func checkComponentType(t reflect.Type) {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		panic("components cannot be pointers, maps, channels, or functions: " + t.String())
	}
	if t == entityType {
		panic("ecs.Entity cannot be registered as a component")
	}
}
