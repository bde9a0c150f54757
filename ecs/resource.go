package ecs

import (
	"reflect"
	"sort"
)

// InsertResource stores value as the World's single instance of T. An existing
// instance is overwritten in place so pointers obtained earlier stay valid.
func InsertResource[T any](w *World, value T) {
	if err := w.checkStructural(); err != nil {
		panic(err)
	}
	w.insertResource(reflect.TypeFor[T](), value)
}

// insertResource is the type-erased path used by Commands.
func (w *World) insertResource(t reflect.Type, value any) {
	id := w.registry.resourceID(t)
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr && v.Type().Elem() == t {
		v = v.Elem()
	}

	if existing, ok := w.resources.Get(id); ok {
		reflect.ValueOf(existing).Elem().Set(v)
		return
	}

	ptr := reflect.New(t)
	ptr.Elem().Set(v)
	w.resources.Put(id, ptr.Interface())
}

// GetResource returns the World's instance of T. The boolean is false when the
// resource has not been inserted yet; that is not an error.
func GetResource[T any](w *World) (*T, bool) {
	res, ok := w.resources.Get(ResourceIDOf[T](w.registry))
	if !ok {
		return nil, false
	}
	return res.(*T), true
}

// HasResource reports whether T has been inserted.
func HasResource[T any](w *World) bool {
	return w.resources.Has(ResourceIDOf[T](w.registry))
}

// RemoveResource drops the World's instance of T.
func RemoveResource[T any](w *World) bool {
	if err := w.checkStructural(); err != nil {
		panic(err)
	}
	return w.removeResource(reflect.TypeFor[T]())
}

func (w *World) removeResource(t reflect.Type) bool {
	return w.resources.Del(w.registry.resourceID(t))
}

// ResourceTypes returns the names of inserted resource types, sorted.
func (w *World) ResourceTypes() []string {
	names := make([]string, 0, w.resources.Len())
	w.resources.ForEach(func(id ComponentID, _ any) bool {
		names = append(names, w.registry.TypeOf(id).String())
		return true
	})
	sort.Strings(names)
	return names
}

// Res provides read access to a resource declared by a system.
type Res[T any] struct {
	world *World
	id    ComponentID
}

// NewRes declares read access to the resource T.
func NewRes[T any](p *SystemParams) *Res[T] {
	r := &Res[T]{}
	_ = r.initParam(p)
	return r
}

func (r *Res[T]) initParam(p *SystemParams) error {
	r.world = p.world
	r.id = ResourceIDOf[T](p.world.registry)
	p.access.read(r.id)
	return nil
}

func (r *Res[T]) initialized() bool {
	return r.world != nil
}

// Get returns a pointer to the resource, or nil if it has not been inserted.
// The pointer must not be written through; declare a ResMut for that.
func (r *Res[T]) Get() *T {
	res, ok := r.world.resources.Get(r.id)
	if !ok {
		return nil
	}
	return res.(*T)
}

// Value returns a copy of the resource.
func (r *Res[T]) Value() (T, bool) {
	if ptr := r.Get(); ptr != nil {
		return *ptr, true
	}
	var zero T
	return zero, false
}

// Exists returns true if the resource has been inserted
func (r *Res[T]) Exists() bool {
	return r.world.resources.Has(r.id)
}

// ResMut provides write access to a resource declared by a system.
type ResMut[T any] struct {
	Res[T]
}

// NewResMut declares write access to the resource T.
func NewResMut[T any](p *SystemParams) *ResMut[T] {
	r := &ResMut[T]{}
	_ = r.initParam(p)
	return r
}

func (r *ResMut[T]) initParam(p *SystemParams) error {
	r.world = p.world
	r.id = ResourceIDOf[T](p.world.registry)
	p.access.write(r.id)
	return nil
}

// Get returns a pointer to the resource, or nil if it has not been inserted.
func (r *ResMut[T]) Get() *T {
	return r.Res.Get()
}
