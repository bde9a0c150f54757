package ecs

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// System represents a behavior that operates on entities with specific components.
// User-defined systems implement this interface and can keep Query, Res and
// event handles as fields, as well as custom state that persists between frames.
type System interface {
	Execute(frame *UpdateFrame)
}

// SystemInitializer is implemented by systems that declare their data
// dependencies. Init is called once when the system is registered.
type SystemInitializer interface {
	Init(p *SystemParams) error
}

// SystemFunc adapts a plain function to the System interface. Function
// systems declare no data access and must be registered with Named.
type SystemFunc func(frame *UpdateFrame)

func (f SystemFunc) Execute(frame *UpdateFrame) {
	f(frame)
}

// Access is the set of component, resource and event types a system reads
// and writes.
type Access struct {
	reads  componentMask
	writes componentMask
}

func (a *Access) read(id ComponentID) {
	a.reads = a.reads.with(id)
}

func (a *Access) write(id ComponentID) {
	a.writes = a.writes.with(id)
}

// Reads reports whether id is declared as read.
func (a *Access) Reads(id ComponentID) bool {
	return a.reads.has(id)
}

// Writes reports whether id is written.
func (a *Access) Writes(id ComponentID) bool {
	return a.writes.has(id)
}

// conflicts reports whether two systems cannot run unordered: both write
// the same type or one reads what the other writes.
func (a *Access) conflicts(b *Access) bool {
	return a.writes.intersects(b.writes) ||
		a.writes.intersects(b.reads) ||
		b.writes.intersects(a.reads)
}

// conflictingIDs returns the ids responsible for a conflict with b.
func (a *Access) conflictingIDs(b *Access) []ComponentID {
	var ids []ComponentID
	n := max(len(a.reads), len(a.writes), len(b.reads), len(b.writes)) * 64
	for i := 0; i < n; i++ {
		id := ComponentID(i)
		aw, bw := a.writes.has(id), b.writes.has(id)
		if (aw && (bw || b.reads.has(id))) || (bw && a.reads.has(id)) {
			ids = append(ids, id)
		}
	}
	return ids
}

// SystemParams collects the declarations a system makes in Init.
type SystemParams struct {
	world   *World
	name    string
	phase   Phase
	access  Access
	queries []queryState
	err     error
}

func newSystemParams(w *World, name string, phase Phase) *SystemParams {
	return &SystemParams{world: w, name: name, phase: phase}
}

// World returns the World the system is registered with.
func (p *SystemParams) World() *World {
	return p.world
}

// Name returns the name the system is registered under.
func (p *SystemParams) Name() string {
	return p.name
}

// Phase returns the phase the system is registered in.
func (p *SystemParams) Phase() Phase {
	return p.phase
}

// Access returns the data access declared so far.
func (p *SystemParams) Access() *Access {
	return &p.access
}

// Reads declares read access to types the system touches without a handle,
// for example through the World directly.
func (p *SystemParams) Reads(types ...reflect.Type) {
	for _, t := range types {
		p.access.read(p.world.registry.resourceID(t))
	}
}

// Writes declares write access to types the system touches without a handle.
func (p *SystemParams) Writes(types ...reflect.Type) {
	for _, t := range types {
		p.access.write(p.world.registry.resourceID(t))
	}
}

func (p *SystemParams) fail(err error) {
	p.err = multierr.Append(p.err, err)
}

// Err returns every declaration error recorded so far.
func (p *SystemParams) Err() error {
	return p.err
}

// paramField is implemented by the handle types a system can hold as
// struct fields: Query, Res, ResMut, EventReader and EventWriter.
type paramField interface {
	initParam(p *SystemParams) error
	initialized() bool
}

// initializeParams declares every exported handle field of a struct system
// that Init did not set up itself.
func initializeParams(system System, p *SystemParams) {
	systemValue := reflect.ValueOf(system)
	if systemValue.Kind() != reflect.Ptr {
		return
	}
	systemValue = systemValue.Elem()
	if systemValue.Kind() != reflect.Struct {
		return
	}

	systemType := systemValue.Type()
	for i := 0; i < systemValue.NumField(); i++ {
		field := systemValue.Field(i)
		if !field.CanSet() {
			continue
		}

		param, ok := field.Addr().Interface().(paramField)
		if !ok || param.initialized() {
			continue
		}
		if err := param.initParam(p); err != nil {
			p.fail(fmt.Errorf("field %s: %w", systemType.Field(i).Name, err))
		}
	}
}

// SystemOption configures a system at registration.
type SystemOption func(*systemConfig)

type systemConfig struct {
	name   string
	before []string
	after  []string
}

// Named sets the name the system is registered under. Names must be unique
// within a phase and are what Before and After refer to.
func Named(name string) SystemOption {
	return func(c *systemConfig) {
		c.name = name
	}
}

// Before orders the system ahead of the named systems.
func Before(names ...string) SystemOption {
	return func(c *systemConfig) {
		c.before = append(c.before, names...)
	}
}

// After orders the system behind the named systems.
func After(names ...string) SystemOption {
	return func(c *systemConfig) {
		c.after = append(c.after, names...)
	}
}

// SystemName returns the default name of a system: its type name, without
// the pointer. Function systems have no default name.
func SystemName(system System) string {
	if _, ok := system.(SystemFunc); ok {
		return ""
	}
	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	return systemType.Name()
}
