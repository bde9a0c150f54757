package ecs

import (
	"reflect"
	"sync"
)

type command func(w *World, tick Tick)

// Commands provides a buffer for deferred structural mutations issued from
// inside systems. Commands are applied in the order they were recorded when
// the buffer is flushed, which happens once the issuing system has finished.
// Commands is safe for use from a system's sub-tasks.
type Commands struct {
	mu       sync.Mutex
	world    *World
	commands []command
}

// NewCommands creates an empty command buffer for w. Systems receive theirs
// through UpdateFrame.
func NewCommands(w *World) *Commands {
	return &Commands{world: w}
}

func (c *Commands) push(cmd command) {
	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	c.mu.Unlock()
}

// Spawn queues an entity spawn with the given components and returns the
// entity it will have. The entity is not alive until the buffer is flushed,
// but later commands in the same buffer may refer to it.
func (c *Commands) Spawn(components ...any) Entity {
	e := c.world.entities.Reserve()
	c.push(func(w *World, tick Tick) {
		w.insertEntity(e, components, tick)
	})
	return e
}

// SpawnNamed queues a spawn of an entity carrying a Name component.
func (c *Commands) SpawnNamed(name string, components ...any) Entity {
	return c.Spawn(append(components, Name(name))...)
}

// Despawn queues an entity despawn. Despawning a dead entity is a no-op.
func (c *Commands) Despawn(e Entity) {
	c.push(func(w *World, _ Tick) {
		_ = w.despawn(e)
	})
}

// DespawnRecursive queues a despawn of e and its descendants.
func (c *Commands) DespawnRecursive(e Entity) {
	c.push(func(w *World, _ Tick) {
		_ = w.despawnRecursive(e)
	})
}

// Set queues adding or replacing a component on the entity.
func (c *Commands) Set(e Entity, component any) {
	c.push(func(w *World, tick Tick) {
		_ = w.set(e, component, tick)
	})
}

// Remove queues removing the component of the given type from the entity.
func (c *Commands) Remove(e Entity, compType reflect.Type) {
	c.push(func(w *World, _ Tick) {
		_ = w.remove(e, compType)
	})
}

// InsertResource queues inserting value as the World's resource of its
// dynamic type, the same key InsertResource[T] uses when T is inferred from
// value. A pointer is stored as a pointer resource, not dereferenced.
func (c *Commands) InsertResource(value any) {
	t := reflect.TypeOf(value)
	c.push(func(w *World, _ Tick) {
		w.insertResource(t, value)
	})
}

// RemoveResource queues removing the resource of the given type.
func (c *Commands) RemoveResource(t reflect.Type) {
	c.push(func(w *World, _ Tick) {
		w.removeResource(t)
	})
}

// Defer queues an arbitrary function. It runs during the flush with full
// access to the World.
func (c *Commands) Defer(fn func(w *World)) {
	c.push(func(w *World, _ Tick) {
		fn(w)
	})
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.commands)
}

// Flush applies all queued commands to w in order and resets the buffer.
// Flushing an empty buffer is a no-op. Commands queued by a Defer during the
// flush are applied in the same flush.
func (c *Commands) Flush(w *World) {
	var tick Tick
	for {
		c.mu.Lock()
		pending := c.commands
		c.commands = nil
		c.mu.Unlock()

		if len(pending) == 0 {
			return
		}
		if tick == 0 {
			tick = w.nextTick()
		}
		for _, cmd := range pending {
			cmd(w, tick)
		}
	}
}
