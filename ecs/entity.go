package ecs

import "sync"

// Entity encodes the slot index (lower 32 bits) and the generation of that slot
// (upper 32 bits). Despawning an entity bumps the generation, so handles taken
// before the despawn no longer resolve. The zero Entity is never valid.
type Entity uint64

// NewEntity creates an Entity from an index and a generation
func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

// Index extracts the slot index from the entity
func (e Entity) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// Generation extracts the generation counter from the entity
func (e Entity) Generation() uint32 {
	return uint32(e >> 32)
}

// IsZero reports whether e is the zero Entity.
func (e Entity) IsZero() bool {
	return e == 0
}

// EntityAllocator hands out entity ids with generational indices and a free list.
// Reserve may be called concurrently, the remaining methods are only called while
// the owning World is not running systems.
type EntityAllocator struct {
	mu          sync.Mutex
	generations []uint32
	freeList    []uint32
}

func newEntityAllocator(capacity int) *EntityAllocator {
	return &EntityAllocator{
		generations: make([]uint32, 0, capacity),
		freeList:    make([]uint32, 0, capacity/4),
	}
}

// Reserve allocates a fresh entity id. The id is not alive until the World
// inserts it.
func (a *EntityAllocator) Reserve() Entity {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		return NewEntity(idx, a.generations[idx])
	}

	idx := uint32(len(a.generations))
	a.generations = append(a.generations, 1)
	return NewEntity(idx, 1)
}

// Current reports whether e carries the current generation of its index.
func (a *EntityAllocator) Current(e Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := e.Index()
	if int(idx) >= len(a.generations) {
		return false
	}
	return a.generations[idx] == e.Generation()
}

// Free bumps the generation of e's index and makes the index reusable.
// Stale ids are ignored.
func (a *EntityAllocator) Free(e Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := e.Index()
	if int(idx) >= len(a.generations) || a.generations[idx] != e.Generation() {
		return false
	}

	next := a.generations[idx] + 1
	if next == 0 {
		next = 1
	}
	a.generations[idx] = next
	a.freeList = append(a.freeList, idx)
	return true
}

func (a *EntityAllocator) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.generations {
		a.generations[i]++
		if a.generations[i] == 0 {
			a.generations[i] = 1
		}
	}
	a.freeList = a.freeList[:0]
	for i := len(a.generations) - 1; i >= 0; i-- {
		a.freeList = append(a.freeList, uint32(i))
	}
}
