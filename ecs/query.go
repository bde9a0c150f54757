package ecs

import (
	"iter"
	"unsafe"
)

// queryState is the executor's handle on a system's queries.
type queryState interface {
	prepare(tick Tick)
	finish()
}

// Query is a system-bound View with archetype caching. The executor evaluates
// it before every run of the owning system, so the rows it yields reflect the
// World as of the system's start. Change filters compare against the tick of
// the system's previous run.
type Query[T any] struct {
	view             *View[T]
	cachedArchetypes []*Archetype
	archetypeVersion uint64

	cachedEntities []Entity
	cachedRows     []T
	cacheValid     bool

	lastRun Tick
	runTick Tick
}

// NewQuery declares a query for the system being initialized. Declaration
// errors are recorded on p and fail the system's registration.
func NewQuery[T any](p *SystemParams, filters ...QueryFilter) *Query[T] {
	q := &Query[T]{}
	if err := q.init(p, filters); err != nil {
		p.fail(err)
	}
	return q
}

func (q *Query[T]) init(p *SystemParams, filters []QueryFilter) error {
	view, err := newView[T](p.world, filters)
	if err != nil {
		return err
	}

	view.layout.declareAccess(&p.access)
	for _, f := range view.filters {
		f.declareAccess(&p.access)
	}

	*q = Query[T]{view: view}
	p.queries = append(p.queries, q)
	return nil
}

func (q *Query[T]) initParam(p *SystemParams) error {
	return q.init(p, nil)
}

func (q *Query[T]) initialized() bool {
	return q.view != nil
}

func (q *Query[T]) prepare(tick Tick) {
	q.runTick = tick
	q.Execute()
}

func (q *Query[T]) finish() {
	q.lastRun = q.runTick
	q.runTick = 0
	q.cacheValid = false
}

func (q *Query[T]) tick() Tick {
	if q.runTick != 0 {
		return q.runTick
	}
	return q.view.stampTick()
}

func (q *Query[T]) ensureArchetypeCache() {
	world := q.view.world
	if q.cachedArchetypes != nil && q.archetypeVersion == world.archetypeVersion {
		return
	}

	q.cachedArchetypes = make([]*Archetype, 0, len(world.archetypes))
	for _, archetype := range world.archetypes {
		if q.view.matchesArchetype(archetype) {
			q.cachedArchetypes = append(q.cachedArchetypes, archetype)
		}
	}
	q.archetypeVersion = world.archetypeVersion
}

// Execute evaluates the query against the World and caches the rows.
// Called automatically by the executor before the owning system runs.
func (q *Query[T]) Execute() {
	q.ensureArchetypeCache()

	q.cachedEntities = q.cachedEntities[:0]
	q.cachedRows = q.cachedRows[:0]

	q.view.scan(q.cachedArchetypes, q.lastRun, q.tick(), func(e Entity, row T) bool {
		q.cachedEntities = append(q.cachedEntities, e)
		q.cachedRows = append(q.cachedRows, row)
		return true
	})

	q.cacheValid = true
}

func (q *Query[T]) ensureExecuted() {
	if !q.cacheValid {
		q.Execute()
	}
}

// Iter returns an iterator over entities and their rows.
func (q *Query[T]) Iter() iter.Seq2[Entity, T] {
	q.ensureExecuted()

	return func(yield func(Entity, T) bool) {
		for i := range q.cachedEntities {
			if !yield(q.cachedEntities[i], q.cachedRows[i]) {
				return
			}
		}
	}
}

// Values returns an iterator over rows only.
func (q *Query[T]) Values() iter.Seq[T] {
	q.ensureExecuted()

	return func(yield func(T) bool) {
		for i := range q.cachedRows {
			if !yield(q.cachedRows[i]) {
				return
			}
		}
	}
}

// ForEach calls fn for every matching row.
func (q *Query[T]) ForEach(fn func(Entity, T)) {
	q.ensureExecuted()
	for i := range q.cachedEntities {
		fn(q.cachedEntities[i], q.cachedRows[i])
	}
}

// First returns the first matching row.
func (q *Query[T]) First() (Entity, T, bool) {
	q.ensureExecuted()
	if len(q.cachedEntities) == 0 {
		var zero T
		return 0, zero, false
	}
	return q.cachedEntities[0], q.cachedRows[0], true
}

// Count returns the number of matching rows.
func (q *Query[T]) Count() int {
	q.ensureExecuted()
	return len(q.cachedEntities)
}

// Get reads the row of a single entity directly from the World. It returns
// ErrEntityNotFound for dead entities and ErrComponentNotFound when the entity
// does not match the query.
func (q *Query[T]) Get(e Entity) (T, error) {
	var result T
	record, ok := q.view.world.records.Get(e)
	if !ok {
		return result, ErrEntityNotFound
	}
	a := record.archetype
	if !q.view.matchesArchetype(a) || !q.view.matchesSlot(a, record.slot, q.lastRun) {
		return result, ErrComponentNotFound
	}
	if !q.view.layout.populate(unsafe.Pointer(&result), a, record.slot, e, q.view.layout.columns(a), q.tick()) {
		return result, ErrComponentNotFound
	}
	return result, nil
}

// LastRun returns the tick of the owning system's previous run.
func (q *Query[T]) LastRun() Tick {
	return q.lastRun
}

// ParallelForEach splits the rows into batches of batchSize and runs fn over
// each batch as a sub-task of the current system. fn is called concurrently
// and must only touch the row it is given.
func (q *Query[T]) ParallelForEach(tasks *TaskGroup, batchSize int, fn func(Entity, T)) {
	q.ensureExecuted()
	if batchSize <= 0 {
		batchSize = 64
	}

	entities, rows := q.cachedEntities, q.cachedRows
	for start := 0; start < len(entities); start += batchSize {
		end := min(start+batchSize, len(entities))
		batchEntities, batchRows := entities[start:end], rows[start:end]
		tasks.Go(func() error {
			for i := range batchEntities {
				fn(batchEntities[i], batchRows[i])
			}
			return nil
		})
	}
}
