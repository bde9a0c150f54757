package ecs_test

import (
	"context"
	"testing"

	"github.com/plus3/ecscore/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type movingRow struct {
	*Position
	*Velocity
}

type spawningSystem struct {
	Entities ecs.Query[movingRow]
	counts   []int
}

func (s *spawningSystem) Execute(frame *ecs.UpdateFrame) {
	count := 0
	for range s.Entities.Iter() {
		count++
		frame.Commands.Spawn(Position{}, Velocity{})
	}
	s.counts = append(s.counts, count)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	world := newTestWorld()

	world.Spawn(Position{X: 1, Y: 2}, Velocity{DX: 0.5, DY: 0.5})
	world.Spawn(Position{X: 3, Y: 4}, Velocity{DX: 1.0, DY: 1.0})
	world.Spawn(Position{X: 5, Y: 6}, Velocity{DX: 1.5, DY: 1.5}, Health{Current: 100, Max: 100})
	world.Spawn(Position{X: 7, Y: 8})

	scheduler := ecs.NewScheduler(world)
	sys := &spawningSystem{}
	require.NoError(t, scheduler.AddSystem(ecs.PhaseUpdate, sys))

	t.Run("rows reflect the world at system start", func(t *testing.T) {
		require.NoError(t, scheduler.Once(ctx, 0))
		assert.Equal(t, []int{3}, sys.counts, "spawns issued during the run are not visible to it")
	})

	t.Run("next run sees flushed spawns", func(t *testing.T) {
		require.NoError(t, scheduler.Once(ctx, 0))
		assert.Equal(t, []int{3, 6}, sys.counts)
	})

	t.Run("query outlives world archetype changes", func(t *testing.T) {
		world.Spawn(Position{}, Velocity{}, Score(1))
		require.NoError(t, scheduler.Once(ctx, 0))
		assert.Equal(t, 13, sys.counts[2])
	})
}

type changeWatcher struct {
	Changed *ecs.Query[struct {
		Entity   ecs.Entity
		Position Position
	}]
	Added *ecs.Query[struct{ Entity ecs.Entity }]
	seen  [][]ecs.Entity
	added [][]ecs.Entity
}

func (s *changeWatcher) Init(p *ecs.SystemParams) error {
	s.Changed = ecs.NewQuery[struct {
		Entity   ecs.Entity
		Position Position
	}](p, ecs.Changed[Position]())
	s.Added = ecs.NewQuery[struct{ Entity ecs.Entity }](p, ecs.Added[Velocity]())
	return nil
}

func (s *changeWatcher) Execute(frame *ecs.UpdateFrame) {
	var seen, added []ecs.Entity
	for e := range s.Changed.Iter() {
		seen = append(seen, e)
	}
	for e := range s.Added.Iter() {
		added = append(added, e)
	}
	s.seen = append(s.seen, seen)
	s.added = append(s.added, added)
}

func TestQueryChangeFilters(t *testing.T) {
	ctx := context.Background()
	world := newTestWorld()

	e1 := world.Spawn(Position{X: 1})
	e2 := world.Spawn(Position{X: 2})

	scheduler := ecs.NewScheduler(world)
	watcher := &changeWatcher{}
	require.NoError(t, scheduler.AddSystem(ecs.PhaseUpdate, watcher))

	require.NoError(t, scheduler.Once(ctx, 0))
	assert.Equal(t, []ecs.Entity{e1, e2}, watcher.seen[0], "newly added components count as changed")

	require.NoError(t, scheduler.Once(ctx, 0))
	assert.Empty(t, watcher.seen[1])

	require.NoError(t, world.Set(e2, Position{X: 5}))
	require.NoError(t, scheduler.Once(ctx, 0))
	assert.Equal(t, []ecs.Entity{e2}, watcher.seen[2])

	for _, row := range ecs.NewView[struct{ *Position }](world).Iter() {
		_ = row
	}
	require.NoError(t, scheduler.Once(ctx, 0))
	assert.Equal(t, []ecs.Entity{e1, e2}, watcher.seen[3], "mutable access marks components as changed")

	require.NoError(t, world.Set(e1, Velocity{}))
	require.NoError(t, scheduler.Once(ctx, 0))
	require.NoError(t, scheduler.Once(ctx, 0))
	assert.Equal(t, []ecs.Entity{e1}, watcher.added[4])
	assert.Empty(t, watcher.added[5])
}

type selfWriter struct {
	Q    *ecs.Query[struct{ *Position }]
	runs []int
}

func (s *selfWriter) Init(p *ecs.SystemParams) error {
	s.Q = ecs.NewQuery[struct{ *Position }](p, ecs.Changed[Position]())
	return nil
}

func (s *selfWriter) Execute(frame *ecs.UpdateFrame) {
	s.runs = append(s.runs, s.Q.Count())
}

func TestQueryIgnoresOwnWrites(t *testing.T) {
	world := newTestWorld()
	world.Spawn(Position{})
	world.Spawn(Position{})

	scheduler := ecs.NewScheduler(world)
	sys := &selfWriter{}
	require.NoError(t, scheduler.AddSystem(ecs.PhaseUpdate, sys))

	for range 3 {
		require.NoError(t, scheduler.Once(context.Background(), 0))
	}
	assert.Equal(t, []int{2, 0, 0}, sys.runs)
}

type lookupSystem struct {
	Rows    ecs.Query[movingRow]
	target  ecs.Entity
	missing ecs.Entity
	dead    ecs.Entity
	errs    []error
	first   ecs.Entity
	count   int
}

func (s *lookupSystem) Execute(frame *ecs.UpdateFrame) {
	row, err := s.Rows.Get(s.target)
	if err == nil {
		row.Position.X = 42
	}
	_, missingErr := s.Rows.Get(s.missing)
	_, deadErr := s.Rows.Get(s.dead)
	s.errs = []error{err, missingErr, deadErr}

	s.first, _, _ = s.Rows.First()
	s.Rows.ForEach(func(ecs.Entity, movingRow) { s.count++ })
}

func TestQueryGet(t *testing.T) {
	world := newTestWorld()

	target := world.Spawn(Position{}, Velocity{})
	missing := world.Spawn(Position{})
	dead := world.Spawn(Position{}, Velocity{})
	require.NoError(t, world.Despawn(dead))

	scheduler := ecs.NewScheduler(world)
	sys := &lookupSystem{target: target, missing: missing, dead: dead}
	require.NoError(t, scheduler.AddSystem(ecs.PhaseUpdate, sys))
	require.NoError(t, scheduler.Once(context.Background(), 0))

	assert.NoError(t, sys.errs[0])
	assert.ErrorIs(t, sys.errs[1], ecs.ErrComponentNotFound)
	assert.ErrorIs(t, sys.errs[2], ecs.ErrEntityNotFound)
	assert.Equal(t, target, sys.first)
	assert.Equal(t, 1, sys.count)

	pos, err := ecs.GetComponent[Position](world, target)
	require.NoError(t, err)
	assert.Equal(t, float32(42), pos.X)
}

type parallelMover struct {
	Rows ecs.Query[movingRow]
}

func (s *parallelMover) Execute(frame *ecs.UpdateFrame) {
	s.Rows.ParallelForEach(frame.Tasks, 64, func(_ ecs.Entity, row movingRow) {
		row.Position.X += row.Velocity.DX
	})
}

func TestQueryParallelForEach(t *testing.T) {
	world := newTestWorld()

	const n = 1000
	for range n {
		world.Spawn(Position{}, Velocity{DX: 1})
	}

	scheduler := ecs.NewScheduler(world, ecs.WithExecutor(&ecs.ConcurrentExecutor{}))
	require.NoError(t, scheduler.AddSystem(ecs.PhaseUpdate, &parallelMover{}))
	require.NoError(t, scheduler.Once(context.Background(), 0))
	require.NoError(t, scheduler.Once(context.Background(), 0))

	count := 0
	for row := range ecs.NewView[struct{ Position Position }](world).Values() {
		assert.Equal(t, float32(2), row.Position.X)
		count++
	}
	assert.Equal(t, n, count)
}
