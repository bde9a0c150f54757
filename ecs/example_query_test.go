package ecs_test

import (
	"context"
	"fmt"

	"github.com/plus3/ecscore/ecs"
)

type PreviewSystem struct {
	Moving ecs.Query[struct {
		Position Position
		Velocity Velocity
	}]
}

func (s *PreviewSystem) Execute(frame *ecs.UpdateFrame) {
	fmt.Println("Moving entities:")
	for item := range s.Moving.Values() {
		fmt.Printf("Position (%.0f, %.0f) -> (%.0f, %.0f)\n",
			item.Position.X, item.Position.Y,
			item.Position.X+item.Velocity.DX, item.Position.Y+item.Velocity.DY)
	}
}

// ExampleQuery demonstrates a system iterating a query. A Query caches the
// archetypes it matches and, while its system runs, the matching rows, so
// repeated iteration in the same run is cheap and sees a stable snapshot.
// Value fields declare reads, which lets read-only systems run in parallel.
func ExampleQuery() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(Position{X: 0, Y: 0}, Velocity{DX: 1, DY: 0})
	world.Spawn(Position{X: 10, Y: 10}, Velocity{DX: 0, DY: 1}, Health{Current: 100, Max: 100})
	world.Spawn(Position{X: 20, Y: 20}, Velocity{DX: -1, DY: -1})

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &PreviewSystem{}); err != nil {
		panic(err)
	}
	if err := scheduler.Once(context.Background(), 0); err != nil {
		panic(err)
	}

	// Output:
	// Moving entities:
	// Position (0, 0) -> (1, 0)
	// Position (20, 20) -> (19, 19)
	// Position (10, 10) -> (10, 11)
}

type DamageLog struct {
	Damaged *ecs.Query[struct {
		Entity ecs.Entity
		Health Health
	}]
	runs int
}

func (s *DamageLog) Init(p *ecs.SystemParams) error {
	s.Damaged = ecs.NewQuery[struct {
		Entity ecs.Entity
		Health Health
	}](p, ecs.Changed[Health]())
	return nil
}

func (s *DamageLog) Execute(frame *ecs.UpdateFrame) {
	s.runs++
	for item := range s.Damaged.Values() {
		fmt.Printf("run %d: health now %d\n", s.runs, item.Health.Current)
	}
}

// ExampleChanged shows a query that only yields entities whose component
// changed since the system last ran.
func ExampleChanged() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	hero := world.Spawn(Health{Current: 100, Max: 100})

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &DamageLog{}); err != nil {
		panic(err)
	}

	for frame := range 3 {
		if frame == 2 {
			if err := world.Set(hero, Health{Current: 80, Max: 100}); err != nil {
				panic(err)
			}
		}
		if err := scheduler.Once(context.Background(), 0); err != nil {
			panic(err)
		}
	}

	// Output:
	// run 1: health now 100
	// run 3: health now 80
}
