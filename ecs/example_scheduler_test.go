package ecs_test

import (
	"context"
	"fmt"
	"time"

	"github.com/plus3/ecscore/ecs"
)

type Location struct {
	X, Y float32
}

type Speed struct {
	DX, DY float32
}

type Hitpoints struct {
	Current, Max int
}

type PhysicsSystem struct {
	Entities ecs.Query[struct {
		*Location
		*Speed
	}]
}

func (s *PhysicsSystem) Execute(frame *ecs.UpdateFrame) {
	for entity := range s.Entities.Values() {
		entity.Location.X += entity.Speed.DX * float32(frame.DeltaTime)
		entity.Location.Y += entity.Speed.DY * float32(frame.DeltaTime)
	}
}

type HealingSystem struct {
	Entities  ecs.Query[struct{ *Hitpoints }]
	RegenRate float32
}

func (s *HealingSystem) Execute(frame *ecs.UpdateFrame) {
	for entity := range s.Entities.Values() {
		if entity.Hitpoints.Current < entity.Hitpoints.Max {
			entity.Hitpoints.Current += int(s.RegenRate * float32(frame.DeltaTime))
			if entity.Hitpoints.Current > entity.Hitpoints.Max {
				entity.Hitpoints.Current = entity.Hitpoints.Max
			}
		}
	}
}

// ExampleScheduler demonstrates building a game loop with multiple systems.
// The Scheduler initializes Query fields when a system is added, orders
// systems that touch the same components, and flushes each system's
// commands as soon as it returns.
func ExampleScheduler() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Location](registry)
	ecs.RegisterComponent[Speed](registry)
	ecs.RegisterComponent[Hitpoints](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(
		Location{X: 0, Y: 0},
		Speed{DX: 10, DY: 5},
		Hitpoints{Current: 80, Max: 100},
	)
	world.Spawn(
		Location{X: 100, Y: 100},
		Speed{DX: -5, DY: -5},
		Hitpoints{Current: 50, Max: 100},
	)

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &PhysicsSystem{}); err != nil {
		panic(err)
	}
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &HealingSystem{RegenRate: 10}); err != nil {
		panic(err)
	}

	if err := scheduler.Once(context.Background(), 1.0); err != nil {
		panic(err)
	}

	view := ecs.NewView[struct {
		*Location
		*Hitpoints
	}](world)

	fmt.Println("After one frame:")
	for item := range view.Values() {
		fmt.Printf("Position: (%.0f, %.0f), Health: %d/%d\n",
			item.Location.X, item.Location.Y,
			item.Hitpoints.Current, item.Hitpoints.Max)
	}

	// Output:
	// After one frame:
	// Position: (10, 5), Health: 90/100
	// Position: (95, 95), Health: 60/100
}

// ExampleScheduler_Run demonstrates running a continuous game loop.
// The Run method blocks and executes all systems at a fixed interval
// until the context is cancelled.
func ExampleScheduler_Run() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Location](registry)
	ecs.RegisterComponent[Speed](registry)
	world := ecs.NewWorld(registry)

	world.Spawn(Location{X: 0, Y: 0}, Speed{DX: 1, DY: 1})

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &PhysicsSystem{}); err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := scheduler.Run(ctx, 16*time.Millisecond); err != nil {
		panic(err)
	}

	fmt.Println("Scheduler stopped")
	// Output:
	// Scheduler stopped
}

type GameTime struct {
	TotalFrames int
	TotalTime   float64
}

type TimeTracker struct {
	GameTime ecs.ResMut[GameTime]
}

func (s *TimeTracker) Execute(frame *ecs.UpdateFrame) {
	gameTime := s.GameTime.Get()
	gameTime.TotalFrames++
	gameTime.TotalTime += frame.DeltaTime
}

type ScoreTracker struct {
	Points int
}

type ScoreSystem struct {
	Entities ecs.Query[struct{ *Location }]
	Score    ecs.ResMut[ScoreTracker]
}

func (s *ScoreSystem) Execute(frame *ecs.UpdateFrame) {
	s.Score.Get().Points += s.Entities.Count() * 10
}

// ExampleScheduler_withResources demonstrates using resources in systems.
// Res and ResMut fields are initialized by the Scheduler just like Query
// fields, and declare a read or a write of the resource for ordering.
func ExampleScheduler_withResources() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Location](registry)
	world := ecs.NewWorld(registry)

	ecs.InsertResource(world, GameTime{})
	ecs.InsertResource(world, ScoreTracker{})

	world.Spawn(Location{X: 0, Y: 0})
	world.Spawn(Location{X: 10, Y: 10})
	world.Spawn(Location{X: 20, Y: 20})

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &TimeTracker{}); err != nil {
		panic(err)
	}
	if err := scheduler.AddSystem(ecs.PhaseUpdate, &ScoreSystem{}); err != nil {
		panic(err)
	}

	for range 3 {
		if err := scheduler.Once(context.Background(), 0.016); err != nil {
			panic(err)
		}
	}

	gameTime, _ := ecs.GetResource[GameTime](world)
	fmt.Printf("Frames: %d, Time: %.3f\n", gameTime.TotalFrames, gameTime.TotalTime)

	score, _ := ecs.GetResource[ScoreTracker](world)
	fmt.Printf("Score: %d points\n", score.Points)

	// Output:
	// Frames: 3, Time: 0.048
	// Score: 90 points
}

// ExampleScheduler_ordering shows explicit ordering constraints and the
// resulting dependency levels.
func ExampleScheduler_ordering() {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Location](registry)
	ecs.RegisterComponent[Speed](registry)
	world := ecs.NewWorld(registry)

	noop := ecs.SystemFunc(func(*ecs.UpdateFrame) {})

	scheduler := ecs.NewScheduler(world)
	for _, add := range []func() error{
		func() error { return scheduler.AddSystem(ecs.PhaseUpdate, noop, ecs.Named("render"), ecs.After("physics")) },
		func() error { return scheduler.AddSystem(ecs.PhaseUpdate, noop, ecs.Named("audio")) },
		func() error { return scheduler.AddSystem(ecs.PhaseUpdate, &PhysicsSystem{}, ecs.Named("physics")) },
	} {
		if err := add(); err != nil {
			panic(err)
		}
	}
	if err := scheduler.Build(); err != nil {
		panic(err)
	}

	graph, _ := scheduler.Graph(ecs.PhaseUpdate)
	for i, level := range graph.Levels() {
		fmt.Println(i, level)
	}

	// Output:
	// 0 [audio physics]
	// 1 [render]
}
