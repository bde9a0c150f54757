package ecs_test

import "github.com/plus3/ecscore/ecs"

type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Label struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

type PlayerController struct{}

type AI struct {
	State int
}

// Primitive-backed components.
type Score int32
type Tag string
type Faction string
type Title string

// Components holding references into other memory.
type Pursuit struct {
	Target *Position
}
type Inventory struct {
	Items []string
}
type Attributes struct {
	Values map[string]int
}

func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Label](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[PlayerController](registry)
	ecs.RegisterComponent[AI](registry)
	ecs.RegisterComponent[Score](registry)
	ecs.RegisterComponent[Tag](registry)
	ecs.RegisterComponent[Faction](registry)
	ecs.RegisterComponent[Title](registry)
	ecs.RegisterComponent[Pursuit](registry)
	ecs.RegisterComponent[Inventory](registry)
	ecs.RegisterComponent[Attributes](registry)
	return registry
}

func newTestWorld() *ecs.World {
	return ecs.NewWorld(newTestRegistry())
}
