package main

import (
	"math/rand"

	"github.com/plus3/ecscore/ecs"
	"go.uber.org/zap"
)

const (
	worldSize     = 1000
	spawnPerFrame = 256
)

type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Health struct {
	Current, Max int
}

type Lifetime struct {
	Remaining float64
}

type Team uint8

// Died is sent by the reaper for every entity it despawns.
type Died struct {
	Entity ecs.Entity
	Team   Team
}

// Population is the number of live entities the spawner maintains.
type Population struct {
	Target int
}

type Tally struct {
	Spawned int
	Died    int
	ByTeam  [4]int
}

// RenderSnapshot is extracted into render sub-worlds before each Render phase.
type RenderSnapshot struct {
	Visible int
	Frame   uint64
}

func registerComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Lifetime](registry)
	ecs.RegisterComponent[Team](registry)
}

func randomComponents(rng *rand.Rand) []any {
	components := []any{
		Position{X: rng.Float32() * worldSize, Y: rng.Float32() * worldSize},
		Health{Current: 50 + rng.Intn(50), Max: 100},
		Team(rng.Intn(4)),
	}
	if rng.Intn(4) != 0 {
		components = append(components, Velocity{DX: rng.Float32()*20 - 10, DY: rng.Float32()*20 - 10})
	}
	if rng.Intn(2) == 0 {
		components = append(components, Lifetime{Remaining: 1 + rng.Float64()*5})
	}
	return components
}

func populate(world *ecs.World, n int, rng *rand.Rand) {
	for range n {
		world.Spawn(randomComponents(rng)...)
	}
}

// spawnSystem tops the population back up, a bounded number per frame.
type spawnSystem struct {
	Alive      ecs.Query[struct{ Health Health }]
	Population ecs.Res[Population]
	Tally      ecs.ResMut[Tally]
	rng        *rand.Rand
}

func (s *spawnSystem) Execute(frame *ecs.UpdateFrame) {
	population, ok := s.Population.Value()
	if !ok {
		return
	}
	missing := min(population.Target-s.Alive.Count(), spawnPerFrame)
	for range missing {
		frame.Commands.Spawn(randomComponents(s.rng)...)
	}
	if missing > 0 {
		s.Tally.Get().Spawned += missing
	}
}

type movingRow struct {
	*Position
	Velocity Velocity
}

type movementSystem struct {
	Entities ecs.Query[movingRow]
}

func (s *movementSystem) Execute(frame *ecs.UpdateFrame) {
	dt := float32(frame.DeltaTime)
	s.Entities.ParallelForEach(frame.Tasks, 512, func(_ ecs.Entity, item movingRow) {
		item.Position.X = wrap(item.Position.X + item.Velocity.DX*dt)
		item.Position.Y = wrap(item.Position.Y + item.Velocity.DY*dt)
	})
}

func wrap(v float32) float32 {
	switch {
	case v < 0:
		return v + worldSize
	case v >= worldSize:
		return v - worldSize
	}
	return v
}

type lifetimeSystem struct {
	Entities ecs.Query[struct {
		*Lifetime
		*Health
	}]
}

func (s *lifetimeSystem) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		item.Lifetime.Remaining -= frame.DeltaTime
		if item.Lifetime.Remaining <= 0 {
			item.Health.Current = 0
		}
	}
}

// hazardSystem damages everything inside the hazard band.
type hazardSystem struct {
	Entities ecs.Query[hazardRow]
}

type hazardRow struct {
	Position Position
	Health   *Health
}

func (s *hazardSystem) Execute(frame *ecs.UpdateFrame) {
	s.Entities.ParallelForEach(frame.Tasks, 512, func(_ ecs.Entity, item hazardRow) {
		if item.Position.X > worldSize*0.45 && item.Position.X < worldSize*0.55 {
			item.Health.Current -= 5
		}
	})
}

type reaperSystem struct {
	Entities ecs.Query[struct {
		Entity ecs.Entity
		Health Health
		Team   Team
	}]
	Died ecs.EventWriter[Died]
}

func (s *reaperSystem) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		if item.Health.Current <= 0 {
			frame.Commands.Despawn(item.Entity)
			s.Died.Send(Died{Entity: item.Entity, Team: item.Team})
		}
	}
}

// tallySystem runs in PreUpdate and the reaper in PostUpdate, so each Died
// event is counted exactly once, in the frame after it was sent.
type tallySystem struct {
	Died  ecs.EventReader[Died]
	Tally ecs.ResMut[Tally]
}

func (s *tallySystem) Execute(frame *ecs.UpdateFrame) {
	tally := s.Tally.Get()
	for died := range s.Died.Iter() {
		tally.Died++
		tally.ByTeam[died.Team%4]++
	}
	if n := s.Died.Len(); n > 0 {
		frame.Logger.Debug("entities died", zap.Int("count", n))
	}
}

// RenderStats is kept by the render system of each sub-world.
type RenderStats struct {
	Frames      int
	LastVisible int
}

type renderSystem struct {
	Snapshot ecs.Res[RenderSnapshot]
	Stats    ecs.ResMut[RenderStats]
}

func (s *renderSystem) Execute(frame *ecs.UpdateFrame) {
	snapshot, ok := s.Snapshot.Value()
	if !ok {
		return
	}
	stats := s.Stats.Get()
	stats.Frames++
	stats.LastVisible = snapshot.Visible
}

// extractRender copies what the render world draws out of the main World.
func extractRender(mainWorld, sub *ecs.World) error {
	var frame uint64
	if t, ok := ecs.GetResource[ecs.Time](mainWorld); ok {
		frame = t.Frame
	}
	visible := ecs.NewView[struct{ Position Position }](mainWorld).Count()
	ecs.InsertResource(sub, RenderSnapshot{Visible: visible, Frame: frame})
	return nil
}

// simulationPlugin adds the main World's resources and systems.
type simulationPlugin struct {
	population int
	rng        *rand.Rand
}

func (p *simulationPlugin) Build(app *ecs.App) error {
	mainWorld := app.Main()
	ecs.InsertResource(mainWorld.World, Population{Target: p.population})
	ecs.InsertResource(mainWorld.World, Tally{})

	for _, s := range []struct {
		phase  ecs.Phase
		system ecs.System
		opts   []ecs.SystemOption
	}{
		{ecs.PhasePreUpdate, &tallySystem{}, nil},
		{ecs.PhasePreUpdate, &spawnSystem{rng: p.rng}, []ecs.SystemOption{ecs.After("tallySystem")}},
		{ecs.PhaseUpdate, &movementSystem{}, nil},
		{ecs.PhaseUpdate, &lifetimeSystem{}, nil},
		{ecs.PhaseUpdate, &hazardSystem{}, nil},
		{ecs.PhasePostUpdate, &reaperSystem{}, nil},
	} {
		if err := mainWorld.Scheduler.AddSystem(s.phase, s.system, s.opts...); err != nil {
			return err
		}
	}
	return nil
}

// renderPlugin adds one render sub-world per name, fed by extractRender.
type renderPlugin struct {
	worlds []string
}

func (p *renderPlugin) Build(app *ecs.App) error {
	for _, name := range p.worlds {
		aw, err := app.AddWorld(name, extractRender)
		if err != nil {
			return err
		}
		ecs.InsertResource(aw.World, RenderStats{})
		if err := aw.Scheduler.AddSystem(ecs.PhaseRender, &renderSystem{}); err != nil {
			return err
		}
	}
	return nil
}
