package ecs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MainWorld is the name of the World every App starts with.
const MainWorld = "main"

// Time is the resource an App keeps current in each of its Worlds.
type Time struct {
	// Delta is the duration of the current tick in seconds.
	Delta float64
	// Elapsed is the total of all deltas so far.
	Elapsed float64
	Frame   uint64
}

// ExtractFunc copies what a sub-world needs out of the main World. It runs
// between PostUpdate and Render while no system is running.
type ExtractFunc func(main, sub *World) error

// AppWorld is one World of an App together with its Scheduler.
type AppWorld struct {
	Name      string
	World     *World
	Scheduler *Scheduler
	extract   ExtractFunc
}

// App composes one or more Worlds and drives their phases with a single
// per-frame tick. Each phase runs across all Worlds, in the order they were
// added, before the next phase starts.
type App struct {
	registry *ComponentRegistry
	opts     options
	logger   *zap.Logger

	// mu is held for the duration of a tick.
	mu      sync.Mutex
	worlds  []*AppWorld
	byName  map[string]*AppWorld
	started bool
	closed  bool
	time    Time
}

// NewApp creates an App with a main World using registry.
func NewApp(registry *ComponentRegistry, opts ...Option) *App {
	o := newOptions(opts)
	app := &App{
		registry: registry,
		opts:     o,
		logger:   o.logger,
		byName:   make(map[string]*AppWorld),
	}
	app.addWorld(MainWorld)
	return app
}

func (a *App) addWorld(name string) *AppWorld {
	world := NewWorld(a.registry, a.opts.worldOpts...)
	aw := &AppWorld{
		Name:  name,
		World: world,
		Scheduler: NewScheduler(world,
			WithLogger(a.logger.Named(name)),
			WithExecutor(a.opts.executor),
		),
	}
	a.worlds = append(a.worlds, aw)
	a.byName[name] = aw
	return aw
}

// AddWorld adds a sub-world sharing the App's registry. extract may be nil.
func (a *App) AddWorld(name string, extract ExtractFunc) (*AppWorld, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}
	if _, ok := a.byName[name]; ok {
		return nil, fmt.Errorf("world %q already exists", name)
	}
	aw := a.addWorld(name)
	aw.extract = extract
	return aw, nil
}

// Main returns the main World.
func (a *App) Main() *AppWorld {
	return a.worlds[0]
}

// World returns the named World.
func (a *App) World(name string) (*AppWorld, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	aw, ok := a.byName[name]
	return aw, ok
}

// Worlds returns the App's Worlds in tick order.
func (a *App) Worlds() []*AppWorld {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*AppWorld(nil), a.worlds...)
}

// AddSystem registers a system with the main World.
func (a *App) AddSystem(phase Phase, system System, opts ...SystemOption) error {
	return a.Main().Scheduler.AddSystem(phase, system, opts...)
}

// Build builds every World's schedules and reports all configuration errors.
func (a *App) Build() error {
	var errs error
	for _, aw := range a.Worlds() {
		if err := aw.Scheduler.Build(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("world %s: %w", aw.Name, err))
		}
	}
	return errs
}

// prepareFrame builds the schedules of every World. It fails before any
// phase of the frame has run.
func (a *App) prepareFrame() error {
	var errs error
	for _, aw := range a.worlds {
		if err := aw.Scheduler.prepareFrame(a.started); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("world %s: %w", aw.Name, err))
		}
	}
	return errs
}

// Tick advances every World by one frame: Startup (first tick only),
// PreUpdate, Update, PostUpdate, extraction, Render, then event rotation.
// Schedules are built before anything runs, so a configuration error in any
// World leaves the frame, the Time resource and the event queues untouched.
func (a *App) Tick(ctx context.Context, dt float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if err := a.prepareFrame(); err != nil {
		return err
	}

	a.time.Delta = dt
	a.time.Elapsed += dt
	for _, aw := range a.worlds {
		InsertResource(aw.World, a.time)
	}

	for _, phase := range Phases {
		if phase == PhaseStartup && a.started {
			continue
		}
		if phase == PhaseRender {
			if err := a.extract(); err != nil {
				return err
			}
		}
		for _, aw := range a.worlds {
			if err := aw.Scheduler.RunPhase(ctx, phase, dt); err != nil {
				return fmt.Errorf("world %s: phase %s: %w", aw.Name, phase, err)
			}
		}
	}
	a.started = true

	for _, aw := range a.worlds {
		aw.World.UpdateEvents()
	}
	a.time.Frame++
	return nil
}

func (a *App) extract() error {
	main := a.worlds[0].World
	for _, aw := range a.worlds[1:] {
		if aw.extract == nil {
			continue
		}
		if err := aw.extract(main, aw.World); err != nil {
			return fmt.Errorf("extract into %s: %w", aw.Name, err)
		}
	}
	return nil
}

// Run ticks the App at the given interval until the context is cancelled or
// a tick fails.
func (a *App) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			if err := a.Tick(ctx, dt); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Close waits for an in-flight tick to finish and releases every World's
// storage. Ticks after Close return ErrClosed.
func (a *App) Close(ctx context.Context) error {
	locked := make(chan struct{})
	go func() {
		a.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-ctx.Done():
		// The lock is still acquired in the background; release it once the
		// tick finishes so later calls do not block forever.
		go func() {
			<-locked
			a.mu.Unlock()
		}()
		return ctx.Err()
	}
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs error
	for _, aw := range a.worlds {
		if err := aw.World.Clear(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("world %s: %w", aw.Name, err))
		}
	}
	a.logger.Debug("app closed", zap.Uint64("frames", a.time.Frame))
	return errs
}

// Frame returns the number of completed ticks.
func (a *App) Frame() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.time.Frame
}
