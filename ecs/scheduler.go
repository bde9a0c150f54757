package ecs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	Phase          Phase
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	mu             sync.Mutex
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

func (s *systemStatsInternal) record(duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executionCount++
	s.lastDuration = duration
	s.totalDuration += duration
	if duration < s.minDuration {
		s.minDuration = duration
	}
	if duration > s.maxDuration {
		s.maxDuration = duration
	}
}

type systemNode struct {
	name     string
	system   System
	params   *SystemParams
	before   []string
	after    []string
	commands *Commands
	logger   *zap.Logger
	stats    systemStatsInternal
}

// ScheduleState is the lifecycle state of one phase's schedule.
type ScheduleState uint8

const (
	ScheduleRegistered ScheduleState = iota
	ScheduleGraphBuilt
	// ScheduleScheduled means the graph is built and the phase is queued to
	// run in the current frame.
	ScheduleScheduled
	ScheduleRunning
	ScheduleIdle
	// ScheduleInvalidated means systems were added after the graph was built;
	// it is rebuilt before the next run.
	ScheduleInvalidated
)

func (s ScheduleState) String() string {
	switch s {
	case ScheduleRegistered:
		return "registered"
	case ScheduleGraphBuilt:
		return "graph-built"
	case ScheduleScheduled:
		return "scheduled"
	case ScheduleRunning:
		return "running"
	case ScheduleIdle:
		return "idle"
	case ScheduleInvalidated:
		return "invalidated"
	}
	return "unknown"
}

type schedule struct {
	phase  Phase
	nodes  []*systemNode
	byName map[string]*systemNode
	graph  *SystemsGraph
	state  ScheduleState
}

func (s *schedule) built() bool {
	return s.graph != nil && s.state != ScheduleInvalidated && s.state != ScheduleRegistered
}

// Option configures a Scheduler or an App.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	executor  Executor
	worldOpts []WorldOption
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), executor: SequentialExecutor{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithExecutor sets the executor used to run each phase.
func WithExecutor(executor Executor) Option {
	return func(o *options) {
		o.executor = executor
	}
}

// WithWorldOptions sets the options an App creates its Worlds with.
func WithWorldOptions(opts ...WorldOption) Option {
	return func(o *options) {
		o.worldOpts = append(o.worldOpts, opts...)
	}
}

// Scheduler owns the per-phase system graphs of one World and runs them.
type Scheduler struct {
	world     *World
	executor  Executor
	logger    *zap.Logger
	schedules map[Phase]*schedule
	// mu serializes registration, building and running.
	mu          sync.Mutex
	startupDone bool
}

// NewScheduler creates a new scheduler for the given World.
func NewScheduler(world *World, opts ...Option) *Scheduler {
	o := newOptions(opts)
	return &Scheduler{
		world:     world,
		executor:  o.executor,
		logger:    o.logger.With(zap.Stringer("world", world.id)),
		schedules: make(map[Phase]*schedule),
	}
}

// World returns the World the scheduler runs systems against.
func (s *Scheduler) World() *World {
	return s.world
}

// AddSystem registers a system in a phase and calls its Init, if any. The
// phase's graph is rebuilt before it next runs.
func (s *Scheduler) AddSystem(phase Phase, system System, opts ...SystemOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := systemConfig{name: SystemName(system)}
	for _, opt := range opts {
		opt(&cfg)
	}

	fail := func(err error) error {
		err = &RegistrationError{Phase: phase, System: cfg.name, Err: err}
		s.logger.Error("system registration failed", zap.Error(err))
		return err
	}

	if cfg.name == "" {
		return fail(errors.New("system has no name, register it with Named"))
	}

	sch, ok := s.schedules[phase]
	if !ok {
		sch = &schedule{phase: phase, byName: make(map[string]*systemNode)}
		s.schedules[phase] = sch
	}
	if _, dup := sch.byName[cfg.name]; dup {
		return fail(ErrDuplicateSystem)
	}

	params := newSystemParams(s.world, cfg.name, phase)
	var err error
	if init, ok := system.(SystemInitializer); ok {
		err = init.Init(params)
	}
	initializeParams(system, params)
	if err = multierr.Append(err, params.Err()); err != nil {
		return fail(err)
	}

	node := &systemNode{
		name:     cfg.name,
		system:   system,
		params:   params,
		before:   cfg.before,
		after:    cfg.after,
		commands: NewCommands(s.world),
		logger:   s.logger.Named(cfg.name),
	}
	node.stats.minDuration = time.Duration(1<<63 - 1)

	sch.nodes = append(sch.nodes, node)
	sch.byName[cfg.name] = node
	if sch.graph != nil {
		sch.state = ScheduleInvalidated
	} else {
		sch.state = ScheduleRegistered
	}
	return nil
}

// Build resolves the graph of every phase that is not built yet. All
// configuration errors are returned together.
func (s *Scheduler) Build() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buildAll()
}

func (s *Scheduler) buildAll() error {
	var errs error
	for _, phase := range s.phases() {
		errs = multierr.Append(errs, s.build(s.schedules[phase]))
	}
	return errs
}

// prepareFrame builds every phase and marks the phases about to run as
// scheduled. When any graph fails to build nothing is marked and no phase of
// the frame may run.
func (s *Scheduler) prepareFrame(skipStartup bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleFrame(skipStartup)
}

func (s *Scheduler) scheduleFrame(skipStartup bool) error {
	if err := s.buildAll(); err != nil {
		return err
	}
	for phase, sch := range s.schedules {
		if phase == PhaseStartup && skipStartup {
			continue
		}
		sch.state = ScheduleScheduled
	}
	return nil
}

func (s *Scheduler) build(sch *schedule) error {
	if sch.built() {
		return nil
	}

	graph, err := buildGraph(sch.phase, sch.nodes, s.world.registry)
	if err != nil {
		s.logger.Error("system graph build failed", zap.Stringer("phase", sch.phase), zap.Error(err))
		return err
	}

	sch.graph = graph
	sch.state = ScheduleGraphBuilt
	s.logger.Debug("system graph built",
		zap.Stringer("phase", sch.phase),
		zap.Strings("order", graph.Order()),
		zap.Int("inferred_edges", len(graph.inferred)),
	)
	return nil
}

// phases returns the registered phases in execution order.
func (s *Scheduler) phases() []Phase {
	out := make([]Phase, 0, len(s.schedules))
	for phase := Phase(0); len(out) < len(s.schedules); phase++ {
		if _, ok := s.schedules[phase]; ok {
			out = append(out, phase)
		}
	}
	return out
}

// Graph returns the built graph of a phase.
func (s *Scheduler) Graph(phase Phase) (*SystemsGraph, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sch, ok := s.schedules[phase]
	if !ok || !sch.built() {
		return nil, false
	}
	return sch.graph, true
}

// State returns the lifecycle state of a phase's schedule.
func (s *Scheduler) State(phase Phase) ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch, ok := s.schedules[phase]; ok {
		return sch.state
	}
	return ScheduleRegistered
}

// RunPhase runs every system of a phase once. A graph that fails to build
// runs nothing.
func (s *Scheduler) RunPhase(ctx context.Context, phase Phase, dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runPhase(ctx, phase, dt)
}

func (s *Scheduler) runPhase(ctx context.Context, phase Phase, dt float64) error {
	sch, ok := s.schedules[phase]
	if !ok {
		return nil
	}
	if err := s.build(sch); err != nil {
		return err
	}

	sch.state = ScheduleRunning
	defer func() { sch.state = ScheduleIdle }()

	return s.executor.Run(ctx, sch.graph, func(ctx context.Context, node int) error {
		return s.runSystem(ctx, sch, sch.graph.nodes[node], dt)
	})
}

func (s *Scheduler) runSystem(ctx context.Context, sch *schedule, node *systemNode, dt float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w := s.world
	s.execute(ctx, sch, node, dt)

	if node.commands.Len() > 0 {
		w.gate.Lock()
		node.commands.Flush(w)
		w.gate.Unlock()
	}
	return nil
}

// execute runs the system while holding the World's gate shared, so no
// command flush can interleave with it.
func (s *Scheduler) execute(ctx context.Context, sch *schedule, node *systemNode, dt float64) {
	w := s.world
	w.gate.RLock()
	w.running.Add(1)
	defer func() {
		w.running.Add(-1)
		w.gate.RUnlock()
	}()

	tick := w.nextTick()
	for _, q := range node.params.queries {
		q.prepare(tick)
	}

	tasks := newTaskGroup(ctx)
	frame := &UpdateFrame{
		World:     w,
		Phase:     sch.phase,
		DeltaTime: dt,
		Tick:      tick,
		Commands:  node.commands,
		Tasks:     tasks,
		Logger:    node.logger,
	}

	start := time.Now()
	node.system.Execute(frame)
	if err := tasks.wait(); err != nil {
		node.logger.Error("system task failed", zap.Stringer("phase", sch.phase), zap.Error(err))
	}
	node.stats.record(time.Since(start))

	for _, q := range node.params.queries {
		q.finish()
	}
}

// Once runs every phase once with the given delta time, then rotates the
// World's event queues. The startup phase only runs on the first call. Every
// phase graph is built first; a configuration error in any phase means no
// system runs.
func (s *Scheduler) Once(ctx context.Context, dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scheduleFrame(s.startupDone); err != nil {
		return err
	}

	for _, phase := range s.phases() {
		if phase == PhaseStartup && s.startupDone {
			continue
		}
		if err := s.runPhase(ctx, phase, dt); err != nil {
			return fmt.Errorf("phase %s: %w", phase, err)
		}
	}
	s.startupDone = true
	s.world.UpdateEvents()
	return nil
}

// Run executes all systems repeatedly at the given interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
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
			if err := s.Once(ctx, dt); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}

// Stats returns statistics about system execution, by phase then
// registration order.
func (s *Scheduler) Stats() *SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &SchedulerStats{}
	for _, phase := range s.phases() {
		for _, node := range s.schedules[phase].nodes {
			internal := &node.stats
			internal.mu.Lock()
			var avgDuration, minDuration time.Duration
			if internal.executionCount > 0 {
				avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
				minDuration = internal.minDuration
			}
			stats.Systems = append(stats.Systems, SystemStats{
				Name:           node.name,
				Phase:          phase,
				ExecutionCount: internal.executionCount,
				MinDuration:    minDuration,
				MaxDuration:    internal.maxDuration,
				AvgDuration:    avgDuration,
				LastDuration:   internal.lastDuration,
				TotalDuration:  internal.totalDuration,
			})
			stats.TotalExecutions += internal.executionCount
			internal.mu.Unlock()
		}
	}
	stats.SystemCount = len(stats.Systems)
	return stats
}
