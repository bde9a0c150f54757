package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/internal/config"
	"github.com/plus3/ecscore/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ecs-stress: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a TOML or YAML config file.")
	duration := flag.Duration("duration", 0, "Stop after this long even if frames remain (0 for no limit).")
	entityCount := flag.Int("entities", -1, "The initial number of entities to create (overrides config).")
	frames := flag.Int("frames", -1, "The number of frames to run (overrides config).")
	executor := flag.String("executor", "", "The executor to use: sequential or concurrent (overrides config).")
	profileMode := flag.String("profile", "", "Write a cpu or mem profile to the working directory (overrides config).")
	seed := flag.Int64("seed", 1, "Seed for entity generation.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *entityCount >= 0 {
		cfg.Stress.Entities = *entityCount
	}
	if *frames >= 0 {
		cfg.Stress.Frames = *frames
	}
	if *executor != "" {
		cfg.Scheduler.Executor = *executor
	}
	if *profileMode != "" {
		cfg.Stress.Profile = *profileMode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	switch cfg.Stress.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	exec, err := ecs.NewExecutor(cfg.Scheduler.Executor, cfg.Scheduler.MaxParallel)
	if err != nil {
		return err
	}

	registry := ecs.NewComponentRegistry()
	registerComponents(registry)
	app := ecs.NewApp(registry,
		ecs.WithLogger(logger),
		ecs.WithExecutor(exec),
		ecs.WithWorldOptions(ecs.WithEntityCapacity(cfg.App.EntityCapacity)),
	)
	rng := rand.New(rand.NewSource(*seed))
	if err := app.AddPlugin(
		&simulationPlugin{population: cfg.Stress.Entities, rng: rng},
		&renderPlugin{worlds: cfg.App.SubWorlds},
	); err != nil {
		return err
	}
	if err := app.Build(); err != nil {
		return err
	}

	logger.Info("populating main world", zap.Int("entities", cfg.Stress.Entities))
	populate(app.Main().World, cfg.Stress.Entities, rng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	report := &Report{
		Executor:       cfg.Scheduler.Executor,
		Frames:         cfg.Stress.Frames,
		Entities:       cfg.Stress.Entities,
		Components:     registry.Len(),
		Worlds:         len(app.Worlds()),
		GCPauseMetrics: *gcPauseMetrics,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	logger.Info("running simulation",
		zap.Int("frames", cfg.Stress.Frames),
		zap.String("executor", cfg.Scheduler.Executor),
		zap.Strings("sub_worlds", cfg.App.SubWorlds),
	)
	dt := cfg.App.TickRate.Seconds()
	startTime := time.Now()
	for range cfg.Stress.Frames {
		if ctx.Err() != nil {
			break
		}
		tickStart := time.Now()
		if err := app.Tick(ctx, dt); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return err
		}
		report.TickTime.Samples = append(report.TickTime.Samples, time.Since(tickStart))
	}
	report.TotalTime = time.Since(startTime)
	report.TotalFrames = app.Frame()
	report.TickTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)
	report.collect(app)

	logger.Info("simulation finished", zap.Uint64("frames", report.TotalFrames), zap.Duration("elapsed", report.TotalTime))

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		return fmt.Errorf("close app: %w", err)
	}

	fmt.Println("\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Println("--- End of Report ---")
	return nil
}
