package ecs

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Executor walks a built SystemsGraph and invokes runSystem once for every
// node, never starting a node before all of its predecessors have returned.
type Executor interface {
	Run(ctx context.Context, graph *SystemsGraph, runSystem func(ctx context.Context, node int) error) error
}

const (
	ExecutorSequential = "sequential"
	ExecutorConcurrent = "concurrent"
)

// NewExecutor returns the executor for a configured kind.
func NewExecutor(kind string, maxParallel int) (Executor, error) {
	switch kind {
	case ExecutorSequential, "":
		return SequentialExecutor{}, nil
	case ExecutorConcurrent:
		return &ConcurrentExecutor{MaxParallel: maxParallel}, nil
	}
	return nil, fmt.Errorf("unknown executor %q", kind)
}

// SequentialExecutor runs systems one at a time in topological order.
type SequentialExecutor struct{}

func (SequentialExecutor) Run(ctx context.Context, graph *SystemsGraph, runSystem func(ctx context.Context, node int) error) error {
	for _, node := range graph.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runSystem(ctx, node); err != nil {
			return err
		}
	}
	return nil
}

// ConcurrentExecutor runs every system whose predecessors have finished in
// parallel, up to MaxParallel at a time (unlimited when zero).
type ConcurrentExecutor struct {
	MaxParallel int
}

func (e *ConcurrentExecutor) Run(ctx context.Context, graph *SystemsGraph, runSystem func(ctx context.Context, node int) error) error {
	n := len(graph.nodes)
	if n == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.MaxParallel > 0 {
		g.SetLimit(e.MaxParallel)
	}

	remaining := make([]int, n)
	copy(remaining, graph.indegree)
	// Buffered so finished systems never block on the coordinator while it
	// waits for a free slot in the group.
	done := make(chan int, n)

	launch := func(node int) {
		g.Go(func() error {
			if err := runSystem(gctx, node); err != nil {
				return err
			}
			done <- node
			return nil
		})
	}

	for node := 0; node < n; node++ {
		if remaining[node] == 0 {
			launch(node)
		}
	}

	for finished := 0; finished < n; {
		select {
		case node := <-done:
			finished++
			for _, next := range graph.succ[node] {
				remaining[next]--
				if remaining[next] == 0 {
					launch(next)
				}
			}
		case <-gctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
	return g.Wait()
}
