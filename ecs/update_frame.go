package ecs

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UpdateFrame is handed to a system each time it runs.
type UpdateFrame struct {
	World     *World
	Phase     Phase
	DeltaTime float64
	// Tick is the change tick of this run. Components written through
	// mutable query fields are stamped with it.
	Tick     Tick
	Commands *Commands
	Tasks    *TaskGroup
	Logger   *zap.Logger
}

// Context returns the context the phase is running under.
func (f *UpdateFrame) Context() context.Context {
	return f.Tasks.ctx
}

// TaskGroup runs sub-tasks of a system. The executor waits for every task
// before the system counts as finished and its commands are flushed.
type TaskGroup struct {
	group *errgroup.Group
	ctx   context.Context
}

func newTaskGroup(ctx context.Context) *TaskGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &TaskGroup{group: group, ctx: ctx}
}

// Go runs fn in its own goroutine.
func (t *TaskGroup) Go(fn func() error) {
	t.group.Go(fn)
}

// Context is cancelled when a task fails or the phase is cancelled.
func (t *TaskGroup) Context() context.Context {
	return t.ctx
}

func (t *TaskGroup) wait() error {
	return t.group.Wait()
}
