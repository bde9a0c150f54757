package ecs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntityNotFound is returned when an entity handle is stale or was never spawned.
	ErrEntityNotFound = errors.New("ecs: entity not found")
	// ErrComponentNotFound is returned when a live entity lacks the requested component.
	ErrComponentNotFound = errors.New("ecs: component not found")
	// ErrUnregisteredComponent is returned when a declaration names a type that was never registered.
	ErrUnregisteredComponent = errors.New("ecs: component type not registered")
	// ErrDuplicateSystem is returned when two systems share a name within a phase.
	ErrDuplicateSystem = errors.New("ecs: duplicate system")
	// ErrUnknownSystem is returned when an ordering constraint names a system that is not registered.
	ErrUnknownSystem = errors.New("ecs: unknown system")
	// ErrCycle is returned when ordering constraints form a cycle.
	ErrCycle = errors.New("ecs: system dependency cycle")
	// ErrSystemRunning is returned for structural World mutations issued while a system runs.
	ErrSystemRunning = errors.New("ecs: structural mutation while systems are running, use Commands")
	// ErrClosed is returned by an App or Scheduler after Close.
	ErrClosed = errors.New("ecs: closed")
	// ErrStarted is returned when a plugin is added after the App's first tick.
	ErrStarted = errors.New("ecs: app already started")
)

// CycleError reports the systems participating in an ordering cycle.
type CycleError struct {
	Phase   Phase
	Systems []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("ecs: system dependency cycle in %s: %s", e.Phase, strings.Join(e.Systems, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// RegistrationError wraps a configuration error raised while registering a system.
type RegistrationError struct {
	Phase  Phase
	System string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("ecs: register %s in %s: %v", e.System, e.Phase, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
