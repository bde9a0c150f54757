package ecs

import (
	"fmt"

	"go.uber.org/multierr"
)

// Plugin bundles the systems, resources and sub-worlds of one feature.
type Plugin interface {
	Build(app *App) error
}

// PluginFunc adapts a function to a Plugin.
type PluginFunc func(app *App) error

func (f PluginFunc) Build(app *App) error {
	return f(app)
}

// AddPlugin builds each plugin against the App, in order. Every plugin is
// built even if an earlier one fails; all errors are returned together.
// Plugins must be added before the first tick.
func (a *App) AddPlugin(plugins ...Plugin) error {
	a.mu.Lock()
	started, closed := a.started, a.closed
	a.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case started:
		return ErrStarted
	}

	var errs error
	for _, p := range plugins {
		if err := p.Build(a); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("plugin %T: %w", p, err))
		}
	}
	return errs
}
