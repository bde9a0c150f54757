package ecs

import "strconv"

// Phase is a named point in the frame with its own system graph.
type Phase uint8

const (
	// PhaseStartup runs once, on the first tick.
	PhaseStartup Phase = iota
	PhasePreUpdate
	PhaseUpdate
	PhasePostUpdate
	// PhaseRender runs after extraction into sub-worlds.
	PhaseRender
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseStartup, PhasePreUpdate, PhaseUpdate, PhasePostUpdate, PhaseRender}

func (p Phase) String() string {
	switch p {
	case PhaseStartup:
		return "startup"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseRender:
		return "render"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}
