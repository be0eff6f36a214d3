// Package unit implements the lifecycle engine that drives one unit through
// the fixed mission phase sequence with uniform reporting and failure
// handling.
package unit

import (
	"context"

	"seadog/internal/model"
)

// Identity names a unit and its squad membership.
type Identity struct {
	ID       string
	CallSign string
	Squad    string
}

// Unit is the capability interface the engine consumes. Implementations
// supply only their identity, declared capabilities, and the ASSAULT-phase
// mission logic; everything else about the lifecycle is uniform.
type Unit interface {
	Identity() Identity
	Capabilities() []string
	// ExecuteMission performs the unit's primary work and returns a result
	// payload. It must honor ctx cancellation at its suspension points.
	ExecuteMission(ctx context.Context, params model.MissionParameters) (map[string]any, error)
}
