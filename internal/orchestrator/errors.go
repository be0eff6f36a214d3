package orchestrator

import (
	"fmt"
	"time"
)

// SelectionError means pre-flight validation failed and nothing was
// deployed.
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string {
	return "selection invalid: " + e.Reason
}

// TimeoutError means the mission's time limit elapsed and emergency
// extraction was performed.
type TimeoutError struct {
	MissionID string
	Limit     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mission %s exceeded time limit %s", e.MissionID, e.Limit)
}
