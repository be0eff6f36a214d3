// Package model defines the data structures shared by the orchestration
// engine: unit lifecycle statuses, mission parameters and results, scenario
// objectives, and suite reports.
package model

import (
	"fmt"
	"time"
)

// MissionParameters is the immutable input to a single mission. Callers build
// it once; the engine only reads it.
type MissionParameters struct {
	MissionID            string         `json:"mission_id" yaml:"mission_id"`
	Type                 MissionType    `json:"mission_type" yaml:"mission_type"`
	Targets              []string       `json:"targets" yaml:"targets"`
	Objectives           []string       `json:"objectives" yaml:"objectives"`
	TimeLimit            time.Duration  `json:"time_limit" yaml:"time_limit"`
	RequiredCapabilities []string       `json:"required_capabilities" yaml:"required_capabilities"`
	Config               map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Incident is the structured record a unit returns instead of a raw error.
// It carries the distilled nine-line fields that matter for triage.
type Incident struct {
	Location   string         `json:"location" yaml:"location"`
	Precedence ReportPriority `json:"precedence" yaml:"precedence"`
	Equipment  string         `json:"equipment" yaml:"equipment"`
	Casualties int            `json:"casualties" yaml:"casualties"`
	Cause      string         `json:"cause" yaml:"cause"`
}

func (n *Incident) String() string {
	return fmt.Sprintf("INCIDENT location=%s precedence=%s equipment=%s casualties=%d cause=%s",
		n.Location, n.Precedence, n.Equipment, n.Casualties, n.Cause)
}

// Sitrep is a periodic status snapshot emitted while a unit works a mission.
type Sitrep struct {
	UnitID    string      `json:"unit_id"`
	CallSign  string      `json:"call_sign"`
	MissionID string      `json:"mission_id"`
	Timestamp time.Time   `json:"timestamp"`
	Status    UnitStatus  `json:"status"`
	Threat    ThreatLevel `json:"threat_level"`
	Priority  ReportPriority `json:"priority"`
	Situation string      `json:"situation"`
	Progress  string      `json:"progress"`
}

// UnitResult is one unit's settled outcome for one mission.
type UnitResult struct {
	UnitID    string         `json:"unit_id" yaml:"unit_id"`
	CallSign  string         `json:"call_sign" yaml:"call_sign"`
	Squad     string         `json:"squad" yaml:"squad"`
	MissionID string         `json:"mission_id" yaml:"mission_id"`
	Status    UnitStatus     `json:"status" yaml:"status"`
	Payload   map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	Err       string         `json:"error,omitempty" yaml:"error,omitempty"`
	Incident  *Incident      `json:"incident,omitempty" yaml:"incident,omitempty"`
	Elapsed   time.Duration  `json:"elapsed" yaml:"elapsed"`
}

// Success reports whether the unit reached the COMPLETE terminal.
func (r UnitResult) Success() bool {
	return r.Status == UnitComplete
}

// FailureCode classifies mission-level failures for callers and tests.
type FailureCode string

const (
	FailureNone             FailureCode = ""
	FailureSelectionInvalid FailureCode = "SELECTION_INVALID"
	FailureMissionTimeout   FailureCode = "MISSION_TIMEOUT"
	FailureUnitFailure      FailureCode = "UNIT_FAILURE"
)

// MissionResult is the rollup of one mission. It always carries exactly one
// UnitResult per selected unit, in selection order.
type MissionResult struct {
	MissionID      string        `json:"mission_id" yaml:"mission_id"`
	Type           MissionType   `json:"mission_type" yaml:"mission_type"`
	Units          []UnitResult  `json:"units" yaml:"units"`
	TotalUnits     int           `json:"total_units" yaml:"total_units"`
	SucceededUnits int           `json:"succeeded_units" yaml:"succeeded_units"`
	FailedUnits    int           `json:"failed_units" yaml:"failed_units"`
	OverallSuccess bool          `json:"overall_success" yaml:"overall_success"`
	Failure        FailureCode   `json:"failure_code,omitempty" yaml:"failure_code,omitempty"`
	Err            string        `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed        time.Duration `json:"elapsed" yaml:"elapsed"`
}
