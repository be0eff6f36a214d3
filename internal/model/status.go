package model

import "fmt"

// UnitStatus is the lifecycle phase a unit is currently in.
type UnitStatus string

const (
	UnitStandby     UnitStatus = "STANDBY"
	UnitInfil       UnitStatus = "INFIL"
	UnitTarget      UnitStatus = "TARGET"
	UnitAssault     UnitStatus = "ASSAULT"
	UnitConsolidate UnitStatus = "CONSOLIDATE"
	UnitExfil       UnitStatus = "EXFIL"
	UnitComplete    UnitStatus = "COMPLETE"
	UnitFailed      UnitStatus = "FAILED"
	UnitAbort       UnitStatus = "ABORT"
)

type ThreatLevel string

const (
	ThreatGreen  ThreatLevel = "GREEN"
	ThreatYellow ThreatLevel = "YELLOW"
	ThreatOrange ThreatLevel = "ORANGE"
	ThreatRed    ThreatLevel = "RED"
	ThreatBlack  ThreatLevel = "BLACK"
)

var threatRank = map[ThreatLevel]int{
	ThreatGreen:  0,
	ThreatYellow: 1,
	ThreatOrange: 2,
	ThreatRed:    3,
	ThreatBlack:  4,
}

// MaxThreat returns the more severe of the two levels.
func MaxThreat(a, b ThreatLevel) ThreatLevel {
	if threatRank[b] > threatRank[a] {
		return b
	}
	return a
}

// ReportPriority orders sitrep and incident traffic.
type ReportPriority string

const (
	PriorityFlash     ReportPriority = "FLASH"
	PriorityImmediate ReportPriority = "IMMEDIATE"
	PriorityPriority  ReportPriority = "PRIORITY"
	PriorityRoutine   ReportPriority = "ROUTINE"
	PriorityDeferred  ReportPriority = "DEFERRED"
)

// MissionType selects the auto-assembled team composition.
type MissionType string

const (
	MissionDirectAction          MissionType = "DA"
	MissionSpecialRecon          MissionType = "SR"
	MissionUnconventionalWarfare MissionType = "UW"
	MissionInternalDefense       MissionType = "FID"
)

type ScenarioStatus string

const (
	ScenarioPlanning  ScenarioStatus = "PLANNING"
	ScenarioReady     ScenarioStatus = "READY"
	ScenarioExecuting ScenarioStatus = "EXECUTING"
	ScenarioCompleted ScenarioStatus = "COMPLETED"
	ScenarioFailed    ScenarioStatus = "FAILED"
	ScenarioAborted   ScenarioStatus = "ABORTED"
)

type ScenarioType string

const (
	ScenarioReconnaissance ScenarioType = "RECONNAISSANCE"
	ScenarioStressTest     ScenarioType = "STRESS_TEST"
)

type SuiteType string

const (
	SuiteReconnaissance SuiteType = "RECONNAISSANCE"
	SuiteStressTesting  SuiteType = "STRESS_TESTING"
	SuiteFullSpectrum   SuiteType = "FULL_SPECTRUM"
)

// SuiteVerdict is the top-level pass/fail call on a suite run.
type SuiteVerdict string

const (
	VerdictPassed SuiteVerdict = "PASSED"
	VerdictFailed SuiteVerdict = "FAILED"
)

var terminalUnitStatuses = map[UnitStatus]bool{
	UnitComplete: true,
	UnitFailed:   true,
	UnitAbort:    true,
}

var terminalScenarioStatuses = map[ScenarioStatus]bool{
	ScenarioCompleted: true,
	ScenarioFailed:    true,
	ScenarioAborted:   true,
}

// Unit lifecycle: standby → infil → target → assault → consolidate → exfil →
// complete. Failed/abort are reachable from any non-terminal phase and are
// handled as a special case in ValidateUnitTransition.
var validUnitTransitions = map[UnitStatus]map[UnitStatus]bool{
	UnitStandby:     {UnitInfil: true},
	UnitInfil:       {UnitTarget: true},
	UnitTarget:      {UnitAssault: true},
	UnitAssault:     {UnitConsolidate: true},
	UnitConsolidate: {UnitExfil: true},
	UnitExfil:       {UnitComplete: true},
}

var validScenarioTransitions = map[ScenarioStatus]map[ScenarioStatus]bool{
	ScenarioPlanning: {
		ScenarioReady:   true,
		ScenarioFailed:  true,
		ScenarioAborted: true,
	},
	ScenarioReady: {
		ScenarioExecuting: true,
		ScenarioFailed:    true,
		ScenarioAborted:   true,
	},
	ScenarioExecuting: {
		ScenarioCompleted: true,
		ScenarioFailed:    true,
		ScenarioAborted:   true,
	},
}

func IsUnitTerminal(s UnitStatus) bool {
	return terminalUnitStatuses[s]
}

func IsScenarioTerminal(s ScenarioStatus) bool {
	return terminalScenarioStatuses[s]
}

func ValidateUnitTransition(from, to UnitStatus) error {
	if IsUnitTerminal(from) {
		return fmt.Errorf("cannot transition from terminal unit status %q", from)
	}
	// Failure terminals are reachable from every live phase.
	if to == UnitFailed || to == UnitAbort {
		return nil
	}
	allowed, ok := validUnitTransitions[from]
	if !ok {
		return fmt.Errorf("unknown unit status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid unit transition: %q → %q", from, to)
	}
	return nil
}

func ValidateScenarioTransition(from, to ScenarioStatus) error {
	if IsScenarioTerminal(from) {
		return fmt.Errorf("cannot transition from terminal scenario status %q", from)
	}
	allowed, ok := validScenarioTransitions[from]
	if !ok {
		return fmt.Errorf("unknown scenario status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid scenario transition: %q → %q", from, to)
	}
	return nil
}
