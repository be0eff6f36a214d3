package model

import "time"

// Objective criteria keys recognized by the generic evaluator. Each criterion
// present on an objective is checked independently against computed metrics:
// min_success_rate against SuccessRate, max_execution_time_sec against the
// average per-unit duration, required_units against the succeeded count.
const (
	CriterionMinSuccessRate   = "min_success_rate"
	CriterionMaxExecutionTime = "max_execution_time_sec"
	CriterionRequiredUnits    = "required_units"
)

// ScenarioObjective is a machine-checkable success criterion. Immutable once
// added to a scenario.
type ScenarioObjective struct {
	ID          string             `json:"objective_id" yaml:"objective_id"`
	Description string             `json:"description" yaml:"description"`
	Criteria    map[string]float64 `json:"criteria" yaml:"criteria"`
	Priority    ReportPriority     `json:"priority" yaml:"priority"`
}

// PerformanceMetrics are derived from a scenario's per-unit results.
// Durations are seconds so criteria thresholds compare directly.
type PerformanceMetrics struct {
	TotalUnits       int     `json:"total_units" yaml:"total_units"`
	SucceededUnits   int     `json:"succeeded_units" yaml:"succeeded_units"`
	FailedUnits      int     `json:"failed_units" yaml:"failed_units"`
	SuccessRate      float64 `json:"success_rate" yaml:"success_rate"`
	TotalDurationSec float64 `json:"total_duration_sec" yaml:"total_duration_sec"`
	AvgDurationSec   float64 `json:"avg_duration_sec" yaml:"avg_duration_sec"`
	MinDurationSec   float64 `json:"min_duration_sec" yaml:"min_duration_sec"`
	MaxDurationSec   float64 `json:"max_duration_sec" yaml:"max_duration_sec"`
	// Units per minute, derived from the average duration.
	Throughput float64 `json:"throughput" yaml:"throughput"`
}

// ScenarioResult is produced exactly once per scenario run. Synthetic FAILED
// and ABORTED variants are fully populated, never partial.
type ScenarioResult struct {
	ScenarioID        string             `json:"scenario_id" yaml:"scenario_id"`
	Type              ScenarioType       `json:"scenario_type" yaml:"scenario_type"`
	Status            ScenarioStatus     `json:"status" yaml:"status"`
	StartTime         time.Time          `json:"start_time" yaml:"start_time"`
	EndTime           time.Time          `json:"end_time" yaml:"end_time"`
	Duration          time.Duration      `json:"duration" yaml:"duration"`
	ObjectivesMet     []string           `json:"objectives_met" yaml:"objectives_met"`
	ObjectivesFailed  []string           `json:"objectives_failed" yaml:"objectives_failed"`
	Metrics           PerformanceMetrics `json:"performance_metrics" yaml:"performance_metrics"`
	UnitReports       []UnitResult       `json:"unit_reports" yaml:"unit_reports"`
	ValidationResults map[string]any     `json:"validation_results" yaml:"validation_results"`
	Recommendations   []string           `json:"recommendations" yaml:"recommendations"`
	Artifacts         []string           `json:"artifacts" yaml:"artifacts"`
}

// QualityScore extracts the optional 0..1 quality score a scenario's
// validation step may have recorded.
func (r *ScenarioResult) QualityScore() (float64, bool) {
	if r.ValidationResults == nil {
		return 0, false
	}
	v, ok := r.ValidationResults["quality_score"]
	if !ok {
		return 0, false
	}
	switch s := v.(type) {
	case float64:
		return s, true
	case float32:
		return float64(s), true
	case int:
		return float64(s), true
	}
	return 0, false
}
