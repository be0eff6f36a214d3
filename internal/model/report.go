package model

import "time"

// SuiteConfig is the caller-supplied configuration for one suite run.
// Loaded from YAML by the front-end; the engine only reads it.
type SuiteConfig struct {
	SuiteType           SuiteType      `json:"suite_type" yaml:"suite_type"`
	Targets             []string       `json:"targets" yaml:"targets"`
	Parameters          map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ExecutionTimeoutSec int            `json:"execution_timeout_sec" yaml:"execution_timeout_sec"`
	Parallel            bool           `json:"parallel" yaml:"parallel"`
	OutputDir           string         `json:"output_dir" yaml:"output_dir"`
}

// ExecutionTimeout returns the suite deadline as a duration.
func (c SuiteConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutSec) * time.Second
}

// SuiteMetrics aggregates the per-scenario results of one suite run.
type SuiteMetrics struct {
	TotalScenarios      int     `json:"total_scenarios" yaml:"total_scenarios"`
	SuccessfulScenarios int     `json:"successful_scenarios" yaml:"successful_scenarios"`
	FailedScenarios     int     `json:"failed_scenarios" yaml:"failed_scenarios"`
	TotalDurationSec    float64 `json:"total_duration_sec" yaml:"total_duration_sec"`
	AvgScenarioSec      float64 `json:"avg_scenario_sec" yaml:"avg_scenario_sec"`
	SuccessRate         float64 `json:"success_rate" yaml:"success_rate"`
	// Mean of quality scores reported by scenario validation, where present.
	OverallScore float64 `json:"overall_score" yaml:"overall_score"`
}

// QualityLabel is the five-level quality assessment on a suite run.
type QualityLabel string

const (
	QualityExcellent  QualityLabel = "EXCELLENT"
	QualityGood       QualityLabel = "GOOD"
	QualityAcceptable QualityLabel = "ACCEPTABLE"
	QualityPoor       QualityLabel = "POOR"
	QualityCritical   QualityLabel = "CRITICAL"
)

// SuiteSummary is the derived verdict section of a suite report.
type SuiteSummary struct {
	Verdict         SuiteVerdict `json:"verdict" yaml:"verdict"`
	Quality         QualityLabel `json:"quality" yaml:"quality"`
	KeyFindings     []string     `json:"key_findings" yaml:"key_findings"`
	Recommendations []string     `json:"recommendations" yaml:"recommendations"`
}

// SuiteReport is the single record produced per suite run. It is handed to
// report sinks as plain data; the engine keeps no reference after returning.
type SuiteReport struct {
	ExecutionID string           `json:"execution_id" yaml:"execution_id"`
	SuiteType   SuiteType        `json:"suite_type" yaml:"suite_type"`
	StartTime   time.Time        `json:"start_time" yaml:"start_time"`
	EndTime     time.Time        `json:"end_time" yaml:"end_time"`
	Parallel    bool             `json:"parallel" yaml:"parallel"`
	Config      SuiteConfig      `json:"configuration" yaml:"configuration"`
	Metrics     SuiteMetrics     `json:"metrics" yaml:"metrics"`
	Scenarios   []ScenarioResult `json:"scenario_results" yaml:"scenario_results"`
	Summary     SuiteSummary     `json:"summary" yaml:"summary"`
}
