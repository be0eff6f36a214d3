// Package scenario frames multi-unit test runs as a four-step pipeline:
// setup, execute, validate, cleanup. Concrete scenarios embed a Blueprint
// for objectives, unit assignment, and the status machine; Run drives the
// pipeline and guarantees a fully populated result whatever goes wrong.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seadog/internal/events"
	"seadog/internal/model"
)

// Scenario is one runnable test scenario. Implementations embed *Blueprint.
type Scenario interface {
	Blueprint() *Blueprint

	// Setup prepares targets and assigned units. A setup error fails the
	// scenario before anything deploys.
	Setup(ctx context.Context) error

	// Execute deploys units and produces the result skeleton: unit reports,
	// metrics, and the objective partition.
	Execute(ctx context.Context) (*model.ScenarioResult, error)

	// Validate inspects the executed result and returns findings to merge
	// into its validation results, including an optional quality_score.
	Validate(ctx context.Context) (map[string]any, error)

	// Cleanup releases resources and resets units. Run invokes it exactly
	// once per run, even when setup fails.
	Cleanup(ctx context.Context) error
}

// Run drives a scenario through its pipeline and always returns a complete
// result. Cleanup runs exactly once; a cleanup error is logged, never fatal.
func Run(ctx context.Context, sc Scenario) *model.ScenarioResult {
	bp := sc.Blueprint()
	start := time.Now()

	cleanupDone := false
	cleanup := func() {
		if cleanupDone {
			return
		}
		cleanupDone = true
		if err := sc.Cleanup(context.WithoutCancel(ctx)); err != nil {
			bp.logger.Warnf("CLEANUP: scenario %s: %v", bp.ID(), err)
		}
	}
	defer cleanup()

	if err := sc.Setup(ctx); err != nil {
		bp.logger.Errorf("SETUP: scenario %s failed: %v", bp.ID(), err)
		return settle(bp, syntheticResult(bp, start, fmt.Errorf("setup: %w", err)))
	}
	if err := bp.transition(model.ScenarioReady); err != nil {
		return settle(bp, syntheticResult(bp, start, err))
	}
	if err := bp.transition(model.ScenarioExecuting); err != nil {
		return settle(bp, syntheticResult(bp, start, err))
	}

	result, err := sc.Execute(ctx)
	if err != nil {
		bp.logger.Errorf("EXECUTE: scenario %s failed: %v", bp.ID(), err)
		return settle(bp, syntheticResult(bp, start, fmt.Errorf("execute: %w", err)))
	}
	if result == nil {
		return settle(bp, syntheticResult(bp, start, errors.New("execute returned no result")))
	}

	findings, err := sc.Validate(ctx)
	if result.ValidationResults == nil {
		result.ValidationResults = make(map[string]any)
	}
	for k, v := range findings {
		result.ValidationResults[k] = v
	}
	if err != nil {
		// A validation error is as fatal as an execute error. Any findings
		// collected before the failure stay on the synthesized result.
		bp.logger.Errorf("VALIDATE: scenario %s failed: %v", bp.ID(), err)
		synth := syntheticResult(bp, start, fmt.Errorf("validate: %w", err))
		for k, v := range result.ValidationResults {
			synth.ValidationResults[k] = v
		}
		synth.UnitReports = result.UnitReports
		synth.Metrics = result.Metrics
		return settle(bp, synth)
	}

	bp.terminate(model.ScenarioCompleted)
	result.Status = model.ScenarioCompleted
	finalize(result, bp, start)
	return settle(bp, result)
}

// syntheticResult builds the fully populated failure result: every objective
// failed, zeroed metrics, and the cause recorded in the validation results.
func syntheticResult(bp *Blueprint, start time.Time, cause error) *model.ScenarioResult {
	status := model.ScenarioFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		status = model.ScenarioAborted
	}
	bp.terminate(status)

	var failedIDs []string
	for _, obj := range bp.Objectives() {
		failedIDs = append(failedIDs, obj.ID)
	}

	result := &model.ScenarioResult{
		Status:           status,
		ObjectivesFailed: failedIDs,
		Metrics:          model.PerformanceMetrics{},
		ValidationResults: map[string]any{
			"error": cause.Error(),
		},
		Recommendations: []string{"scenario did not complete, rerun after addressing the recorded error"},
	}
	finalize(result, bp, start)
	return result
}

func finalize(result *model.ScenarioResult, bp *Blueprint, start time.Time) {
	result.ScenarioID = bp.ID()
	result.Type = bp.Type()
	if result.StartTime.IsZero() {
		result.StartTime = start
	}
	if result.EndTime.IsZero() {
		result.EndTime = time.Now()
	}
	result.Duration = result.EndTime.Sub(result.StartTime)
}

func settle(bp *Blueprint, result *model.ScenarioResult) *model.ScenarioResult {
	if bp.bus != nil {
		bp.bus.Publish(events.Event{
			Type:       events.EventScenarioCompleted,
			ScenarioID: result.ScenarioID,
			Data: map[string]any{
				"scenario_type": string(result.Type),
				"status":        string(result.Status),
				"success_rate":  result.Metrics.SuccessRate,
			},
		})
	}
	bp.logger.Infof("SCENARIO: %s finished status=%s success_rate=%.2f", result.ScenarioID, result.Status, result.Metrics.SuccessRate)
	return result
}
