// Package suite executes a configured set of scenarios under one deadline
// and distills their results into a single graded report.
package suite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/scenario"
)

// DefaultExecutionTimeout bounds suites whose config carries no timeout.
const DefaultExecutionTimeout = 30 * time.Minute

type Runner struct {
	bus    *events.Bus
	logger *logging.Logger
}

func NewRunner(bus *events.Bus, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{bus: bus, logger: logger}
}

// Run executes every scenario and returns the suite report. The report always
// carries exactly one result per scenario: scenarios that never finished
// before the suite deadline appear as fully populated ABORTED results.
func (r *Runner) Run(ctx context.Context, cfg model.SuiteConfig, scenarios []scenario.Scenario) model.SuiteReport {
	start := time.Now()

	execID, err := model.GenerateID(model.IDTypeSuite)
	if err != nil {
		execID = fmt.Sprintf("ste_%d", start.UnixNano())
	}

	timeout := cfg.ExecutionTimeout()
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logger.Infof("SUITE: %s starting, type=%s scenarios=%d parallel=%v timeout=%s",
		execID, cfg.SuiteType, len(scenarios), cfg.Parallel, timeout)

	var results []model.ScenarioResult
	if cfg.Parallel {
		results = r.runParallel(sctx, scenarios)
	} else {
		results = r.runSequential(sctx, scenarios)
	}

	report := BuildReport(execID, cfg, start, time.Now(), results)

	if r.bus != nil {
		r.bus.Publish(events.Event{
			Type:    events.EventSuiteCompleted,
			SuiteID: execID,
			Data: map[string]any{
				"suite_type":   string(cfg.SuiteType),
				"verdict":      string(report.Summary.Verdict),
				"quality":      string(report.Summary.Quality),
				"success_rate": report.Metrics.SuccessRate,
			},
		})
	}

	r.logger.Infof("SUITE: %s finished verdict=%s quality=%s success_rate=%.2f",
		execID, report.Summary.Verdict, report.Summary.Quality, report.Metrics.SuccessRate)
	return report
}

func (r *Runner) runParallel(ctx context.Context, scenarios []scenario.Scenario) []model.ScenarioResult {
	results := make([]model.ScenarioResult, len(scenarios))
	settled := make([]bool, len(scenarios))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		wg.Add(1)
		go func(i int, sc scenario.Scenario) {
			defer wg.Done()
			res := r.runOne(ctx, sc)
			mu.Lock()
			results[i] = res
			settled[i] = true
			mu.Unlock()
		}(i, sc)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
		r.logger.Warnf("SUITE: deadline hit, abandoning unfinished scenarios")
	}

	// Abandoned scenarios can still settle after the deadline. Snapshot under
	// the lock so a late writer cannot touch the slice the report is built from.
	mu.Lock()
	defer mu.Unlock()
	out := make([]model.ScenarioResult, len(scenarios))
	copy(out, results)
	for i, ok := range settled {
		if !ok {
			out[i] = abortedResult(scenarios[i], "suite deadline exceeded")
		}
	}
	return out
}

func (r *Runner) runSequential(ctx context.Context, scenarios []scenario.Scenario) []model.ScenarioResult {
	results := make([]model.ScenarioResult, len(scenarios))
	for i, sc := range scenarios {
		if ctx.Err() != nil {
			results[i] = abortedResult(sc, "suite deadline exceeded")
			continue
		}
		results[i] = r.runOne(ctx, sc)
	}
	return results
}

// runOne contains one scenario's panic so a defective scenario cannot take
// the suite down with it.
func (r *Runner) runOne(ctx context.Context, sc scenario.Scenario) (result model.ScenarioResult) {
	defer func() {
		if rec := recover(); rec != nil {
			bp := sc.Blueprint()
			r.logger.Errorf("SUITE: scenario %s panicked: %v", bp.ID(), rec)
			result = failedResult(sc, fmt.Sprintf("scenario panic: %v", rec))
		}
	}()
	res := scenario.Run(ctx, sc)
	return *res
}

func abortedResult(sc scenario.Scenario, cause string) model.ScenarioResult {
	return terminalResult(sc, model.ScenarioAborted, cause)
}

func failedResult(sc scenario.Scenario, cause string) model.ScenarioResult {
	return terminalResult(sc, model.ScenarioFailed, cause)
}

func terminalResult(sc scenario.Scenario, status model.ScenarioStatus, cause string) model.ScenarioResult {
	bp := sc.Blueprint()
	var failedIDs []string
	for _, obj := range bp.Objectives() {
		failedIDs = append(failedIDs, obj.ID)
	}
	now := time.Now()
	return model.ScenarioResult{
		ScenarioID:        bp.ID(),
		Type:              bp.Type(),
		Status:            status,
		StartTime:         now,
		EndTime:           now,
		ObjectivesFailed:  failedIDs,
		ValidationResults: map[string]any{"error": cause},
		Recommendations:   []string{"scenario did not complete, rerun after addressing the recorded error"},
	}
}
