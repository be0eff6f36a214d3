package scenario

import (
	"context"
	"fmt"
	"time"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/unit"
)

// DefaultWaves is the number of escalating load waves a stress scenario runs.
const DefaultWaves = 3

// StressScenario hammers the target set in successive waves, resetting units
// between waves, and grades how performance held up under escalation.
type StressScenario struct {
	bp *Blueprint

	waves     int
	intensity float64 // load multiplier applied per wave

	waveRates  []float64
	lastResult *model.ScenarioResult
}

func NewStressScenario(targets []string, units []*unit.Operator, bus *events.Bus, logger *logging.Logger) *StressScenario {
	bp := NewBlueprint("sustained load test", model.ScenarioStressTest, bus, logger)
	for _, t := range targets {
		bp.AddTarget(t)
	}
	for _, u := range units {
		bp.AddUnit(u)
	}

	bp.AddObjective(model.ScenarioObjective{
		ID:          "stress_resilience",
		Description: "hold success rate under sustained load",
		Criteria:    map[string]float64{model.CriterionMinSuccessRate: 0.7},
		Priority:    model.PriorityImmediate,
	})
	bp.AddObjective(model.ScenarioObjective{
		ID:          "stress_duration",
		Description: "finish all waves inside the test window",
		Criteria:    map[string]float64{model.CriterionMaxExecutionTime: 600},
		Priority:    model.PriorityRoutine,
	})

	return &StressScenario{
		bp:        bp,
		waves:     DefaultWaves,
		intensity: 1.5,
	}
}

// SetWaves controls how many load waves run.
func (s *StressScenario) SetWaves(n int) {
	if n > 0 {
		s.waves = n
	}
}

func (s *StressScenario) Blueprint() *Blueprint { return s.bp }

func (s *StressScenario) Setup(ctx context.Context) error {
	if len(s.bp.Targets()) == 0 {
		return fmt.Errorf("stress scenario has no targets")
	}
	units := s.bp.Units()
	if len(units) == 0 {
		return fmt.Errorf("stress scenario has no units assigned")
	}
	for _, op := range units {
		if model.IsUnitTerminal(op.Status()) {
			if err := op.Reset(); err != nil {
				return fmt.Errorf("reset unit %s: %w", op.Identity().ID, err)
			}
		}
		if op.Status() != model.UnitStandby {
			return fmt.Errorf("unit %s not on standby", op.Identity().ID)
		}
	}

	s.bp.SetParameter("waves", s.waves)
	s.bp.SetParameter("intensity", s.intensity)
	s.waveRates = s.waveRates[:0]
	return nil
}

func (s *StressScenario) Execute(ctx context.Context) (*model.ScenarioResult, error) {
	start := time.Now()
	var allReports []model.UnitResult

	load := 1.0
	for wave := 1; wave <= s.waves; wave++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := model.MissionParameters{
			Type:      model.MissionDirectAction,
			Targets:   s.bp.Targets(),
			TimeLimit: 3 * time.Minute,
			Config: map[string]any{
				"wave":            wave,
				"load_multiplier": load,
			},
		}
		s.bp.logger.Infof("STRESS: wave %d/%d at load %.1fx", wave, s.waves, load)
		reports := s.bp.ExecuteUnits(ctx, params)
		allReports = append(allReports, reports...)

		waveMetrics := ComputeMetrics(reports, 0)
		s.waveRates = append(s.waveRates, waveMetrics.SuccessRate)
		load *= s.intensity

		// Units must be back on standby before the next wave.
		if wave < s.waves {
			for _, op := range s.bp.Units() {
				if model.IsUnitTerminal(op.Status()) {
					if err := op.Reset(); err != nil {
						return nil, fmt.Errorf("reset unit %s between waves: %w", op.Identity().ID, err)
					}
				}
			}
		}
	}

	metrics := ComputeMetrics(allReports, time.Since(start))
	met, failed := s.bp.EvaluateObjectives(metrics)

	s.lastResult = &model.ScenarioResult{
		Status:           model.ScenarioExecuting,
		StartTime:        start,
		EndTime:          time.Now(),
		ObjectivesMet:    met,
		ObjectivesFailed: failed,
		Metrics:          metrics,
		UnitReports:      allReports,
		Recommendations:  Recommendations(metrics, failed),
	}
	return s.lastResult, nil
}

// Validate grades degradation: how much the success rate fell from the first
// wave to the last. A flat profile scores highest.
func (s *StressScenario) Validate(ctx context.Context) (map[string]any, error) {
	if s.lastResult == nil {
		return nil, fmt.Errorf("validate before execute")
	}

	degradation := 0.0
	if n := len(s.waveRates); n > 1 {
		degradation = s.waveRates[0] - s.waveRates[n-1]
		if degradation < 0 {
			degradation = 0
		}
	}

	quality := 0.5*s.lastResult.Metrics.SuccessRate + 0.5*(1.0-degradation)
	return map[string]any{
		"quality_score": quality,
		"waves_run":     len(s.waveRates),
		"wave_rates":    append([]float64(nil), s.waveRates...),
		"degradation":   degradation,
	}, nil
}

func (s *StressScenario) Cleanup(ctx context.Context) error {
	var firstErr error
	for _, op := range s.bp.Units() {
		if !model.IsUnitTerminal(op.Status()) {
			continue
		}
		if err := op.Reset(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
