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

// Recon depth levels, shallowest first.
const (
	ReconDepthSurface  = "surface"
	ReconDepthStandard = "standard"
	ReconDepthDeep     = "deep"
)

// ReconScenario probes a target set with the assigned units and grades the
// intelligence coverage it achieved.
type ReconScenario struct {
	bp *Blueprint

	depth         string
	opsecLevel    string
	intelRequired []string

	lastResult *model.ScenarioResult
}

func NewReconScenario(targets []string, units []*unit.Operator, bus *events.Bus, logger *logging.Logger) *ReconScenario {
	bp := NewBlueprint("area reconnaissance", model.ScenarioReconnaissance, bus, logger)
	for _, t := range targets {
		bp.AddTarget(t)
	}
	for _, u := range units {
		bp.AddUnit(u)
	}

	bp.AddObjective(model.ScenarioObjective{
		ID:          "recon_coverage",
		Description: "survey every assigned target",
		Criteria:    map[string]float64{model.CriterionMinSuccessRate: 0.8},
		Priority:    model.PriorityImmediate,
	})
	bp.AddObjective(model.ScenarioObjective{
		ID:          "recon_tempo",
		Description: "complete the sweep inside the operational window",
		Criteria:    map[string]float64{model.CriterionMaxExecutionTime: 300},
		Priority:    model.PriorityPriority,
	})

	return &ReconScenario{
		bp:            bp,
		depth:         ReconDepthStandard,
		opsecLevel:    "covert",
		intelRequired: []string{"site_structure", "access_points", "defensive_posture"},
	}
}

// SetDepth selects how far units probe each target.
func (s *ReconScenario) SetDepth(depth string) {
	switch depth {
	case ReconDepthSurface, ReconDepthStandard, ReconDepthDeep:
		s.depth = depth
	}
}

func (s *ReconScenario) Blueprint() *Blueprint { return s.bp }

func (s *ReconScenario) Setup(ctx context.Context) error {
	targets := s.bp.Targets()
	if len(targets) == 0 {
		return fmt.Errorf("recon scenario has no targets")
	}
	units := s.bp.Units()
	if len(units) == 0 {
		return fmt.Errorf("recon scenario has no units assigned")
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

	s.bp.SetParameter("depth", s.depth)
	s.bp.SetParameter("opsec_level", s.opsecLevel)
	s.bp.SetParameter("intel_requirements", s.intelRequired)
	return nil
}

func (s *ReconScenario) Execute(ctx context.Context) (*model.ScenarioResult, error) {
	start := time.Now()
	params := model.MissionParameters{
		Type:      model.MissionSpecialRecon,
		Targets:   s.bp.Targets(),
		TimeLimit: 5 * time.Minute,
		Config: map[string]any{
			"depth":              s.depth,
			"opsec_level":        s.opsecLevel,
			"intel_requirements": s.intelRequired,
		},
	}

	reports := s.bp.ExecuteUnits(ctx, params)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := ComputeMetrics(reports, time.Since(start))
	met, failed := s.bp.EvaluateObjectives(metrics)

	s.lastResult = &model.ScenarioResult{
		Status:           model.ScenarioExecuting,
		StartTime:        start,
		EndTime:          time.Now(),
		ObjectivesMet:    met,
		ObjectivesFailed: failed,
		Metrics:          metrics,
		UnitReports:      reports,
		Recommendations:  Recommendations(metrics, failed),
	}
	return s.lastResult, nil
}

// Validate grades the intelligence take: coverage across targets and the
// share of required intel categories the successful units reported.
func (s *ReconScenario) Validate(ctx context.Context) (map[string]any, error) {
	if s.lastResult == nil {
		return nil, fmt.Errorf("validate before execute")
	}

	intelItems := 0
	for _, r := range s.lastResult.UnitReports {
		if !r.Success() {
			continue
		}
		for _, key := range s.intelRequired {
			if _, ok := r.Payload[key]; ok {
				intelItems++
			}
		}
	}

	required := len(s.intelRequired) * len(s.bp.Units())
	intelRatio := 0.0
	if required > 0 {
		intelRatio = float64(intelItems) / float64(required)
	}

	quality := 0.6*s.lastResult.Metrics.SuccessRate + 0.4*intelRatio
	return map[string]any{
		"quality_score":   quality,
		"intel_items":     intelItems,
		"intel_coverage":  intelRatio,
		"targets_swept":   len(s.bp.Targets()),
		"depth":           s.depth,
		"opsec_level":     s.opsecLevel,
		"opsec_incidents": countIncidents(s.lastResult.UnitReports),
	}, nil
}

func (s *ReconScenario) Cleanup(ctx context.Context) error {
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

func countIncidents(reports []model.UnitResult) int {
	n := 0
	for _, r := range reports {
		if r.Incident != nil {
			n++
		}
	}
	return n
}
