package scenario

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/unit"
)

// DefaultMaxParallel caps concurrent unit deployments per scenario.
const DefaultMaxParallel = 8

// Blueprint holds the state common to every scenario: identity, objectives,
// targets, assigned units, and the status machine. Concrete scenarios embed
// a *Blueprint and implement the pipeline steps on top of it.
type Blueprint struct {
	id     string
	name   string
	typ    model.ScenarioType
	bus    *events.Bus
	logger *logging.Logger

	maxParallel int

	mu         sync.Mutex
	status     model.ScenarioStatus
	objectives []model.ScenarioObjective
	targets    []string
	units      []*unit.Operator
	params     map[string]any
}

func NewBlueprint(name string, typ model.ScenarioType, bus *events.Bus, logger *logging.Logger) *Blueprint {
	id, err := model.GenerateID(model.IDTypeScenario)
	if err != nil {
		id = fmt.Sprintf("scn_%d", time.Now().UnixNano())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Blueprint{
		id:          id,
		name:        name,
		typ:         typ,
		bus:         bus,
		logger:      logger,
		maxParallel: DefaultMaxParallel,
		status:      model.ScenarioPlanning,
		params:      make(map[string]any),
	}
}

func (b *Blueprint) ID() string               { return b.id }
func (b *Blueprint) Name() string             { return b.name }
func (b *Blueprint) Type() model.ScenarioType { return b.typ }

func (b *Blueprint) Status() model.ScenarioStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// transition advances the status machine, rejecting invalid moves.
func (b *Blueprint) transition(to model.ScenarioStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := model.ValidateScenarioTransition(b.status, to); err != nil {
		return err
	}
	b.logger.Debugf("SCENARIO: %s %s -> %s", b.id, b.status, to)
	b.status = to
	return nil
}

// terminate moves to a terminal status from wherever the scenario is. Already
// terminal scenarios keep their first verdict.
func (b *Blueprint) terminate(to model.ScenarioStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if model.IsScenarioTerminal(b.status) {
		return
	}
	b.logger.Debugf("SCENARIO: %s %s -> %s", b.id, b.status, to)
	b.status = to
}

func (b *Blueprint) AddObjective(obj model.ScenarioObjective) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objectives = append(b.objectives, obj)
}

func (b *Blueprint) AddUnit(op *unit.Operator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units = append(b.units, op)
}

func (b *Blueprint) AddTarget(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, target)
}

func (b *Blueprint) SetParameter(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params[key] = value
}

func (b *Blueprint) Parameter(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.params[key]
	return v, ok
}

func (b *Blueprint) SetMaxParallel(n int) {
	if n > 0 {
		b.maxParallel = n
	}
}

func (b *Blueprint) Objectives() []model.ScenarioObjective {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.ScenarioObjective, len(b.objectives))
	copy(out, b.objectives)
	return out
}

func (b *Blueprint) Targets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.targets))
	copy(out, b.targets)
	return out
}

func (b *Blueprint) Units() []*unit.Operator {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*unit.Operator, len(b.units))
	copy(out, b.units)
	return out
}

// ExecuteUnits deploys every assigned unit for the given mission parameters,
// bounded by the parallelism cap, and returns one result per unit in
// assignment order.
func (b *Blueprint) ExecuteUnits(ctx context.Context, params model.MissionParameters) []model.UnitResult {
	ops := b.Units()
	results := make([]model.UnitResult, len(ops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxParallel)
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			missionID := params.MissionID
			if missionID == "" {
				if id, err := model.GenerateID(model.IDTypeMission); err == nil {
					missionID = id
				} else {
					missionID = fmt.Sprintf("msn_%s_%d", b.id, i)
				}
			}
			results[i] = op.Deploy(gctx, missionID, params)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ComputeMetrics derives performance figures from settled unit results.
func ComputeMetrics(results []model.UnitResult, wall time.Duration) model.PerformanceMetrics {
	m := model.PerformanceMetrics{
		TotalUnits:       len(results),
		TotalDurationSec: wall.Seconds(),
		MinDurationSec:   math.Inf(1),
	}
	if len(results) == 0 {
		m.MinDurationSec = 0
		return m
	}

	var sumSec float64
	for _, r := range results {
		if r.Success() {
			m.SucceededUnits++
		} else {
			m.FailedUnits++
		}
		sec := r.Elapsed.Seconds()
		sumSec += sec
		if sec < m.MinDurationSec {
			m.MinDurationSec = sec
		}
		if sec > m.MaxDurationSec {
			m.MaxDurationSec = sec
		}
	}
	m.SuccessRate = float64(m.SucceededUnits) / float64(m.TotalUnits)
	m.AvgDurationSec = sumSec / float64(len(results))
	if m.AvgDurationSec > 0 {
		m.Throughput = 60.0 / m.AvgDurationSec
	}
	return m
}

// EvaluateObjectives partitions the scenario's objectives into met and failed
// against the computed metrics. Every criterion on an objective must hold for
// the objective to count as met; an unrecognized criterion key fails the
// objective so misconfigurations surface instead of passing silently.
func (b *Blueprint) EvaluateObjectives(metrics model.PerformanceMetrics) (met, failed []string) {
	for _, obj := range b.Objectives() {
		ok := true
		for key, threshold := range obj.Criteria {
			switch key {
			case model.CriterionMinSuccessRate:
				if metrics.SuccessRate < threshold {
					ok = false
				}
			case model.CriterionMaxExecutionTime:
				if metrics.AvgDurationSec > threshold {
					ok = false
				}
			case model.CriterionRequiredUnits:
				if float64(metrics.SucceededUnits) < threshold {
					ok = false
				}
			default:
				b.logger.Warnf("OBJECTIVE: %s has unknown criterion %q", obj.ID, key)
				ok = false
			}
		}
		if ok {
			met = append(met, obj.ID)
		} else {
			failed = append(failed, obj.ID)
		}
	}
	return met, failed
}

// Recommendations turns metrics and failed objectives into follow-up guidance.
func Recommendations(metrics model.PerformanceMetrics, failedObjectives []string) []string {
	var recs []string
	if metrics.SuccessRate < 0.8 {
		recs = append(recs, fmt.Sprintf("investigate unit failures: success rate %.0f%% below 80%% readiness floor", metrics.SuccessRate*100))
	}
	if metrics.MaxDurationSec > 2*metrics.AvgDurationSec && metrics.TotalUnits > 1 {
		recs = append(recs, "straggler detected: slowest unit took more than twice the average, review target responsiveness")
	}
	if len(failedObjectives) > 0 {
		recs = append(recs, fmt.Sprintf("review %d unmet objective(s) and adjust criteria or force composition", len(failedObjectives)))
	}
	if len(recs) == 0 {
		recs = append(recs, "all objectives met, maintain current force posture")
	}
	return recs
}
