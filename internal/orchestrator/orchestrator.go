// Package orchestrator runs missions: it selects and validates a unit team,
// deploys it concurrently under one deadline, aggregates the outcomes, and
// performs emergency extraction when the deadline elapses.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/registry"
	"seadog/internal/unit"
)

const (
	// DefaultTimeLimit bounds missions whose parameters carry no limit.
	DefaultTimeLimit = 5 * time.Minute
	// extractionGrace is how long the orchestrator waits for cancelled
	// units to settle before synthesizing their abort outcomes.
	extractionGrace = time.Second
	// historySize bounds the retained mission results.
	historySize = 128
)

type Orchestrator struct {
	registry *registry.Registry
	bus      *events.Bus
	logger   *logging.Logger
	plan     SelectionPlan
	history  *lru.Cache[string, model.MissionResult]

	mu     sync.Mutex
	active map[string][]string // mission id → selected unit ids
}

// MissionStatusInfo is a point-in-time view of one mission.
type MissionStatusInfo struct {
	MissionID string               `json:"mission_id"`
	State     string               `json:"state"` // "ACTIVE" or "SETTLED"
	Units     []unit.Snapshot      `json:"units,omitempty"`
	Result    *model.MissionResult `json:"result,omitempty"`
}

// OperationalStatus summarizes the orchestrator and its registry.
type OperationalStatus struct {
	Timestamp      time.Time      `json:"timestamp"`
	UnitCounts     map[string]int `json:"unit_counts"`
	ActiveMissions int            `json:"active_missions"`
	SettledResults int            `json:"settled_results"`
	GroupSizes     map[string]int `json:"group_sizes"`
}

func New(reg *registry.Registry, bus *events.Bus, logger *logging.Logger) (*Orchestrator, error) {
	hist, err := lru.New[string, model.MissionResult](historySize)
	if err != nil {
		return nil, fmt.Errorf("create mission history: %w", err)
	}
	return &Orchestrator{
		registry: reg,
		bus:      bus,
		logger:   logger,
		plan:     DefaultSelectionPlan(),
		history:  hist,
		active:   make(map[string][]string),
	}, nil
}

// SetSelectionPlan replaces the auto-selection mapping. Call before any
// concurrent execution begins.
func (o *Orchestrator) SetSelectionPlan(p SelectionPlan) {
	o.plan = p
}

// Execute runs one mission. The returned result is always well-formed: a
// validation failure, a timeout, and per-unit failures all surface as data,
// never as a raw error.
func (o *Orchestrator) Execute(ctx context.Context, params model.MissionParameters, unitIDs []string) model.MissionResult {
	start := time.Now()

	missionID := params.MissionID
	if missionID == "" {
		if id, err := model.GenerateID(model.IDTypeMission); err == nil {
			missionID = id
		} else {
			missionID = fmt.Sprintf("msn_%d", start.UnixNano())
		}
	}

	if len(unitIDs) == 0 {
		unitIDs = o.autoSelect(params.Type)
		o.logger.Infof("AUTO-SELECT: mission %s type=%s team=%v", missionID, params.Type, unitIDs)
	}

	if err := o.validateSelection(unitIDs, params); err != nil {
		o.logger.Errorf("VALIDATION: mission %s rejected: %v", missionID, err)
		return o.settle(model.MissionResult{
			MissionID: missionID,
			Type:      params.Type,
			Failure:   model.FailureSelectionInvalid,
			Err:       err.Error(),
			Elapsed:   time.Since(start),
		})
	}

	ops := make([]*unit.Operator, len(unitIDs))
	for i, id := range unitIDs {
		ops[i], _ = o.registry.Get(id)
	}

	o.mu.Lock()
	o.active[missionID] = unitIDs
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, missionID)
		o.mu.Unlock()
	}()

	timeLimit := params.TimeLimit
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	o.logger.Infof("DEPLOY: mission %s launching %d units, limit %s", missionID, len(ops), timeLimit)
	results, timedOut := o.deploy(ctx, missionID, params, ops, timeLimit)

	result := aggregate(missionID, params.Type, results)
	result.Elapsed = time.Since(start)
	if timedOut {
		terr := &TimeoutError{MissionID: missionID, Limit: timeLimit}
		result.Failure = model.FailureMissionTimeout
		result.Err = terr.Error()
		result.OverallSuccess = false
		o.logger.Errorf("TIMEOUT: %s", terr)
	}

	return o.settle(result)
}

// deploy fans the team out concurrently and fans results back in by
// original index. On deadline expiry every unit is force-aborted and units
// that never settled get synthesized abort outcomes.
func (o *Orchestrator) deploy(ctx context.Context, missionID string, params model.MissionParameters, ops []*unit.Operator, timeLimit time.Duration) ([]model.UnitResult, bool) {
	dctx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	results := make([]model.UnitResult, len(ops))
	settled := make([]bool, len(ops))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, op := range ops {
		wg.Add(1)
		go func(i int, op *unit.Operator) {
			defer wg.Done()
			res := op.Deploy(dctx, missionID, params)
			mu.Lock()
			results[i] = res
			settled[i] = true
			mu.Unlock()
		}(i, op)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	timedOut := false
	select {
	case <-allDone:
	case <-dctx.Done():
		timedOut = errors.Is(dctx.Err(), context.DeadlineExceeded)
		o.emergencyExtraction(ops)
		select {
		case <-allDone:
		case <-time.After(extractionGrace):
		}
	}

	// Stragglers may still be writing into results after the grace period.
	// Return a snapshot taken under the lock so a late settle cannot mutate
	// the slice the caller aggregates.
	mu.Lock()
	defer mu.Unlock()
	out := make([]model.UnitResult, len(ops))
	copy(out, results)
	for i, ok := range settled {
		if ok {
			continue
		}
		ident := ops[i].Identity()
		out[i] = model.UnitResult{
			UnitID:    ident.ID,
			CallSign:  ident.CallSign,
			Squad:     ident.Squad,
			MissionID: missionID,
			Status:    model.UnitAbort,
			Err:       fmt.Sprintf("mission %s timed out: emergency extraction", missionID),
			Elapsed:   timeLimit,
		}
	}
	return out, timedOut
}

// emergencyExtraction forces every selected unit to ABORT.
func (o *Orchestrator) emergencyExtraction(ops []*unit.Operator) {
	o.logger.Warnf("EXTRACT: emergency extraction for %d units", len(ops))
	for _, op := range ops {
		op.ForceAbort()
	}
}

// validateSelection enforces pre-flight checks. Any violation fails the
// mission before anything deploys.
func (o *Orchestrator) validateSelection(unitIDs []string, params model.MissionParameters) error {
	if len(unitIDs) == 0 {
		return &SelectionError{Reason: "no units selected"}
	}

	seen := make(map[string]bool, len(unitIDs))
	commandPresent := false
	for _, id := range unitIDs {
		if seen[id] {
			return &SelectionError{Reason: fmt.Sprintf("unit %s selected twice", id)}
		}
		seen[id] = true

		op, ok := o.registry.Get(id)
		if !ok {
			return &SelectionError{Reason: fmt.Sprintf("unit %s not registered", id)}
		}
		if status := op.Status(); status != model.UnitStandby {
			return &SelectionError{Reason: fmt.Sprintf("unit %s not available (status %s)", id, status)}
		}
		if op.Identity().Squad == o.plan.CommandGroup {
			commandPresent = true
		}
	}

	if !commandPresent {
		return &SelectionError{Reason: fmt.Sprintf("no unit from command group %q selected", o.plan.CommandGroup)}
	}

	available := o.registry.CapabilityUnion(unitIDs)
	var missing []string
	for _, c := range params.RequiredCapabilities {
		if !available[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SelectionError{Reason: "missing required capabilities: " + strings.Join(missing, ", ")}
	}
	return nil
}

func aggregate(missionID string, missionType model.MissionType, results []model.UnitResult) model.MissionResult {
	out := model.MissionResult{
		MissionID:      missionID,
		Type:           missionType,
		Units:          results,
		TotalUnits:     len(results),
		OverallSuccess: true,
	}
	for _, r := range results {
		if r.Success() {
			out.SucceededUnits++
		} else {
			out.FailedUnits++
			out.OverallSuccess = false
		}
	}
	if len(results) == 0 {
		out.OverallSuccess = false
	}
	if !out.OverallSuccess {
		out.Failure = model.FailureUnitFailure
		out.Err = fmt.Sprintf("%d of %d units failed", out.FailedUnits, out.TotalUnits)
	}
	return out
}

// settle records the result, announces it, and returns it.
func (o *Orchestrator) settle(result model.MissionResult) model.MissionResult {
	o.history.Add(result.MissionID, result)
	if o.bus != nil {
		o.bus.Publish(events.Event{
			Type:      events.EventMissionCompleted,
			MissionID: result.MissionID,
			Data: map[string]any{
				"overall_success": result.OverallSuccess,
				"total_units":     result.TotalUnits,
				"failed_units":    result.FailedUnits,
				"failure_code":    string(result.Failure),
			},
		})
	}
	return result
}

// MissionStatus reports an active mission's unit snapshots or a settled
// mission's recorded result.
func (o *Orchestrator) MissionStatus(missionID string) (MissionStatusInfo, bool) {
	o.mu.Lock()
	unitIDs, isActive := o.active[missionID]
	o.mu.Unlock()

	if isActive {
		info := MissionStatusInfo{MissionID: missionID, State: "ACTIVE"}
		for _, id := range unitIDs {
			if op, ok := o.registry.Get(id); ok {
				info.Units = append(info.Units, op.Snapshot())
			}
		}
		return info, true
	}

	if result, ok := o.history.Get(missionID); ok {
		return MissionStatusInfo{MissionID: missionID, State: "SETTLED", Result: &result}, true
	}
	return MissionStatusInfo{}, false
}

// Status summarizes units, active missions, and retained results.
func (o *Orchestrator) Status() OperationalStatus {
	o.mu.Lock()
	activeCount := len(o.active)
	o.mu.Unlock()

	groups := make(map[string]int)
	for _, g := range o.registry.Groups() {
		groups[g] = len(o.registry.ByGroup(g))
	}

	return OperationalStatus{
		Timestamp:      time.Now().UTC(),
		UnitCounts:     o.registry.StatusCounts(),
		ActiveMissions: activeCount,
		SettledResults: o.history.Len(),
		GroupSizes:     groups,
	}
}
