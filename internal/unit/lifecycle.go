package unit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
)

// DefaultSitrepInterval is the minimum spacing between situation reports
// from one operator. Phase transitions faster than this do not flood the
// reporting channel.
const DefaultSitrepInterval = 30 * time.Second

// Operator wraps a Unit and owns its lifecycle state. All status mutation
// goes through the operator; the wrapped Unit only ever sees ExecuteMission.
type Operator struct {
	unit   Unit
	bus    *events.Bus
	logger *logging.Logger

	sitrepInterval time.Duration

	mu         sync.Mutex
	status     model.UnitStatus
	threat     model.ThreatLevel
	missionID  string
	equipment  map[string]string
	lastSitrep time.Time
	history    []model.UnitResult
}

// Snapshot is a read-only view of an operator's current state.
type Snapshot struct {
	ID        string            `json:"unit_id"`
	CallSign  string            `json:"call_sign"`
	Squad     string            `json:"squad"`
	Status    model.UnitStatus  `json:"status"`
	Threat    model.ThreatLevel `json:"threat_level"`
	MissionID string            `json:"mission_id,omitempty"`
	Missions  int               `json:"missions_recorded"`
}

func NewOperator(u Unit, bus *events.Bus, logger *logging.Logger) *Operator {
	return &Operator{
		unit:           u,
		bus:            bus,
		logger:         logger,
		sitrepInterval: DefaultSitrepInterval,
		status:         model.UnitStandby,
		threat:         model.ThreatGreen,
		equipment:      make(map[string]string),
	}
}

// SetSitrepInterval overrides the minimum sitrep spacing. Zero or negative
// disables rate limiting, which is only sensible in tests.
func (o *Operator) SetSitrepInterval(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sitrepInterval = d
}

func (o *Operator) Identity() Identity { return o.unit.Identity() }

func (o *Operator) Capabilities() []string { return o.unit.Capabilities() }

func (o *Operator) Status() model.UnitStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Operator) Threat() model.ThreatLevel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.threat
}

// Snapshot returns the operator's current state for status reporting.
func (o *Operator) Snapshot() Snapshot {
	ident := o.unit.Identity()
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		ID:        ident.ID,
		CallSign:  ident.CallSign,
		Squad:     ident.Squad,
		Status:    o.status,
		Threat:    o.threat,
		MissionID: o.missionID,
		Missions:  len(o.history),
	}
}

// History returns a copy of all recorded mission results.
func (o *Operator) History() []model.UnitResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.UnitResult, len(o.history))
	copy(out, o.history)
	return out
}

// Deploy drives the unit through the full phase sequence for one mission.
// It never returns a raw error: every failure is converted into a result
// carrying a structured incident record.
func (o *Operator) Deploy(ctx context.Context, missionID string, params model.MissionParameters) model.UnitResult {
	start := time.Now()
	ident := o.unit.Identity()

	o.mu.Lock()
	if o.status != model.UnitStandby {
		status := o.status
		o.mu.Unlock()
		res := model.UnitResult{
			UnitID:    ident.ID,
			CallSign:  ident.CallSign,
			Squad:     ident.Squad,
			MissionID: missionID,
			Status:    model.UnitFailed,
			Err:       fmt.Sprintf("unit %s not on standby (status %s)", ident.CallSign, status),
			Elapsed:   time.Since(start),
		}
		return res
	}
	o.missionID = missionID
	o.mu.Unlock()

	o.logger.Infof("DEPLOY: %s starting mission %s", ident.CallSign, missionID)

	payload, err := o.runPhases(ctx, missionID, params)
	elapsed := time.Since(start)

	if err != nil {
		terminal := o.failTerminal(err)
		incident := &model.Incident{
			Location:   fmt.Sprintf("unit %s", ident.CallSign),
			Precedence: model.PriorityFlash,
			Equipment:  "ERROR_RECOVERY",
			Casualties: 1,
			Cause:      err.Error(),
		}
		o.logger.Errorf("MISSION FAILED: %s %s", ident.CallSign, incident)
		res := model.UnitResult{
			UnitID:    ident.ID,
			CallSign:  ident.CallSign,
			Squad:     ident.Squad,
			MissionID: missionID,
			Status:    terminal,
			Err:       err.Error(),
			Incident:  incident,
			Elapsed:   elapsed,
		}
		o.record(res)
		return res
	}

	o.logger.Infof("MISSION COMPLETE: %s finished mission %s in %s", ident.CallSign, missionID, elapsed)
	res := model.UnitResult{
		UnitID:    ident.ID,
		CallSign:  ident.CallSign,
		Squad:     ident.Squad,
		MissionID: missionID,
		Status:    model.UnitComplete,
		Payload:   payload,
		Elapsed:   elapsed,
	}
	o.record(res)
	return res
}

// ForceAbort is the emergency extraction path: the unit's status is forced
// to ABORT regardless of its current phase. In-flight phase work observes
// the abort at its next transition.
func (o *Operator) ForceAbort() {
	ident := o.unit.Identity()
	o.mu.Lock()
	if model.IsUnitTerminal(o.status) && o.status != model.UnitComplete {
		o.mu.Unlock()
		return
	}
	o.status = model.UnitAbort
	o.threat = model.MaxThreat(o.threat, model.ThreatRed)
	missionID := o.missionID
	o.mu.Unlock()

	o.logger.Warnf("EXTRACT: %s forced to abort", ident.CallSign)
	o.publishPhase(ident, missionID, model.UnitAbort)
}

// Reset returns a unit from a terminal status to STANDBY so it can be
// selected for another mission.
func (o *Operator) Reset() error {
	ident := o.unit.Identity()
	o.mu.Lock()
	defer o.mu.Unlock()
	if !model.IsUnitTerminal(o.status) {
		return fmt.Errorf("unit %s cannot reset from non-terminal status %s", ident.CallSign, o.status)
	}
	o.status = model.UnitStandby
	o.threat = model.ThreatGreen
	o.missionID = ""
	o.equipment = make(map[string]string)
	return nil
}

func (o *Operator) runPhases(ctx context.Context, missionID string, params model.MissionParameters) (payload map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in unit %s: %v", o.unit.Identity().CallSign, rec)
		}
	}()

	if err := o.phaseInfil(ctx, missionID, params); err != nil {
		return nil, err
	}
	if err := o.phaseTarget(ctx, missionID, params); err != nil {
		return nil, err
	}
	payload, err = o.phaseAssault(ctx, missionID, params)
	if err != nil {
		return nil, err
	}
	if err := o.phaseConsolidate(ctx, missionID, payload); err != nil {
		return nil, err
	}
	if err := o.phaseExfil(ctx, missionID); err != nil {
		return nil, err
	}
	if err := o.advance(missionID, model.UnitComplete); err != nil {
		return nil, err
	}
	return payload, nil
}

// phaseInfil performs pre-flight checks and marks equipment operational.
func (o *Operator) phaseInfil(ctx context.Context, missionID string, params model.MissionParameters) error {
	if err := o.enterPhase(ctx, missionID, model.UnitInfil, "infiltration underway"); err != nil {
		return err
	}
	o.mu.Lock()
	for _, capability := range o.unit.Capabilities() {
		o.equipment[capability] = "OPERATIONAL"
	}
	o.mu.Unlock()
	return nil
}

// phaseTarget analyzes the target environment and escalates the threat
// level when indicators are present.
func (o *Operator) phaseTarget(ctx context.Context, missionID string, params model.MissionParameters) error {
	if err := o.enterPhase(ctx, missionID, model.UnitTarget, "target acquisition"); err != nil {
		return err
	}
	if indicators, ok := params.Config["threat_indicators"]; ok && hasEntries(indicators) {
		o.escalate(model.ThreatYellow)
		o.logger.Warnf("THREAT: %s elevated to %s on mission %s", o.unit.Identity().CallSign, model.ThreatYellow, missionID)
	}
	return nil
}

// phaseAssault invokes the unit's own mission logic. This is the only
// unit-specific phase.
func (o *Operator) phaseAssault(ctx context.Context, missionID string, params model.MissionParameters) (map[string]any, error) {
	if err := o.enterPhase(ctx, missionID, model.UnitAssault, "executing primary mission"); err != nil {
		return nil, err
	}
	return o.unit.ExecuteMission(ctx, params)
}

// phaseConsolidate secures the payload and runs the effectiveness check.
func (o *Operator) phaseConsolidate(ctx context.Context, missionID string, payload map[string]any) error {
	if err := o.enterPhase(ctx, missionID, model.UnitConsolidate, "securing results"); err != nil {
		return err
	}
	if rate, ok := successRate(payload); ok && rate < 0.8 {
		o.escalate(model.ThreatYellow)
		o.logger.Warnf("ASSESSMENT: %s effectiveness below threshold: %.2f", o.unit.Identity().CallSign, rate)
	}
	return nil
}

// phaseExfil releases mission-scoped state.
func (o *Operator) phaseExfil(ctx context.Context, missionID string) error {
	if err := o.enterPhase(ctx, missionID, model.UnitExfil, "extraction"); err != nil {
		return err
	}
	o.mu.Lock()
	o.equipment = make(map[string]string)
	o.mu.Unlock()
	return nil
}

func (o *Operator) enterPhase(ctx context.Context, missionID string, phase model.UnitStatus, situation string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mission %s interrupted before %s: %w", missionID, phase, err)
	}
	if err := o.advance(missionID, phase); err != nil {
		return err
	}
	o.sitrep(missionID, situation)
	return nil
}

func (o *Operator) advance(missionID string, to model.UnitStatus) error {
	ident := o.unit.Identity()
	o.mu.Lock()
	if err := model.ValidateUnitTransition(o.status, to); err != nil {
		o.mu.Unlock()
		return err
	}
	o.status = to
	o.mu.Unlock()

	o.logger.Debugf("%s: %s mission %s", to, ident.CallSign, missionID)
	o.publishPhase(ident, missionID, to)
	return nil
}

func (o *Operator) publishPhase(ident Identity, missionID string, status model.UnitStatus) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{
		Type:      events.EventUnitPhase,
		UnitID:    ident.ID,
		MissionID: missionID,
		Data: map[string]any{
			"call_sign": ident.CallSign,
			"squad":     ident.Squad,
			"status":    string(status),
		},
	})
}

// sitrep emits a situation report unless one went out within the configured
// minimum interval.
func (o *Operator) sitrep(missionID, situation string) {
	ident := o.unit.Identity()
	now := time.Now()

	o.mu.Lock()
	if o.sitrepInterval > 0 && now.Sub(o.lastSitrep) < o.sitrepInterval {
		o.mu.Unlock()
		return
	}
	o.lastSitrep = now
	status := o.status
	threat := o.threat
	o.mu.Unlock()

	rep := model.Sitrep{
		UnitID:    ident.ID,
		CallSign:  ident.CallSign,
		MissionID: missionID,
		Timestamp: now,
		Status:    status,
		Threat:    threat,
		Priority:  model.PriorityRoutine,
		Situation: situation,
		Progress:  fmt.Sprintf("%s phase", status),
	}
	o.logger.Infof("SITREP: %s %s threat=%s %s", rep.CallSign, rep.Status, rep.Threat, rep.Situation)
	if o.bus != nil {
		o.bus.Publish(events.Event{
			Type:      events.EventSitrep,
			Timestamp: now,
			UnitID:    ident.ID,
			MissionID: missionID,
			Data: map[string]any{
				"call_sign": rep.CallSign,
				"status":    string(rep.Status),
				"threat":    string(rep.Threat),
				"priority":  string(rep.Priority),
				"situation": rep.Situation,
				"progress":  rep.Progress,
			},
		})
	}
}

func (o *Operator) escalate(level model.ThreatLevel) {
	o.mu.Lock()
	o.threat = model.MaxThreat(o.threat, level)
	o.mu.Unlock()
}

// failTerminal resolves the terminal status for a failed deployment. A
// forced abort wins over the default FAILED terminal, and a cancelled
// deadline counts as an abort: the unit was pulled out, it did not fail.
func (o *Operator) failTerminal(cause error) model.UnitStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == model.UnitAbort {
		o.threat = model.MaxThreat(o.threat, model.ThreatRed)
		return model.UnitAbort
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		o.status = model.UnitAbort
		o.threat = model.MaxThreat(o.threat, model.ThreatRed)
		return model.UnitAbort
	}
	o.status = model.UnitFailed
	o.threat = model.ThreatBlack
	return model.UnitFailed
}

func (o *Operator) record(res model.UnitResult) {
	o.mu.Lock()
	o.history = append(o.history, res)
	o.mu.Unlock()
}

func hasEntries(v any) bool {
	switch vv := v.(type) {
	case []string:
		return len(vv) > 0
	case []any:
		return len(vv) > 0
	case bool:
		return vv
	}
	return false
}

func successRate(payload map[string]any) (float64, bool) {
	if payload == nil {
		return 0, false
	}
	switch r := payload["success_rate"].(type) {
	case float64:
		return r, true
	case float32:
		return float64(r), true
	case int:
		return float64(r), true
	}
	return 0, false
}
