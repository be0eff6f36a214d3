package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/registry"
	"seadog/internal/unit"
)

type stubUnit struct {
	id       string
	callSign string
	squad    string
	caps     []string
	execute  func(ctx context.Context, params model.MissionParameters) (map[string]any, error)
}

func (s *stubUnit) Identity() unit.Identity {
	return unit.Identity{ID: s.id, CallSign: s.callSign, Squad: s.squad}
}

func (s *stubUnit) Capabilities() []string { return s.caps }

func (s *stubUnit) ExecuteMission(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
	if s.execute != nil {
		return s.execute(ctx, params)
	}
	return map[string]any{"success_rate": 1.0}, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	o, err := New(reg, events.NewBus(64), logging.NewNop())
	require.NoError(t, err)
	return o, reg
}

func addStub(t *testing.T, reg *registry.Registry, id, squad string, caps []string, execute func(ctx context.Context, params model.MissionParameters) (map[string]any, error)) *unit.Operator {
	t.Helper()
	op := unit.NewOperator(&stubUnit{
		id:       id,
		callSign: "cs-" + id,
		squad:    squad,
		caps:     caps,
		execute:  execute,
	}, nil, logging.NewNop())
	op.SetSitrepInterval(time.Hour)
	reg.Register(op)
	return op
}

func standardTeam(t *testing.T, reg *registry.Registry) {
	t.Helper()
	addStub(t, reg, "alpha-1", "alpha", []string{"command"}, nil)
	addStub(t, reg, "bravo-1", "bravo", []string{"direct_action"}, nil)
	addStub(t, reg, "bravo-2", "bravo", []string{"direct_action"}, nil)
	addStub(t, reg, "charlie-1", "charlie", []string{"recon"}, nil)
	addStub(t, reg, "delta-1", "delta", []string{"overwatch"}, nil)
}

func TestExecuteAllUnitsSucceed(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:      model.MissionDirectAction,
		TimeLimit: 5 * time.Second,
	}, []string{"alpha-1", "bravo-1", "bravo-2"})

	assert.True(t, result.OverallSuccess)
	assert.Equal(t, 3, result.TotalUnits)
	assert.Equal(t, 3, result.SucceededUnits)
	assert.Equal(t, 0, result.FailedUnits)
	assert.Len(t, result.Units, 3)
	assert.Equal(t, model.FailureNone, result.Failure)
	for _, r := range result.Units {
		assert.Equal(t, model.UnitComplete, r.Status)
	}
}

func TestExecuteOneUnitFails(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	addStub(t, reg, "alpha-1", "alpha", []string{"command"}, nil)
	addStub(t, reg, "bravo-1", "bravo", []string{"direct_action"},
		func(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
			return nil, errors.New("target hardened")
		})

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:      model.MissionDirectAction,
		TimeLimit: 5 * time.Second,
	}, []string{"alpha-1", "bravo-1"})

	assert.False(t, result.OverallSuccess)
	assert.Equal(t, 2, result.TotalUnits)
	assert.Equal(t, 1, result.SucceededUnits)
	assert.Equal(t, 1, result.FailedUnits)
	assert.Equal(t, model.FailureUnitFailure, result.Failure)
}

func TestValidationRejectsUnknownUnit(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type: model.MissionDirectAction,
	}, []string{"alpha-1", "ghost-9"})

	assert.Equal(t, model.FailureSelectionInvalid, result.Failure)
	assert.Contains(t, result.Err, "ghost-9")
	assert.Zero(t, result.TotalUnits)
}

func TestValidationRejectsDuplicateSelection(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type: model.MissionDirectAction,
	}, []string{"alpha-1", "bravo-1", "bravo-1"})

	assert.Equal(t, model.FailureSelectionInvalid, result.Failure)
	assert.Contains(t, result.Err, "selected twice")
}

func TestValidationRequiresCommandUnit(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type: model.MissionDirectAction,
	}, []string{"bravo-1", "bravo-2"})

	assert.Equal(t, model.FailureSelectionInvalid, result.Failure)
	assert.Contains(t, result.Err, "command group")
}

func TestValidationRequiresCapabilities(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:                 model.MissionDirectAction,
		RequiredCapabilities: []string{"direct_action", "underwater_demolition"},
	}, []string{"alpha-1", "bravo-1"})

	assert.Equal(t, model.FailureSelectionInvalid, result.Failure)
	assert.Contains(t, result.Err, "underwater_demolition")
}

func TestValidationFailureDeploysNothing(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type: model.MissionDirectAction,
	}, []string{"alpha-1", "bravo-1", "ghost-9"})

	require.Equal(t, model.FailureSelectionInvalid, result.Failure)
	for _, op := range reg.All() {
		assert.Equal(t, model.UnitStandby, op.Status(), "unit %s must remain on standby", op.Identity().ID)
	}
	assert.Empty(t, mustGet(t, reg, "alpha-1").History())
}

func mustGet(t *testing.T, reg *registry.Registry, id string) *unit.Operator {
	t.Helper()
	o, ok := reg.Get(id)
	require.True(t, ok)
	return o
}

func TestValidationRejectsBusyUnit(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	release := make(chan struct{})
	addStub(t, reg, "bravo-3", "bravo", []string{"direct_action"},
		func(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return map[string]any{"success_rate": 1.0}, nil
		})

	firstDone := make(chan model.MissionResult, 1)
	go func() {
		firstDone <- o.Execute(context.Background(), model.MissionParameters{
			Type:      model.MissionDirectAction,
			TimeLimit: 5 * time.Second,
		}, []string{"alpha-1", "bravo-3"})
	}()

	require.Eventually(t, func() bool {
		return mustGet(t, reg, "bravo-3").Status() != model.UnitStandby
	}, 2*time.Second, 10*time.Millisecond)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type: model.MissionDirectAction,
	}, []string{"alpha-1", "bravo-3"})
	assert.Equal(t, model.FailureSelectionInvalid, result.Failure)
	assert.Contains(t, result.Err, "not available")

	close(release)
	<-firstDone
}

func TestTimeoutAbortsEveryUnit(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	hang := func(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	addStub(t, reg, "alpha-1", "alpha", []string{"command"}, hang)
	addStub(t, reg, "bravo-1", "bravo", []string{"direct_action"}, hang)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:      model.MissionDirectAction,
		TimeLimit: 100 * time.Millisecond,
	}, []string{"alpha-1", "bravo-1"})

	assert.False(t, result.OverallSuccess)
	assert.Equal(t, model.FailureMissionTimeout, result.Failure)
	assert.Contains(t, result.Err, "timed out")
	require.Len(t, result.Units, 2)
	for _, r := range result.Units {
		assert.Equal(t, model.UnitAbort, r.Status)
	}
}

func TestStragglerCannotMutateSettledResult(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	release := make(chan struct{})
	addStub(t, reg, "alpha-1", "alpha", []string{"command"}, nil)
	// Ignores the mission context entirely and outlives the extraction grace.
	addStub(t, reg, "bravo-1", "bravo", []string{"direct_action"},
		func(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
			<-release
			return map[string]any{"success_rate": 1.0}, nil
		})

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:      model.MissionDirectAction,
		TimeLimit: 100 * time.Millisecond,
	}, []string{"alpha-1", "bravo-1"})

	assert.Equal(t, model.FailureMissionTimeout, result.Failure)
	require.Len(t, result.Units, 2)
	var straggler model.UnitResult
	for _, r := range result.Units {
		if r.UnitID == "bravo-1" {
			straggler = r
		}
	}
	require.Equal(t, model.UnitAbort, straggler.Status)
	require.Contains(t, straggler.Err, "emergency extraction")

	// Let the straggler settle after the mission already aggregated. The
	// settled result must keep its synthesized abort.
	close(release)
	require.Eventually(t, func() bool {
		op, ok := reg.Get("bravo-1")
		return ok && model.IsUnitTerminal(op.Status())
	}, 2*time.Second, 10*time.Millisecond)

	for _, r := range result.Units {
		if r.UnitID == "bravo-1" {
			assert.Equal(t, model.UnitAbort, r.Status)
			assert.Contains(t, r.Err, "emergency extraction")
		}
	}
}

func TestAutoSelectionNeverExceedsRoster(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	// Deliberately thin roster: no delta, single bravo.
	addStub(t, reg, "alpha-1", "alpha", []string{"command"}, nil)
	addStub(t, reg, "bravo-1", "bravo", []string{"direct_action"}, nil)

	for _, mt := range []model.MissionType{
		model.MissionDirectAction,
		model.MissionSpecialRecon,
		model.MissionUnconventionalWarfare,
		model.MissionInternalDefense,
	} {
		ids := o.autoSelect(mt)
		seen := make(map[string]bool)
		for _, id := range ids {
			assert.False(t, seen[id], "type %s selected %s twice", mt, id)
			seen[id] = true
			_, ok := reg.Get(id)
			assert.True(t, ok, "type %s selected unregistered %s", mt, id)
		}
	}
}

func TestAutoSelectionEmptyRegistryFailsCleanly(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type: model.MissionDirectAction,
	}, nil)

	assert.Equal(t, model.FailureSelectionInvalid, result.Failure)
	assert.False(t, result.OverallSuccess)
}

func TestMissionStatusSettled(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		MissionID: "msn_0000000001_deadbeef",
		Type:      model.MissionDirectAction,
		TimeLimit: 5 * time.Second,
	}, []string{"alpha-1", "bravo-1"})
	require.True(t, result.OverallSuccess)

	info, ok := o.MissionStatus("msn_0000000001_deadbeef")
	require.True(t, ok)
	assert.Equal(t, "SETTLED", info.State)
	require.NotNil(t, info.Result)
	assert.Equal(t, 2, info.Result.TotalUnits)

	_, ok = o.MissionStatus("msn_0000000002_deadbeef")
	assert.False(t, ok)
}

func TestMissionStatusActive(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	addStub(t, reg, "alpha-1", "alpha", []string{"command"}, nil)
	release := make(chan struct{})
	addStub(t, reg, "bravo-1", "bravo", []string{"direct_action"},
		func(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return map[string]any{"success_rate": 1.0}, nil
		})

	done := make(chan model.MissionResult, 1)
	go func() {
		done <- o.Execute(context.Background(), model.MissionParameters{
			MissionID: "msn_0000000007_deadbeef",
			Type:      model.MissionDirectAction,
			TimeLimit: 5 * time.Second,
		}, []string{"alpha-1", "bravo-1"})
	}()

	require.Eventually(t, func() bool {
		info, ok := o.MissionStatus("msn_0000000007_deadbeef")
		return ok && info.State == "ACTIVE" && len(info.Units) == 2
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	result := <-done
	assert.True(t, result.OverallSuccess)

	info, ok := o.MissionStatus("msn_0000000007_deadbeef")
	require.True(t, ok)
	assert.Equal(t, "SETTLED", info.State)
}

func TestOperationalStatus(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	standardTeam(t, reg)

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:      model.MissionSpecialRecon,
		TimeLimit: 5 * time.Second,
	}, []string{"alpha-1", "charlie-1"})
	require.True(t, result.OverallSuccess)

	status := o.Status()
	assert.Equal(t, 0, status.ActiveMissions)
	assert.Equal(t, 1, status.SettledResults)
	assert.Equal(t, 5, status.UnitCounts["total"])
	assert.Equal(t, 2, status.GroupSizes["bravo"])
}

func TestMissionCompletedEvent(t *testing.T) {
	reg := registry.New()
	bus := events.NewBus(64)
	o, err := New(reg, bus, logging.NewNop())
	require.NoError(t, err)
	standardTeam(t, reg)

	got := make(chan events.Event, 1)
	defer bus.Subscribe(events.EventMissionCompleted, func(e events.Event) {
		got <- e
	})()

	result := o.Execute(context.Background(), model.MissionParameters{
		Type:      model.MissionDirectAction,
		TimeLimit: 5 * time.Second,
	}, []string{"alpha-1", "bravo-1"})

	select {
	case e := <-got:
		assert.Equal(t, result.MissionID, e.MissionID)
		assert.Equal(t, true, e.Data["overall_success"])
	case <-time.After(2 * time.Second):
		t.Fatal("mission completion event not delivered")
	}
}

func TestConcurrentMissionsIsolated(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	for i := 0; i < 4; i++ {
		addStub(t, reg, fmt.Sprintf("alpha-%d", i), "alpha", []string{"command"}, nil)
		addStub(t, reg, fmt.Sprintf("bravo-%d", i), "bravo", []string{"direct_action"}, nil)
	}

	results := make(chan model.MissionResult, 4)
	for i := 0; i < 4; i++ {
		go func(i int) {
			results <- o.Execute(context.Background(), model.MissionParameters{
				Type:      model.MissionDirectAction,
				TimeLimit: 5 * time.Second,
			}, []string{fmt.Sprintf("alpha-%d", i), fmt.Sprintf("bravo-%d", i)})
		}(i)
	}

	for i := 0; i < 4; i++ {
		result := <-results
		assert.True(t, result.OverallSuccess)
		assert.Equal(t, 2, result.TotalUnits)
	}
}
