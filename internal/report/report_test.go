package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"

	"seadog/internal/logging"
	"seadog/internal/model"
)

func sampleReport() model.SuiteReport {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return model.SuiteReport{
		ExecutionID: "ste_0000000001_deadbeef",
		SuiteType:   model.SuiteReconnaissance,
		StartTime:   now,
		EndTime:     now.Add(time.Minute),
		Metrics:     model.SuiteMetrics{TotalScenarios: 1, SuccessfulScenarios: 1, SuccessRate: 1.0},
		Summary:     model.SuiteSummary{Verdict: model.VerdictPassed, Quality: model.QualityExcellent},
	}
}

func TestFileSinkJSON(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, sink.PersistSuite(sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.True(t, strings.HasPrefix(name, "suite_reconnaissance_"), "got %s", name)
	assert.True(t, strings.HasSuffix(name, ".json"))

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	var decoded model.SuiteReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ste_0000000001_deadbeef", decoded.ExecutionID)
	assert.Equal(t, model.VerdictPassed, decoded.Summary.Verdict)
}

func TestFileSinkYAML(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, FormatYAML)
	require.NoError(t, err)

	require.NoError(t, sink.PersistScenario(model.ScenarioResult{
		ScenarioID: "scn_0000000002_deadbeef",
		Type:       model.ScenarioStressTest,
		Status:     model.ScenarioCompleted,
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "scenario_scn_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var decoded model.ScenarioResult
	require.NoError(t, yamlv3.Unmarshal(data, &decoded))
	assert.Equal(t, model.ScenarioCompleted, decoded.Status)
}

func TestFileSinkLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, FormatJSON)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.PersistScenario(model.ScenarioResult{ScenarioID: "scn_x"}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".seadog-tmp-"), "temp file %s left behind", e.Name())
	}
}

func TestNewFileSinkRejectsUnknownFormat(t *testing.T) {
	_, err := NewFileSink(t.TempDir(), "xml")
	assert.Error(t, err)
}

type failingSink struct{ err error }

func (f failingSink) PersistSuite(model.SuiteReport) error       { return f.err }
func (f failingSink) PersistScenario(model.ScenarioResult) error { return f.err }

func TestMultiSinkKeepsGoingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileSink(dir, FormatJSON)
	require.NoError(t, err)

	sinks := MultiSink{failingSink{err: errors.New("dashboard down")}, file}
	err = sinks.PersistSuite(sampleReport())
	assert.ErrorContains(t, err, "dashboard down")

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "later sinks must still run")
}

func TestDashboardSinkPushes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	got := make(chan dashboardFrame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var frame dashboardFrame
		if err := conn.ReadJSON(&frame); err == nil {
			got <- frame
		}
	}))
	defer srv.Close()

	sink := NewDashboardSink("ws"+strings.TrimPrefix(srv.URL, "http"), logging.NewNop())
	defer sink.Close()

	require.NoError(t, sink.PersistSuite(sampleReport()))

	select {
	case frame := <-got:
		assert.Equal(t, "suite", frame.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard never received the frame")
	}
}

func TestDashboardSinkDialFailure(t *testing.T) {
	sink := NewDashboardSink("ws://127.0.0.1:1/ws", logging.NewNop())
	err := sink.PersistSuite(sampleReport())
	assert.Error(t, err)
}

func TestWatcherAnnouncesNewReportsOnce(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := w.Watch(ctx)
	require.NoError(t, err)

	path := filepath.Join(dir, "suite_reconnaissance_20260314T092653Z.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	select {
	case got := <-out:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("new report never announced")
	}

	// Unrelated and temp files stay quiet.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seadog-tmp-123"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case got := <-out:
		t.Fatalf("unexpected announcement %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherAnnouncesPreexistingReports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario_scn_1_20260314T092653Z.yaml")
	require.NoError(t, os.WriteFile(path, []byte("status: COMPLETED"), 0o644))

	w := NewWatcher(dir, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := w.Watch(ctx)
	require.NoError(t, err)

	select {
	case got := <-out:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("pre-existing report never announced")
	}
}

type captureSink struct {
	mu        sync.Mutex
	suites    []model.SuiteReport
	scenarios []model.ScenarioResult
}

func (c *captureSink) PersistSuite(r model.SuiteReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suites = append(c.suites, r)
	return nil
}

func (c *captureSink) PersistScenario(r model.ScenarioResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenarios = append(c.scenarios, r)
	return nil
}

func TestForwardShipsLandedReports(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, sink.PersistSuite(sampleReport()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	capture := &captureSink{}
	w := NewWatcher(dir, logging.NewNop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Forward(ctx, capture)
	}()

	require.Eventually(t, func() bool {
		capture.mu.Lock()
		defer capture.mu.Unlock()
		return len(capture.suites) == 1
	}, 5*time.Second, 20*time.Millisecond)

	capture.mu.Lock()
	assert.Equal(t, "ste_0000000001_deadbeef", capture.suites[0].ExecutionID)
	capture.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop on cancel")
	}
}

func TestIsReportFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"reports/suite_reconnaissance_x.json", true},
		{"reports/scenario_scn_1_x.yaml", true},
		{"reports/.seadog-tmp-42", false},
		{"reports/suite_reconnaissance_x.txt", false},
		{"reports/readme.json", false},
	}
	for _, tt := range tests {
		if got := isReportFile(tt.path); got != tt.want {
			t.Errorf("isReportFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
