package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"seadog/internal/logging"
	"seadog/internal/model"
)

const (
	dashboardDialTimeout = 5 * time.Second
	dashboardWriteWait   = 10 * time.Second
)

// dashboardFrame is the wire envelope pushed to the dashboard.
type dashboardFrame struct {
	Kind      string    `json:"kind"` // "suite" or "scenario"
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DashboardSink pushes finished reports to a live dashboard over a
// websocket. The connection is dialed lazily and re-dialed on the next push
// after a write failure, so a dashboard outage never blocks a run.
type DashboardSink struct {
	url    string
	logger *logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewDashboardSink(url string, logger *logging.Logger) *DashboardSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DashboardSink{url: url, logger: logger}
}

func (s *DashboardSink) PersistSuite(report model.SuiteReport) error {
	return s.push(dashboardFrame{Kind: "suite", Timestamp: time.Now().UTC(), Payload: report})
}

func (s *DashboardSink) PersistScenario(result model.ScenarioResult) error {
	return s.push(dashboardFrame{Kind: "scenario", Timestamp: time.Now().UTC(), Payload: result})
}

func (s *DashboardSink) push(frame dashboardFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.dialLocked(); err != nil {
			return err
		}
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(dashboardWriteWait)); err != nil {
		s.dropLocked()
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(frame); err != nil {
		s.dropLocked()
		return fmt.Errorf("push %s frame: %w", frame.Kind, err)
	}
	return nil
}

func (s *DashboardSink) dialLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), dashboardDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial dashboard %s: %w", s.url, err)
	}
	s.logger.Infof("DASHBOARD: connected to %s", s.url)
	s.conn = conn
	return nil
}

func (s *DashboardSink) dropLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *DashboardSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(dashboardWriteWait))
	err := s.conn.Close()
	s.conn = nil
	return err
}
