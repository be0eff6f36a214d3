// Package report persists suite and scenario results: atomically to disk,
// or pushed to a live dashboard over a websocket.
package report

import "seadog/internal/model"

// Sink receives finished reports. Implementations must tolerate being called
// from the goroutine that finished the run.
type Sink interface {
	PersistSuite(report model.SuiteReport) error
	PersistScenario(result model.ScenarioResult) error
}

// MultiSink fans a report out to every sink, keeping the first error.
type MultiSink []Sink

func (m MultiSink) PersistSuite(report model.SuiteReport) error {
	var firstErr error
	for _, s := range m {
		if err := s.PersistSuite(report); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) PersistScenario(result model.ScenarioResult) error {
	var firstErr error
	for _, s := range m {
		if err := s.PersistScenario(result); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
