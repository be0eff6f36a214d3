// Package events provides the non-blocking pub/sub channel the engine uses
// for sitreps and lifecycle notifications, plus an append-only JSONL log.
package events

import (
	"sync"
	"time"
)

// EventType identifies the kind of event on the bus.
type EventType string

const (
	// EventUnitPhase is published on every unit lifecycle phase change.
	EventUnitPhase EventType = "unit_phase"
	// EventSitrep is published when a unit emits a situation report.
	EventSitrep EventType = "sitrep"
	// EventMissionCompleted is published when a mission result settles.
	EventMissionCompleted EventType = "mission_completed"
	// EventScenarioCompleted is published when a scenario produces its result.
	EventScenarioCompleted EventType = "scenario_completed"
	// EventSuiteCompleted is published when a suite report is assembled.
	EventSuiteCompleted EventType = "suite_completed"
)

// Event is one record on the bus. IDs are filled where applicable.
type Event struct {
	Type       EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	UnitID     string         `json:"unit_id,omitempty"`
	MissionID  string         `json:"mission_id,omitempty"`
	ScenarioID string         `json:"scenario_id,omitempty"`
	SuiteID    string         `json:"suite_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Subscriber receives events asynchronously.
type Subscriber func(Event)

// Bus fans events out to subscribers without ever blocking a publisher.
// Delivery is asynchronous through a buffered channel per subscriber; when a
// subscriber falls behind, events for it are dropped.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. fn runs on its own goroutine; a panic in fn is swallowed so it
// cannot take the bus down.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() {
					_ = recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers e to every subscriber of e.Type. Slow subscribers miss
// the event rather than stalling the publisher.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	for _, ch := range b.subscribers[e.Type] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
