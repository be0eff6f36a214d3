package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	received := make(chan Event, 1)
	bus.Subscribe(EventSitrep, func(e Event) {
		received <- e
	})

	bus.Publish(Event{Type: EventSitrep, UnitID: "unit-1", MissionID: "msn-1"})

	select {
	case e := <-received:
		if e.UnitID != "unit-1" || e.MissionID != "msn-1" {
			t.Errorf("unexpected event: %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp not stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
}

func TestBusDoesNotCrossEventTypes(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	received := make(chan Event, 1)
	bus.Subscribe(EventMissionCompleted, func(e Event) {
		received <- e
	})

	bus.Publish(Event{Type: EventSitrep, UnitID: "unit-1"})

	select {
	case e := <-received:
		t.Fatalf("subscriber got event of wrong type: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe(EventUnitPhase, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(Event{Type: EventUnitPhase})
	time.Sleep(50 * time.Millisecond)
	unsub()
	bus.Publish(Event{Type: EventUnitPhase})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestBusSubscriberPanicDoesNotPropagate(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	received := make(chan struct{}, 2)
	bus.Subscribe(EventSitrep, func(e Event) {
		received <- struct{}{}
		panic("subscriber boom")
	})

	bus.Publish(Event{Type: EventSitrep})
	bus.Publish(Event{Type: EventSitrep})

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("subscriber stopped after panic")
		}
	}
}

func TestSitrepLogRecordsJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitrep.jsonl")

	l, err := NewSitrepLog(path, 0)
	if err != nil {
		t.Fatalf("NewSitrepLog error: %v", err)
	}
	defer l.Close()

	if err := l.Record(Event{Type: EventSitrep, UnitID: "u1"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := l.Record(Event{Type: EventUnitPhase, UnitID: "u2"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad JSON line: %v", err)
		}
		lines = append(lines, e)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].UnitID != "u1" || lines[1].UnitID != "u2" {
		t.Errorf("unexpected events: %+v", lines)
	}
}

func TestSitrepLogRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitrep.jsonl")

	// Tiny cap so the second record forces a rotation.
	l, err := NewSitrepLog(path, 64)
	if err != nil {
		t.Fatalf("NewSitrepLog error: %v", err)
	}
	defer l.Close()

	for i := 0; i < 3; i++ {
		if err := l.Record(Event{Type: EventSitrep, UnitID: "unit-with-a-long-id"}); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected rotated files, found %d entries", len(entries))
	}
}

func TestSitrepLogAttach(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitrep.jsonl")

	l, err := NewSitrepLog(path, 0)
	if err != nil {
		t.Fatalf("NewSitrepLog error: %v", err)
	}
	defer l.Close()

	bus := NewBus(10)
	defer bus.Close()
	detach := l.Attach(bus, EventSitrep)
	defer detach()

	bus.Publish(Event{Type: EventSitrep, UnitID: "u1"})
	time.Sleep(100 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Error("attached log recorded nothing")
	}
}
