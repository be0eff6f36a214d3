package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxLogSize caps one sitrep log file at 100MB before rotation.
	DefaultMaxLogSize = 100 * 1024 * 1024
	logFileExtension  = ".jsonl"
)

// SitrepLog is an append-only JSONL log with size-based rotation. It is the
// durable trail behind the in-memory bus: subscribe it to the sitrep and
// phase-transition streams and every event it sees lands on disk.
type SitrepLog struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	logPath     string
	rotations   int
}

// NewSitrepLog opens (or creates) the log at logPath. maxSize <= 0 selects
// the default cap.
func NewSitrepLog(logPath string, maxSize int64) (*SitrepLog, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &SitrepLog{
		logPath: logPath,
		maxSize: maxSize,
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SitrepLog) open() error {
	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open sitrep log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat sitrep log: %w", err)
	}
	l.file = f
	l.currentSize = info.Size()
	return nil
}

// Record appends one event as a JSON line, rotating first if the file is at
// its size cap.
func (l *SitrepLog) Record(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	if l.currentSize+int64(len(line)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	n, err := l.file.Write(line)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	l.currentSize += int64(n)
	return nil
}

// Attach subscribes the log to the given event types on bus and returns a
// function that detaches all subscriptions.
func (l *SitrepLog) Attach(bus *Bus, types ...EventType) func() {
	var unsubs []func()
	for _, t := range types {
		unsubs = append(unsubs, bus.Subscribe(t, func(e Event) {
			_ = l.Record(e)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (l *SitrepLog) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close for rotation: %w", err)
	}
	l.rotations++
	rotated := fmt.Sprintf("%s.%d%s",
		l.logPath[:len(l.logPath)-len(logFileExtension)], l.rotations, logFileExtension)
	if filepath.Ext(l.logPath) != logFileExtension {
		rotated = fmt.Sprintf("%s.%d", l.logPath, l.rotations)
	}
	if err := os.Rename(l.logPath, rotated); err != nil {
		return fmt.Errorf("rotate sitrep log: %w", err)
	}
	return l.open()
}

// Close flushes and closes the underlying file.
func (l *SitrepLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
