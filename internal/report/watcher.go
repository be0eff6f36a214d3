package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	yamlv3 "gopkg.in/yaml.v3"

	"seadog/internal/logging"
	"seadog/internal/model"
)

// watcherRescanEvery is the fallback poll interval for filesystems where
// fsnotify events are unreliable.
const watcherRescanEvery = 30 * time.Second

// Watcher observes a report directory and announces every newly landed
// report file exactly once. Downstream tooling tails the channel to ship
// reports elsewhere.
type Watcher struct {
	dir    string
	logger *logging.Logger

	mu   sync.Mutex
	seen map[string]bool
}

func NewWatcher(dir string, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{dir: dir, logger: logger, seen: make(map[string]bool)}
}

// Watch streams paths of new report files until the context is cancelled.
// The returned channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer fw.Close()

		ticker := time.NewTicker(watcherRescanEvery)
		defer ticker.Stop()

		// Catch files that landed before the watch started.
		w.rescan(ctx, out)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.announce(ctx, ev.Name, out)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warnf("WATCHER: %v", err)
			case <-ticker.C:
				w.rescan(ctx, out)
			}
		}
	}()
	return out, nil
}

func (w *Watcher) rescan(ctx context.Context, out chan<- string) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warnf("WATCHER: rescan %s: %v", w.dir, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.announce(ctx, filepath.Join(w.dir, e.Name()), out)
	}
}

func (w *Watcher) announce(ctx context.Context, path string, out chan<- string) {
	if !isReportFile(path) {
		return
	}

	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	select {
	case out <- path:
	case <-ctx.Done():
	}
}

// Forward tails the directory and pushes every landed report into the sink
// until the context is cancelled. Files that fail to parse or push are
// logged and skipped; the bridge keeps running.
func (w *Watcher) Forward(ctx context.Context, sink Sink) error {
	paths, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	for path := range paths {
		if err := forwardFile(path, sink); err != nil {
			w.logger.Warnf("FORWARD: %s: %v", path, err)
			continue
		}
		w.logger.Infof("FORWARD: shipped %s", path)
	}
	return nil
}

func forwardFile(path string, sink Sink) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	unmarshal := json.Unmarshal
	if filepath.Ext(path) == ".yaml" {
		unmarshal = yamlv3.Unmarshal
	}

	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "suite_"):
		var rep model.SuiteReport
		if err := unmarshal(data, &rep); err != nil {
			return fmt.Errorf("parse suite report: %w", err)
		}
		return sink.PersistSuite(rep)
	case strings.HasPrefix(base, "scenario_"):
		var res model.ScenarioResult
		if err := unmarshal(data, &res); err != nil {
			return fmt.Errorf("parse scenario result: %w", err)
		}
		return sink.PersistScenario(res)
	}
	return fmt.Errorf("unrecognized report file")
}

// isReportFile filters out temp files mid-atomic-write and foreign files.
func isReportFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch filepath.Ext(base) {
	case ".json", ".yaml":
	default:
		return false
	}
	return strings.HasPrefix(base, "suite_") || strings.HasPrefix(base, "scenario_")
}
