package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"seadog/internal/model"
)

// Format selects the on-disk encoding of a FileSink.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FileSink writes each report to its own file under a directory. Writes are
// atomic: content goes to a temp file, is synced and re-parsed, then renamed
// into place, so a crash never leaves a truncated report behind.
type FileSink struct {
	dir    string
	format Format
}

func NewFileSink(dir string, format Format) (*FileSink, error) {
	switch format {
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileSink{dir: dir, format: format}, nil
}

func (s *FileSink) PersistSuite(report model.SuiteReport) error {
	name := fmt.Sprintf("suite_%s_%s.%s",
		strings.ToLower(string(report.SuiteType)),
		report.StartTime.UTC().Format("20060102T150405Z"),
		s.format)
	return s.write(filepath.Join(s.dir, name), report)
}

func (s *FileSink) PersistScenario(result model.ScenarioResult) error {
	name := fmt.Sprintf("scenario_%s_%s.%s",
		result.ScenarioID,
		time.Now().UTC().Format("20060102T150405Z"),
		s.format)
	return s.write(filepath.Join(s.dir, name), result)
}

func (s *FileSink) write(path string, data any) error {
	var content []byte
	var err error
	switch s.format {
	case FormatYAML:
		content, err = yamlv3.Marshal(data)
	default:
		content, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.atomicWrite(path, content)
}

func (s *FileSink) atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".seadog-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Re-read and parse before the rename so a bad write never lands.
	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for validation: %w", err)
	}
	if err := s.validate(written); err != nil {
		return fmt.Errorf("report validation failed: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func (s *FileSink) validate(content []byte) error {
	var v any
	if s.format == FormatYAML {
		return yamlv3.Unmarshal(content, &v)
	}
	return json.Unmarshal(content, &v)
}
