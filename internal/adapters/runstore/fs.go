// Package runstore persists probe-run artifacts to the local filesystem.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"x402probe/internal/core/domain"
)

// Store implements ports.ReportStore under a base directory.
type Store struct {
	BaseDir string
}

// NewStore creates a run store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{BaseDir: baseDir}
}

// InitRun creates the run directory.
func (s *Store) InitRun(runID string) error {
	path := s.RunPath(runID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create run directory %s: %w", path, err)
	}
	return nil
}

// SaveReport writes report.json for the run.
func (s *Store) SaveReport(runID string, report *domain.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	data = append(data, '\n')
	return writeAtomic(filepath.Join(s.RunPath(runID), "report.json"), data)
}

// SaveSummary writes the completed summary text.
func (s *Store) SaveSummary(runID string, summary string) error {
	return writeAtomic(filepath.Join(s.RunPath(runID), "summary.txt"), []byte(summary))
}

// RunPath returns the directory for a run.
func (s *Store) RunPath(runID string) string {
	return filepath.Join(s.BaseDir, "runs", runID)
}

// writeAtomic writes through a temp file and rename so a crashed run never
// leaves a truncated report behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".x402probe-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
