package seen

import (
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot persists the filter to path. The orchestrator calls it once,
// after the pools drain at shutdown; there are no periodic mid-run
// snapshots.
//
// Snapshot writes an atomic temp-file+rename, the same pattern
// internal/contentstore uses for content artifacts.
func (a *Approximator) Snapshot(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".seen-snapshot-*")
	if err != nil {
		return fmt.Errorf("seen: create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := a.filter.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("seen: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("seen: close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("seen: rename snapshot into place: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the filter's contents with a previously
// persisted snapshot. Used at startup; when no snapshot exists or it
// fails to load, the orchestrator starts with an empty filter. The filter
// is not rebuilt from visited records.
func (a *Approximator) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("seen: open snapshot: %w", err)
	}
	defer f.Close()

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.filter.ReadFrom(f); err != nil {
		return fmt.Errorf("seen: read snapshot: %w", err)
	}
	return nil
}
