// Package snapshot manages the dated on-disk layout for harvest runs.
// Each run lives under <data>/snapshots/<YYYY-MM-DD>/ with raw,
// refined, analysis and reports subdirectories; the shared countries
// index lives under <data>/index/.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

// Layout points at one dated snapshot directory.
type Layout struct {
	Root string
	Date string
}

// New returns the layout for the given date under dataDir. An empty
// date means today (UTC).
func New(dataDir, date string) Layout {
	if date == "" {
		date = time.Now().UTC().Format(DateLayout)
	}
	return Layout{Root: filepath.Join(dataDir, "snapshots", date), Date: date}
}

func (l Layout) RawDir() string      { return filepath.Join(l.Root, "raw") }
func (l Layout) RefinedDir() string  { return filepath.Join(l.Root, "refined") }
func (l Layout) AnalysisDir() string { return filepath.Join(l.Root, "analysis") }
func (l Layout) ReportsDir() string  { return filepath.Join(l.Root, "reports") }

// IndexPath is the shared countries index, outside any dated snapshot.
func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "countries.json")
}

// CategoryMappingPath is the shared database_id to category mapping.
func CategoryMappingPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "category_mapping.json")
}

// Create makes the snapshot directory tree.
func (l Layout) Create() error {
	for _, dir := range []string{l.RawDir(), l.RefinedDir(), l.AnalysisDir(), l.ReportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// Latest resolves the most recent snapshot under dataDir. Date-named
// directories sort correctly as strings.
func Latest(dataDir string) (Layout, error) {
	base := filepath.Join(dataDir, "snapshots")
	entries, err := os.ReadDir(base)
	if err != nil {
		return Layout{}, fmt.Errorf("snapshot: scan %s: %w", base, err)
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			dates = append(dates, e.Name())
		}
	}
	if len(dates) == 0 {
		return Layout{}, fmt.Errorf("snapshot: no snapshots under %s", base)
	}
	sort.Strings(dates)
	return New(dataDir, dates[len(dates)-1]), nil
}

// List returns every snapshot date under dataDir in ascending order.
func List(dataDir string) ([]string, error) {
	base := filepath.Join(dataDir, "snapshots")
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: scan %s: %w", base, err)
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			dates = append(dates, e.Name())
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// WriteJSON writes v to path via a temp file and atomic rename, so a
// crash mid-write leaves any previous version intact.
func WriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: rename %s: %w", path, err)
	}
	return nil
}

// ReadJSON reads path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	return nil
}
