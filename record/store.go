package record

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store reads and writes per-country record files in one directory.
// Reading has no side effects; writing is atomic (temp file + rename)
// so a reader never observes a partially written record.
type Store struct {
	dir string
}

// NewStore creates a Store over dir. The directory is created on the
// first Save, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// fieldProbe checks that each field object carries the required keys
// before the record is accepted. A present-but-empty raw_value is
// valid; an absent one is not.
type fieldProbe struct {
	Name     *string `json:"name"`
	RawValue *string `json:"raw_value"`
}

type recordProbe struct {
	CountryID string            `json:"country_id"`
	Fields    []json.RawMessage `json:"fields"`
}

// Load reads and validates a single country record.
func (s *Store) Load(countryID string) (*CountryRecord, error) {
	path := filepath.Join(s.dir, countryID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("record: read %s: %w", path, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("record: %s: %w", countryID, err)
	}
	return rec, nil
}

// Decode parses and validates country record JSON.
func Decode(data []byte) (*CountryRecord, error) {
	var probe recordProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if probe.CountryID == "" {
		return nil, fmt.Errorf("%w: missing country_id", ErrMalformedRecord)
	}
	for i, raw := range probe.Fields {
		var fp fieldProbe
		if err := json.Unmarshal(raw, &fp); err != nil {
			return nil, fmt.Errorf("%w: field %d is not an object", ErrMalformedRecord, i)
		}
		if fp.Name == nil {
			return nil, fmt.Errorf("%w: field %d missing name", ErrMalformedRecord, i)
		}
		if fp.RawValue == nil {
			return nil, fmt.Errorf("%w: field %d (%s) missing raw_value", ErrMalformedRecord, i, *fp.Name)
		}
	}

	rec := &CountryRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, nil
}

// All returns a restartable lazy sequence over every country record in
// the store, in filename order. A failure on one file is yielded to the
// caller and iteration continues with the next file; only an unreadable
// directory ends the sequence with an error.
func (s *Store) All() iter.Seq2[*CountryRecord, error] {
	return func(yield func(*CountryRecord, error) bool) {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			yield(nil, fmt.Errorf("record: scan %s: %w", s.dir, err))
			return
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rec, err := s.Load(strings.TrimSuffix(name, ".json"))
			if !yield(rec, err) {
				return
			}
		}
	}
}

// LoadAll collects every valid record plus the per-file failures.
// Returns ErrNoRecords when the directory yields nothing at all.
func (s *Store) LoadAll() ([]*CountryRecord, []error, error) {
	var (
		records  []*CountryRecord
		failures []error
	)
	for rec, err := range s.All() {
		if err != nil {
			failures = append(failures, err)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 && len(failures) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoRecords, s.dir)
	}
	return records, failures, nil
}

// Save writes a record atomically to <dir>/<country_id>.json.
func (s *Store) Save(rec *CountryRecord) error {
	if rec.CountryID == "" {
		return fmt.Errorf("%w: missing country_id", ErrMalformedRecord)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("record: mkdir %s: %w", s.dir, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("record: marshal %s: %w", rec.CountryID, err)
	}

	tmp, err := os.CreateTemp(s.dir, rec.CountryID+".*.tmp")
	if err != nil {
		return fmt.Errorf("record: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("record: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("record: close %s: %w", tmpName, err)
	}
	final := filepath.Join(s.dir, rec.CountryID+".json")
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("record: rename %s: %w", final, err)
	}
	return nil
}
