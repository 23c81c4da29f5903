package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"factharvest/catalog"
)

// SnapshotRow is one recorded analysis run.
type SnapshotRow struct {
	Date            string  `json:"date"`
	RecordedAt      int64   `json:"recorded_at"`
	TotalCountries  int     `json:"total_countries"`
	TotalFields     int     `json:"total_fields"`
	Universal       int     `json:"universal"`
	Common          int     `json:"common"`
	Rare            int     `json:"rare"`
	MultiValuedPct  float64 `json:"multi_valued_pct"`
}

// TrendPoint is one snapshot's coverage for a single field.
type TrendPoint struct {
	Date             string  `json:"date"`
	CountriesPresent int     `json:"countries_present"`
	CoverageRatio    float64 `json:"coverage_ratio"`
	Band             string  `json:"band"`
}

// FieldChange describes a field present in one snapshot but not the
// other, or whose coverage band moved between them.
type FieldChange struct {
	Key         catalog.Key `json:"field_key"`
	DisplayName string      `json:"display_name"`
	FromBand    string      `json:"from_band,omitempty"`
	ToBand      string      `json:"to_band,omitempty"`
}

// Diff is the schema movement between two snapshots.
type Diff struct {
	From        string        `json:"from"`
	To          string        `json:"to"`
	Added       []FieldChange `json:"added"`
	Removed     []FieldChange `json:"removed"`
	BandChanged []FieldChange `json:"band_changed"`
}

// RecordCatalog stores one snapshot's catalog. Re-recording the same
// date replaces the previous rows, matching the overwrite-on-re-run
// lifecycle of the catalog itself.
func (s *Store) RecordCatalog(ctx context.Context, date string, cat *catalog.Catalog, multiValuedPct float64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM field_coverage WHERE snapshot_date = ?`, date); err != nil {
		return fmt.Errorf("history: clear %s: %w", date, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (date, recorded_at, total_countries, total_fields,
			universal_count, common_count, rare_count, multi_valued_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			recorded_at = excluded.recorded_at,
			total_countries = excluded.total_countries,
			total_fields = excluded.total_fields,
			universal_count = excluded.universal_count,
			common_count = excluded.common_count,
			rare_count = excluded.rare_count,
			multi_valued_pct = excluded.multi_valued_pct`,
		date, time.Now().Unix(), cat.TotalCountries, cat.TotalFields,
		cat.Summary.Universal, cat.Summary.Common, cat.Summary.Rare, multiValuedPct); err != nil {
		return fmt.Errorf("history: insert snapshot %s: %w", date, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO field_coverage (snapshot_date, database_id, category, name,
			display_name, countries_present, coverage_ratio, band)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range cat.Fields {
		if _, err := stmt.ExecContext(ctx, date, e.Key.DatabaseID, e.Key.Category, e.Key.Name,
			e.DisplayName, e.CountriesPresent, e.CoverageRatio, e.Band); err != nil {
			return fmt.Errorf("history: insert field %q: %w", e.DisplayName, err)
		}
	}
	return tx.Commit()
}

// Snapshots lists recorded snapshots, oldest first.
func (s *Store) Snapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT date, recorded_at, total_countries, total_fields,
			universal_count, common_count, rare_count, multi_valued_pct
		FROM snapshots ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("history: list snapshots: %w", err)
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.Date, &r.RecordedAt, &r.TotalCountries, &r.TotalFields,
			&r.Universal, &r.Common, &r.Rare, &r.MultiValuedPct); err != nil {
			return nil, fmt.Errorf("history: scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FieldTrend returns a field's coverage across every recorded
// snapshot, oldest first.
func (s *Store) FieldTrend(ctx context.Context, key catalog.Key) ([]TrendPoint, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT snapshot_date, countries_present, coverage_ratio, band
		FROM field_coverage
		WHERE database_id = ? AND category = ? AND name = ?
		ORDER BY snapshot_date`,
		key.DatabaseID, key.Category, key.Name)
	if err != nil {
		return nil, fmt.Errorf("history: field trend: %w", err)
	}
	defer rows.Close()
	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Date, &p.CountriesPresent, &p.CoverageRatio, &p.Band); err != nil {
			return nil, fmt.Errorf("history: scan trend: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type fieldRow struct {
	key     catalog.Key
	display string
	band    string
}

// CompareSnapshots reports which fields appeared, disappeared, or
// changed coverage band between two recorded snapshots.
func (s *Store) CompareSnapshots(ctx context.Context, from, to string) (*Diff, error) {
	older, err := s.snapshotFields(ctx, from)
	if err != nil {
		return nil, err
	}
	newer, err := s.snapshotFields(ctx, to)
	if err != nil {
		return nil, err
	}
	diff := &Diff{From: from, To: to}
	for key, row := range newer {
		prev, ok := older[key]
		if !ok {
			diff.Added = append(diff.Added, FieldChange{
				Key: key, DisplayName: row.display, ToBand: row.band,
			})
			continue
		}
		if prev.band != row.band {
			diff.BandChanged = append(diff.BandChanged, FieldChange{
				Key: key, DisplayName: row.display, FromBand: prev.band, ToBand: row.band,
			})
		}
	}
	for key, row := range older {
		if _, ok := newer[key]; !ok {
			diff.Removed = append(diff.Removed, FieldChange{
				Key: key, DisplayName: row.display, FromBand: row.band,
			})
		}
	}
	sortChanges(diff.Added)
	sortChanges(diff.Removed)
	sortChanges(diff.BandChanged)
	return diff, nil
}

func (s *Store) snapshotFields(ctx context.Context, date string) (map[catalog.Key]fieldRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT database_id, category, name, display_name, band
		FROM field_coverage WHERE snapshot_date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("history: fields for %s: %w", date, err)
	}
	defer rows.Close()
	out := make(map[catalog.Key]fieldRow)
	for rows.Next() {
		var r fieldRow
		if err := rows.Scan(&r.key.DatabaseID, &r.key.Category, &r.key.Name, &r.display, &r.band); err != nil {
			return nil, fmt.Errorf("history: scan field: %w", err)
		}
		out[r.key] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("history: no recorded snapshot for %s: %w", date, sql.ErrNoRows)
	}
	return out, nil
}

func sortChanges(changes []FieldChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].DisplayName < changes[j].DisplayName
	})
}
