// Package catalog builds the cross-country field inventory for one
// snapshot: every distinct field observed anywhere, who carries it,
// and how widely. The catalog is rebuilt in full on every analysis
// run; there is no incremental update path.
package catalog

import (
	"sort"

	"factharvest/record"
)

// Uncategorized is the distribution label for fields whose database_id
// has no entry in the category mapping.
const Uncategorized = "uncategorized"

// Key identifies one field across countries. database_id alone is not
// globally unique: the same numeric id recurs under different
// categories in different countries. The category disambiguates; when
// a field is uncategorized the name does.
type Key struct {
	DatabaseID int    `json:"database_id"`
	Category   string `json:"category,omitempty"`
	Name       string `json:"name,omitempty"`
}

func keyFor(f *record.FieldEntry) Key {
	if f.Category != "" {
		return Key{DatabaseID: f.DatabaseID, Category: f.Category}
	}
	return Key{DatabaseID: f.DatabaseID, Name: f.Name}
}

// Entry is one field's row in the catalog.
type Entry struct {
	Key                  Key            `json:"field_key"`
	DisplayName          string         `json:"display_name"`
	CountriesPresent     int            `json:"countries_present_count"`
	CoverageRatio        float64        `json:"coverage_ratio"`
	Band                 string         `json:"band"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}

// Catalog is the aggregate inventory for one snapshot.
type Catalog struct {
	TotalFields    int         `json:"total_fields"`
	TotalCountries int         `json:"total_countries"`
	SkippedEntries int         `json:"skipped_entries"`
	Summary        BandSummary `json:"summary"`
	Fields         []Entry     `json:"fields"`
}

// BandSummary counts catalog entries per coverage band.
type BandSummary struct {
	Universal int `json:"universal"`
	Common    int `json:"common"`
	Rare      int `json:"rare"`
}

// Thresholds are the coverage-band cut points. A field is universal at
// or above Universal, common at or above Common, rare below.
type Thresholds struct {
	Universal float64
	Common    float64
}

// DefaultThresholds classify ≥95% coverage as universal and ≥50% as
// common.
func DefaultThresholds() Thresholds {
	return Thresholds{Universal: 0.95, Common: 0.50}
}

func (t Thresholds) band(ratio float64) string {
	switch {
	case ratio >= t.Universal:
		return "universal"
	case ratio >= t.Common:
		return "common"
	default:
		return "rare"
	}
}

type accum struct {
	nameCounts map[string]int
	countries  map[string]struct{}
	categories map[string]int
}

// Builder accumulates field observations one record at a time. Not
// safe for concurrent use; callers that fan out per-country work must
// merge through a single Add loop.
type Builder struct {
	thresholds Thresholds
	entries    map[Key]*accum
	countries  map[string]struct{}
	skipped    int
}

func NewBuilder(th Thresholds) *Builder {
	if th.Universal == 0 && th.Common == 0 {
		th = DefaultThresholds()
	}
	return &Builder{
		thresholds: th,
		entries:    make(map[Key]*accum),
		countries:  make(map[string]struct{}),
	}
}

// Add folds one country record into the running inventory. A field
// repeated within the same country counts that country once. Entries
// with neither a name nor a category have no usable key; they are
// skipped and counted.
func (b *Builder) Add(rec *record.CountryRecord) {
	b.countries[rec.CountryID] = struct{}{}
	for i := range rec.Fields {
		f := &rec.Fields[i]
		if f.Name == "" && f.Category == "" {
			b.skipped++
			continue
		}
		key := keyFor(f)
		a, ok := b.entries[key]
		if !ok {
			a = &accum{
				nameCounts: make(map[string]int),
				countries:  make(map[string]struct{}),
				categories: make(map[string]int),
			}
			b.entries[key] = a
		}
		a.nameCounts[f.Name]++
		if _, seen := a.countries[rec.CountryID]; !seen {
			a.countries[rec.CountryID] = struct{}{}
			cat := f.Category
			if cat == "" {
				cat = Uncategorized
			}
			a.categories[cat]++
		}
	}
}

// Build finalizes the catalog. Coverage ratios and display names are
// resolved here, from the complete tallies, and never per-record.
func (b *Builder) Build() *Catalog {
	total := len(b.countries)
	cat := &Catalog{
		TotalFields:    len(b.entries),
		TotalCountries: total,
		SkippedEntries: b.skipped,
		Fields:         make([]Entry, 0, len(b.entries)),
	}
	for key, a := range b.entries {
		e := Entry{
			Key:                  key,
			DisplayName:          mostFrequentName(a.nameCounts),
			CountriesPresent:     len(a.countries),
			CategoryDistribution: a.categories,
		}
		if total > 0 {
			e.CoverageRatio = float64(len(a.countries)) / float64(total)
		}
		e.Band = b.thresholds.band(e.CoverageRatio)
		switch e.Band {
		case "universal":
			cat.Summary.Universal++
		case "common":
			cat.Summary.Common++
		default:
			cat.Summary.Rare++
		}
		cat.Fields = append(cat.Fields, e)
	}
	sort.Slice(cat.Fields, func(i, j int) bool {
		a, b := cat.Fields[i], cat.Fields[j]
		if a.CoverageRatio != b.CoverageRatio {
			return a.CoverageRatio > b.CoverageRatio
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.Key.DatabaseID < b.Key.DatabaseID
	})
	return cat
}

// Build runs the whole single-pass aggregation over records.
func Build(records []*record.CountryRecord, th Thresholds) *Catalog {
	b := NewBuilder(th)
	for _, rec := range records {
		b.Add(rec)
	}
	return b.Build()
}

// mostFrequentName picks the canonical display name: the most frequent
// observed variant, ties broken lexicographically smallest.
func mostFrequentName(counts map[string]int) string {
	var best string
	bestCount := -1
	for name, n := range counts {
		if n > bestCount || (n == bestCount && name < best) {
			best, bestCount = name, n
		}
	}
	return best
}
