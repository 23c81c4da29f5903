package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"factharvest/record"
)

func country(id string, fields ...record.FieldEntry) *record.CountryRecord {
	return &record.CountryRecord{CountryID: id, Fields: fields}
}

func TestBuildEmpty(t *testing.T) {
	cat := Build(nil, Thresholds{})
	if cat.TotalCountries != 0 || cat.TotalFields != 0 || len(cat.Fields) != 0 {
		t.Errorf("empty input produced %+v", cat)
	}
}

func TestCoverageAndBands(t *testing.T) {
	geo := record.FieldEntry{DatabaseID: 7, Name: "Area", Category: "Geography", RawValue: "x"}
	records := []*record.CountryRecord{
		country("a", geo),
		country("b", geo),
		country("c", geo),
		country("d"),
	}
	cat := Build(records, Thresholds{})
	if cat.TotalCountries != 4 {
		t.Fatalf("TotalCountries = %d, want 4", cat.TotalCountries)
	}
	if len(cat.Fields) != 1 {
		t.Fatalf("Fields = %d entries, want 1", len(cat.Fields))
	}
	e := cat.Fields[0]
	if e.CoverageRatio != 0.75 {
		t.Errorf("CoverageRatio = %v, want 0.75", e.CoverageRatio)
	}
	if e.Band != "common" {
		t.Errorf("Band = %q, want common", e.Band)
	}
	if e.CountriesPresent != 3 {
		t.Errorf("CountriesPresent = %d, want 3", e.CountriesPresent)
	}
	if cat.Summary.Common != 1 || cat.Summary.Universal != 0 || cat.Summary.Rare != 0 {
		t.Errorf("Summary = %+v", cat.Summary)
	}
}

func TestKeyDisambiguation(t *testing.T) {
	records := []*record.CountryRecord{
		country("a", record.FieldEntry{DatabaseID: 12, Name: "Expenditures", Category: "Economy", RawValue: "x"}),
		country("b", record.FieldEntry{DatabaseID: 12, Name: "Expenditures", Category: "Military", RawValue: "y"}),
	}
	cat := Build(records, Thresholds{})
	if cat.TotalFields != 2 {
		t.Fatalf("TotalFields = %d, want 2 distinct entries for shared database_id", cat.TotalFields)
	}
	cats := map[string]bool{}
	for _, e := range cat.Fields {
		cats[e.Key.Category] = true
	}
	if !cats["Economy"] || !cats["Military"] {
		t.Errorf("categories = %v, want Economy and Military", cats)
	}
}

func TestFallbackKeyUsesName(t *testing.T) {
	records := []*record.CountryRecord{
		country("a", record.FieldEntry{DatabaseID: 5, Name: "Capital", RawValue: "x"}),
		country("b", record.FieldEntry{DatabaseID: 5, Name: "Anthem", RawValue: "y"}),
	}
	cat := Build(records, Thresholds{})
	if cat.TotalFields != 2 {
		t.Errorf("TotalFields = %d, want 2: uncategorized fields key on name", cat.TotalFields)
	}
	for _, e := range cat.Fields {
		want := map[string]int{Uncategorized: 1}
		if diff := cmp.Diff(want, e.CategoryDistribution); diff != "" {
			t.Errorf("%s distribution mismatch (-want +got):\n%s", e.DisplayName, diff)
		}
	}
}

func TestDisplayNameMostFrequent(t *testing.T) {
	entry := func(name string) record.FieldEntry {
		return record.FieldEntry{DatabaseID: 3, Name: name, Category: "Economy", RawValue: "x"}
	}
	records := []*record.CountryRecord{
		country("a", entry("GDP (PPP)")),
		country("b", entry("Real GDP")),
		country("c", entry("Real GDP")),
	}
	cat := Build(records, Thresholds{})
	if got := cat.Fields[0].DisplayName; got != "Real GDP" {
		t.Errorf("DisplayName = %q, want most frequent variant", got)
	}
}

func TestDisplayNameTieBreak(t *testing.T) {
	entry := func(name string) record.FieldEntry {
		return record.FieldEntry{DatabaseID: 3, Name: name, Category: "Economy", RawValue: "x"}
	}
	records := []*record.CountryRecord{
		country("a", entry("Zeta")),
		country("b", entry("Alpha")),
	}
	cat := Build(records, Thresholds{})
	if got := cat.Fields[0].DisplayName; got != "Alpha" {
		t.Errorf("DisplayName = %q, want lexicographically smallest on tie", got)
	}
}

func TestRepeatedFieldCountsCountryOnce(t *testing.T) {
	f := record.FieldEntry{DatabaseID: 9, Name: "Border", Category: "Geography", RawValue: "x"}
	records := []*record.CountryRecord{
		country("a", f, f, f),
		country("b", f),
	}
	cat := Build(records, Thresholds{})
	e := cat.Fields[0]
	if e.CountriesPresent != 2 {
		t.Errorf("CountriesPresent = %d, want 2", e.CountriesPresent)
	}
	sum := 0
	for _, n := range e.CategoryDistribution {
		sum += n
	}
	if sum != e.CountriesPresent {
		t.Errorf("category distribution sums to %d, want %d", sum, e.CountriesPresent)
	}
}

func TestSkipsUnkeyableEntries(t *testing.T) {
	records := []*record.CountryRecord{
		country("a",
			record.FieldEntry{DatabaseID: 1, RawValue: "no name no category"},
			record.FieldEntry{DatabaseID: 2, Name: "Fine", RawValue: "x"},
		),
	}
	cat := Build(records, Thresholds{})
	if cat.SkippedEntries != 1 {
		t.Errorf("SkippedEntries = %d, want 1", cat.SkippedEntries)
	}
	if cat.TotalFields != 1 {
		t.Errorf("TotalFields = %d, want 1", cat.TotalFields)
	}
}

func TestCustomThresholds(t *testing.T) {
	f := record.FieldEntry{DatabaseID: 1, Name: "F", Category: "C", RawValue: "x"}
	records := []*record.CountryRecord{
		country("a", f),
		country("b", f),
		country("c"),
		country("d"),
	}
	cat := Build(records, Thresholds{Universal: 0.4, Common: 0.1})
	if got := cat.Fields[0].Band; got != "universal" {
		t.Errorf("Band = %q, want universal at 0.5 coverage with 0.4 threshold", got)
	}
}

func TestFieldsSortedByCoverage(t *testing.T) {
	wide := record.FieldEntry{DatabaseID: 1, Name: "Wide", Category: "C", RawValue: "x"}
	narrow := record.FieldEntry{DatabaseID: 2, Name: "Narrow", Category: "C", RawValue: "x"}
	records := []*record.CountryRecord{
		country("a", wide, narrow),
		country("b", wide),
	}
	cat := Build(records, Thresholds{})
	if cat.Fields[0].DisplayName != "Wide" || cat.Fields[1].DisplayName != "Narrow" {
		t.Errorf("order = [%s %s], want coverage-descending",
			cat.Fields[0].DisplayName, cat.Fields[1].DisplayName)
	}
}
