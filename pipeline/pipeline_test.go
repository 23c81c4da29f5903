package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"factharvest/config"
	"factharvest/discovery"
	"factharvest/history"
	"factharvest/record"
	"factharvest/snapshot"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.SitemapURL = baseURL + "/sitemap.xml"
	cfg.CategoryURL = baseURL + "/category.json"
	cfg.Scrape.RetryAttempts = 1
	cfg.Scrape.RetryDelay = time.Millisecond
	cfg.Scrape.RateLimitDelay = 0
	cfg.Paths.DataDir = t.TempDir()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeMapping(t *testing.T, dataDir string, mapping map[int]string) {
	t.Helper()
	file := discovery.NewMappingFile(mapping, 1, "test", time.Now())
	if err := snapshot.WriteJSON(snapshot.CategoryMappingPath(dataDir), file); err != nil {
		t.Fatal(err)
	}
}

func seedRawRecords(t *testing.T, dataDir, date string, valid, malformed int) snapshot.Layout {
	t.Helper()
	layout := snapshot.New(dataDir, date)
	if err := layout.Create(); err != nil {
		t.Fatal(err)
	}
	store := record.NewStore(layout.RawDir())
	for i := 0; i < valid; i++ {
		rec := &record.CountryRecord{
			CountryID: fmt.Sprintf("country-%02d", i),
			Name:      fmt.Sprintf("Country %02d", i),
			Fields: []record.FieldEntry{
				{DatabaseID: 208, Name: "Real GDP", RawValue: "$2T (2023 est.)<br>$1.9T (2022 est.)"},
				{DatabaseID: 279, Name: "Capital", RawValue: "City"},
			},
		}
		if err := store.Save(rec); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < malformed; i++ {
		path := filepath.Join(layout.RawDir(), fmt.Sprintf("zz-broken-%02d.json", i))
		if err := os.WriteFile(path, []byte(`{"name":"no id"}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return layout
}

func TestRefinePartialFailure(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	layout := seedRawRecords(t, cfg.Paths.DataDir, "2026-08-31", 8, 2)
	writeMapping(t, cfg.Paths.DataDir, map[int]string{208: "Economy", 279: "Government"})

	p := New(cfg, quietLogger())
	summary, err := p.Refine(context.Background(), "2026-08-31")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if summary.Succeeded != 8 || summary.Failed != 2 {
		t.Errorf("succeeded/failed = %d/%d, want 8/2", summary.Succeeded, summary.Failed)
	}
	if summary.FailureRate != 20 {
		t.Errorf("FailureRate = %v, want 20", summary.FailureRate)
	}

	// Catalog built from the valid records only, with categories
	// attached before key computation.
	if summary.Catalog.TotalCountries != 8 {
		t.Errorf("Catalog.TotalCountries = %d, want 8", summary.Catalog.TotalCountries)
	}
	if summary.Catalog.TotalFields != 2 {
		t.Errorf("Catalog.TotalFields = %d, want 2", summary.Catalog.TotalFields)
	}
	for _, e := range summary.Catalog.Fields {
		if e.Key.Category == "" {
			t.Errorf("field %q not categorized: %+v", e.DisplayName, e.Key)
		}
		if e.CoverageRatio != 1.0 || e.Band != "universal" {
			t.Errorf("field %q coverage = %v/%s, want 1.0/universal", e.DisplayName, e.CoverageRatio, e.Band)
		}
	}

	if summary.Report.MultiValuedCount != 8 || summary.Report.SingleValuedCount != 8 {
		t.Errorf("report multi/single = %d/%d, want 8/8",
			summary.Report.MultiValuedCount, summary.Report.SingleValuedCount)
	}

	refined, failures, err := record.NewStore(layout.RefinedDir()).LoadAll()
	if err != nil || len(failures) > 0 {
		t.Fatalf("LoadAll refined: %v %v", err, failures)
	}
	if len(refined) != 8 {
		t.Errorf("refined records = %d, want 8", len(refined))
	}
	if refined[0].RefinedAt == "" {
		t.Error("refined record missing refined_at")
	}

	for _, name := range []string{"field_catalog.json", "multi_value_report.json"} {
		if _, err := os.Stat(filepath.Join(layout.AnalysisDir(), name)); err != nil {
			t.Errorf("missing analysis artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(layout.ReportsDir(), "refine_log.json")); err != nil {
		t.Errorf("missing refine log: %v", err)
	}
}

func TestRefineEmptySnapshotFails(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	layout := snapshot.New(cfg.Paths.DataDir, "2026-08-31")
	if err := layout.Create(); err != nil {
		t.Fatal(err)
	}
	p := New(cfg, quietLogger())
	if _, err := p.Refine(context.Background(), "2026-08-31"); err == nil {
		t.Error("Refine on empty snapshot should fail")
	}
}

func TestRefineRecordsHistory(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	seedRawRecords(t, cfg.Paths.DataDir, "2026-08-31", 2, 0)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := New(cfg, quietLogger(), WithHistory(store))
	if _, err := p.Refine(context.Background(), "2026-08-31"); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	snaps, err := store.Snapshots(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Date != "2026-08-31" {
		t.Errorf("history snapshots = %+v", snaps)
	}
}

const alphaPageData = `{
  "result": {
    "data": {
      "country": {"name": "Alpha", "region": "Test Region", "updated": "June 1, 2026"},
      "fields": {
        "nodes": [
          {"name": "Capital", "data": "Alpha City",
           "fieldLabel": [{"databaseId": 279, "rank": false}]}
        ]
      }
    }
  }
}`

func scrapeIndex(t *testing.T, dataDir string) {
	t.Helper()
	idx := map[string]any{
		"metadata": map[string]any{"total_countries": 3},
		"countries": []map[string]any{
			{"slug": "alpha", "urls": map[string]any{"main": "/the-world-factbook/countries/alpha/"}},
			{"slug": "beta", "urls": map[string]any{"main": "/the-world-factbook/countries/beta/"}},
			{"slug": "gamma", "urls": map[string]any{}},
		},
	}
	if err := snapshot.WriteJSON(snapshot.IndexPath(dataDir), idx); err != nil {
		t.Fatal(err)
	}
}

func TestScrape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page-data/the-world-factbook/countries/alpha/page-data.json",
		func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(alphaPageData)) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	scrapeIndex(t, cfg.Paths.DataDir)

	p := New(cfg, quietLogger())
	summary, err := p.Scrape(context.Background(), "2026-08-31")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", summary.Succeeded)
	}
	// beta 404s at the source, gamma has no main URL
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0", summary.Failed)
	}

	layout := snapshot.New(cfg.Paths.DataDir, "2026-08-31")
	rec, err := record.NewStore(layout.RawDir()).Load("alpha")
	if err != nil {
		t.Fatalf("load scraped record: %v", err)
	}
	if rec.Name != "Alpha" || rec.LastUpdated != "2026-06-01" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Fields) != 1 || rec.Fields[0].DatabaseID != 279 {
		t.Errorf("fields = %+v", rec.Fields)
	}

	if _, err := os.Stat(filepath.Join(layout.Root, "metadata.json")); err != nil {
		t.Errorf("missing metadata.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(layout.ReportsDir(), "scrape_log.json")); err != nil {
		t.Errorf("missing scrape_log.json: %v", err)
	}
}

func TestScrapeDryRunWithFilter(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	scrapeIndex(t, cfg.Paths.DataDir)

	p := New(cfg, quietLogger(), WithCountries([]string{"alpha"}), WithDryRun())
	summary, err := p.Scrape(context.Background(), "2026-08-31")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if summary.TotalCountries != 1 {
		t.Errorf("TotalCountries = %d, want 1", summary.TotalCountries)
	}
	// A dry run must not touch the filesystem.
	layout := snapshot.New(cfg.Paths.DataDir, "2026-08-31")
	if _, err := os.Stat(layout.Root); !os.IsNotExist(err) {
		t.Errorf("dry run created snapshot dir: %v", err)
	}
}

func TestAnalyze(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	layout := snapshot.New(cfg.Paths.DataDir, "2026-08-31")
	if err := layout.Create(); err != nil {
		t.Fatal(err)
	}
	store := record.NewStore(layout.RefinedDir())
	for i := 0; i < 3; i++ {
		rec := &record.CountryRecord{
			CountryID: fmt.Sprintf("country-%02d", i),
			Name:      fmt.Sprintf("Country %02d", i),
			Fields: []record.FieldEntry{
				{
					DatabaseID: 208, Name: "Real GDP", Category: "Economy",
					RawValue: "$2T (2023 est.)<br>$1.9T (2022 est.)", IsMultiValued: true,
					Values: []record.FieldValue{
						{Value: "$2T (2023 est.)", Order: 0, Year: "2023"},
						{Value: "$1.9T (2022 est.)", Order: 1, Year: "2022"},
					},
				},
			},
		}
		if err := store.Save(rec); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()

	p := New(cfg, quietLogger(), WithHistory(hist))
	cat, err := p.Analyze(context.Background(), "2026-08-31")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if cat.TotalCountries != 3 || cat.TotalFields != 1 {
		t.Errorf("catalog = %d countries, %d fields", cat.TotalCountries, cat.TotalFields)
	}
	if _, err := os.Stat(filepath.Join(layout.AnalysisDir(), "field_catalog.json")); err != nil {
		t.Errorf("missing field_catalog.json: %v", err)
	}
	snaps, err := hist.Snapshots(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].MultiValuedPct != 100 {
		t.Errorf("history snapshots = %+v", snaps)
	}
}

const testSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.org/the-world-factbook/countries/alpha/</loc></url>
  <url><loc>https://example.org/the-world-factbook/countries/alpha/flag/</loc></url>
  <url><loc>https://example.org/the-world-factbook/about/</loc></url>
</urlset>`

const testCategoryPayload = `{
  "data": {
    "allLaunchpadCategory": {
      "nodes": [
        {"name": "Government", "fieldLabels": [{"databaseId": 279}]}
      ]
    }
  }
}`

func TestDiscover(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml",
		func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(testSitemap)) })
	mux.HandleFunc("/category.json",
		func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(testCategoryPayload)) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	p := New(cfg, quietLogger())
	idx, mapped, err := p.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if idx.Metadata.TotalCountries != 1 || mapped != 1 {
		t.Errorf("countries = %d, mapped = %d, want 1/1", idx.Metadata.TotalCountries, mapped)
	}

	var onDisk discovery.MappingFile
	if err := snapshot.ReadJSON(snapshot.CategoryMappingPath(cfg.Paths.DataDir), &onDisk); err != nil {
		t.Fatalf("mapping not persisted: %v", err)
	}
	if onDisk.Runtime()[279] != "Government" {
		t.Errorf("mapping = %+v", onDisk.Mapping)
	}
}
