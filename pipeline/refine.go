package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"factharvest/catalog"
	"factharvest/discovery"
	"factharvest/record"
	"factharvest/refine"
	"factharvest/snapshot"
)

type recordSaver interface {
	Save(*record.CountryRecord) error
}

// RefineSummary is the persisted result of one refinement/analysis
// run.
type RefineSummary struct {
	SnapshotDate   string           `json:"snapshot_date"`
	StartedAt      string           `json:"started_at"`
	CompletedAt    string           `json:"completed_at"`
	TotalCountries int              `json:"total_countries"`
	Succeeded      int              `json:"succeeded"`
	Failed         int              `json:"failed"`
	FailureRate    float64          `json:"failure_rate"`
	Outcomes       []Outcome        `json:"outcomes"`
	Report         *refine.Report   `json:"-"`
	Catalog        *catalog.Catalog `json:"-"`
}

// Refine runs the analysis core over one snapshot: load raw records,
// enrich with categories, split multi-value fields, persist refined
// records, then build and persist the field catalog and multi-value
// report. Enrichment runs before splitting; catalog keys depend on
// the category being set.
func (p *Pipeline) Refine(ctx context.Context, date string) (*RefineSummary, error) {
	layout, err := p.resolveLayout(date, true)
	if err != nil {
		return nil, err
	}
	splitter, err := p.newSplitter()
	if err != nil {
		return nil, err
	}
	started := p.now()
	enricher := refine.NewCategoryEnricher(p.loadMapping())

	var (
		outcomes []Outcome
		loaded   []*record.CountryRecord
	)
	for rec, err := range rawStore(layout).All() {
		if cerr := ctxErr(ctx); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			p.log.Warn("record rejected", "error", err)
			outcomes = append(outcomes, Outcome{
				CountryID: "", Status: StatusFailed, Reason: err.Error(),
			})
			continue
		}
		loaded = append(loaded, enricher.Enrich(rec))
	}
	if len(loaded) == 0 {
		return nil, record.ErrNoRecords
	}

	refined, report := splitter.RefineAll(loaded)
	report.TotalCountries = len(loaded) + countFailed(outcomes)

	out := refinedStore(layout)
	refinedAt := p.now().UTC().Format(time.RFC3339)
	for _, rec := range refined {
		rec.RefinedAt = refinedAt
		if err := out.Save(rec); err != nil {
			p.log.Error("refined record not saved", "country", rec.CountryID, "error", err)
			outcomes = append(outcomes, Outcome{
				CountryID: rec.CountryID, Status: StatusFailed, Reason: "save failed: " + err.Error(),
			})
			continue
		}
		outcomes = append(outcomes, Outcome{CountryID: rec.CountryID, Status: StatusSuccess})
	}

	cat := catalog.Build(refined, p.catalogThresholds())
	if err := p.writeLog(layout.AnalysisDir(), "field_catalog.json", cat); err != nil {
		return nil, err
	}
	if err := p.writeLog(layout.AnalysisDir(), "multi_value_report.json", report); err != nil {
		return nil, err
	}

	succeeded, _, failed := outcomeCounts(outcomes)
	summary := &RefineSummary{
		SnapshotDate:   layout.Date,
		StartedAt:      started.UTC().Format(time.RFC3339),
		CompletedAt:    p.now().UTC().Format(time.RFC3339),
		TotalCountries: succeeded + failed,
		Succeeded:      succeeded,
		Failed:         failed,
		FailureRate:    percentOf(failed, succeeded+failed),
		Outcomes:       outcomes,
		Report:         report,
		Catalog:        cat,
	}
	if err := p.writeLog(layout.ReportsDir(), "refine_log.json", summary); err != nil {
		return nil, err
	}

	if p.history != nil {
		if err := p.history.RecordCatalog(ctx, layout.Date, cat, report.MultiValuedPercentage); err != nil {
			return nil, err
		}
	}
	p.log.Info("refinement finished",
		"snapshot", layout.Date,
		"countries", summary.TotalCountries,
		"failed", failed,
		"fields", report.TotalFieldsExamined,
		"multi_valued_pct", report.MultiValuedPercentage)
	return summary, nil
}

func countFailed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// discoverCategories fetches and persists the category mapping.
func (p *Pipeline) discoverCategories(ctx context.Context) (int, error) {
	body, err := p.client.Fetch(ctx, p.cfg.CategoryURL)
	if err != nil {
		return 0, err
	}
	mapping, categories, err := discovery.ExtractMapping(body)
	if err != nil {
		return 0, err
	}
	file := discovery.NewMappingFile(mapping, categories, p.cfg.CategoryURL, p.now())
	path := snapshot.CategoryMappingPath(p.cfg.Paths.DataDir)
	if err := snapshot.WriteJSON(path, file); err != nil {
		return 0, err
	}
	p.log.Info("category mapping updated",
		"categories", categories, "fields", len(mapping), "path", filepath.Base(path))
	return len(mapping), nil
}
