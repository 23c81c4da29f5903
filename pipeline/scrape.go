package pipeline

import (
	"context"
	"errors"
	"time"

	"factharvest/fetch"
	"factharvest/parse"
	"factharvest/sitemap"
	"factharvest/snapshot"
)

// ScrapeSummary is the persisted result of one scrape run.
type ScrapeSummary struct {
	SnapshotDate   string    `json:"snapshot_date"`
	StartedAt      string    `json:"started_at"`
	CompletedAt    string    `json:"completed_at"`
	TotalCountries int       `json:"total_countries"`
	Succeeded      int       `json:"succeeded"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	SuccessRate    float64   `json:"success_rate"`
	Outcomes       []Outcome `json:"outcomes"`
}

// Scrape fetches and parses every country in the index into raw
// records under a dated snapshot. A country without a main URL is
// skipped; fetch and parse failures are recorded and the run moves on.
func (p *Pipeline) Scrape(ctx context.Context, date string) (*ScrapeSummary, error) {
	idx, err := p.sitemapIndex()
	if err != nil {
		return nil, err
	}
	countries := p.selectCountries(idx.Countries)
	layout, err := p.resolveLayout(date, false)
	if err != nil {
		return nil, err
	}
	if p.dryRun {
		for _, country := range countries {
			p.log.Info("would scrape", "country", country.Slug, "main", country.URLs.Main)
		}
		return &ScrapeSummary{
			SnapshotDate:   layout.Date,
			TotalCountries: len(countries),
		}, nil
	}
	if err := layout.Create(); err != nil {
		return nil, err
	}

	started := p.now()
	store := rawStore(layout)
	outcomes := make([]Outcome, 0, len(countries))

	p.log.Info("scrape started",
		"snapshot", layout.Date, "countries", len(countries))

	for _, country := range countries {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, p.scrapeCountry(ctx, store, country))
	}

	succeeded, skipped, failed := outcomeCounts(outcomes)
	summary := &ScrapeSummary{
		SnapshotDate:   layout.Date,
		StartedAt:      started.UTC().Format(time.RFC3339),
		CompletedAt:    p.now().UTC().Format(time.RFC3339),
		TotalCountries: len(countries),
		Succeeded:      succeeded,
		Skipped:        skipped,
		Failed:         failed,
		SuccessRate:    percentOf(succeeded, len(countries)),
		Outcomes:       outcomes,
	}
	if err := p.writeLog(layout.Root, "metadata.json", summary); err != nil {
		return nil, err
	}
	if err := p.writeLog(layout.ReportsDir(), "scrape_log.json", outcomes); err != nil {
		return nil, err
	}
	p.log.Info("scrape finished",
		"snapshot", layout.Date, "succeeded", succeeded, "skipped", skipped, "failed", failed)
	return summary, nil
}

// selectCountries applies the optional slug filter.
func (p *Pipeline) selectCountries(all []sitemap.CountryInfo) []sitemap.CountryInfo {
	if p.countries == nil {
		return all
	}
	selected := make([]sitemap.CountryInfo, 0, len(p.countries))
	for _, country := range all {
		if _, ok := p.countries[country.Slug]; ok {
			selected = append(selected, country)
		}
	}
	return selected
}

func (p *Pipeline) scrapeCountry(ctx context.Context, store recordSaver, country sitemap.CountryInfo) Outcome {
	if country.URLs.Main == "" {
		return Outcome{CountryID: country.Slug, Status: StatusSkipped, Reason: "no main url"}
	}
	start := p.now()
	url := sitemap.PageDataURL(p.cfg.BaseURL, country.URLs.Main)

	body, err := p.client.FetchPageData(ctx, url)
	if err != nil {
		status := StatusFailed
		reason := "fetch failed: " + err.Error()
		if errors.Is(err, fetch.ErrNotFound) {
			status = StatusSkipped
			reason = "not published"
		}
		p.log.Warn("country not scraped", "country", country.Slug, "reason", reason)
		return p.outcome(country.Slug, status, reason, start)
	}

	rec, err := parse.CountryRecord(body, country.Slug, url, p.now())
	if err != nil {
		p.log.Warn("country not parsed", "country", country.Slug, "error", err)
		return p.outcome(country.Slug, StatusFailed, "parse failed: "+err.Error(), start)
	}
	if err := store.Save(rec); err != nil {
		p.log.Error("country not saved", "country", country.Slug, "error", err)
		return p.outcome(country.Slug, StatusFailed, "save failed: "+err.Error(), start)
	}
	p.log.Debug("country scraped", "country", country.Slug, "fields", len(rec.Fields))
	return p.outcome(country.Slug, StatusSuccess, "", start)
}

func (p *Pipeline) outcome(slug, status, reason string, start time.Time) Outcome {
	return Outcome{
		CountryID: slug,
		Status:    status,
		Reason:    reason,
		Duration:  p.now().Sub(start).Seconds(),
	}
}

// Discover refreshes the countries index from the source sitemap and
// the category mapping from the category query document.
func (p *Pipeline) Discover(ctx context.Context) (*sitemap.Index, int, error) {
	body, err := p.client.Fetch(ctx, p.cfg.SitemapURL)
	if err != nil {
		return nil, 0, err
	}
	urls, err := sitemap.ParseXML(body)
	if err != nil {
		return nil, 0, err
	}
	countries := sitemap.ExtractCountries(urls)
	idx := sitemap.BuildIndex(countries, p.cfg.SitemapURL, p.now())
	if err := snapshot.WriteJSON(snapshot.IndexPath(p.cfg.Paths.DataDir), idx); err != nil {
		return nil, 0, err
	}
	p.log.Info("countries index updated",
		"countries", idx.Metadata.TotalCountries, "urls", idx.Metadata.TotalURLs)

	mapped, err := p.discoverCategories(ctx)
	if err != nil {
		// The mapping URL carries a build hash that goes stale; the
		// index alone is still useful.
		p.log.Warn("category mapping not refreshed", "error", err)
	}
	return idx, mapped, nil
}
