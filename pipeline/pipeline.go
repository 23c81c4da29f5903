// Package pipeline sequences the harvest stages over one snapshot:
// scrape (fetch + parse + persist raw records) and refine (enrich with
// categories, split multi-value fields, persist refined records, build
// the cross-country catalog). Countries are processed one at a time;
// per-country failures are collected into the run summary and never
// abort the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"factharvest/catalog"
	"factharvest/config"
	"factharvest/discovery"
	"factharvest/fetch"
	"factharvest/history"
	"factharvest/record"
	"factharvest/refine"
	"factharvest/sitemap"
	"factharvest/snapshot"
)

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Outcome is the per-country result of one stage.
type Outcome struct {
	CountryID string  `json:"country_id"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	Duration  float64 `json:"duration_seconds,omitempty"`
}

// Pipeline wires the stages together. The history store is optional;
// when present, every analysis run is recorded there.
type Pipeline struct {
	cfg       *config.Config
	log       *slog.Logger
	client    *fetch.Client
	history   *history.Store
	countries map[string]struct{}
	dryRun    bool

	now func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory records analysis runs into the given store.
func WithHistory(store *history.Store) Option {
	return func(p *Pipeline) { p.history = store }
}

// WithFetchClient overrides the HTTP client, used by tests.
func WithFetchClient(client *fetch.Client) Option {
	return func(p *Pipeline) { p.client = client }
}

// WithCountries restricts a scrape run to the named slugs.
func WithCountries(slugs []string) Option {
	return func(p *Pipeline) {
		if len(slugs) == 0 {
			return
		}
		p.countries = make(map[string]struct{}, len(slugs))
		for _, slug := range slugs {
			p.countries[slug] = struct{}{}
		}
	}
}

// WithDryRun lists what a scrape run would fetch without fetching or
// writing anything.
func WithDryRun() Option {
	return func(p *Pipeline) { p.dryRun = true }
}

func New(cfg *config.Config, log *slog.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		cfg: cfg,
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = fetch.New(fetch.Config{
			Timeout:        cfg.Scrape.RequestTimeout,
			RetryAttempts:  cfg.Scrape.RetryAttempts,
			RetryDelay:     cfg.Scrape.RetryDelay,
			RateLimitDelay: cfg.Scrape.RateLimitDelay,
			MaxBytes:       cfg.Scrape.MaxBodyBytes,
			UserAgent:      cfg.Scrape.UserAgent,
		}, log)
	}
	return p
}

func outcomeCounts(outcomes []Outcome) (succeeded, skipped, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			succeeded++
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
	}
	return
}

func (p *Pipeline) writeLog(dir, name string, v any) error {
	return snapshot.WriteJSON(filepath.Join(dir, name), v)
}

// percentOf avoids per-record incremental rounding; summaries call it
// once on final totals.
func percentOf(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// resolveLayout returns the snapshot layout for date, or the latest
// snapshot when date is empty.
func (p *Pipeline) resolveLayout(date string, mustExist bool) (snapshot.Layout, error) {
	if date != "" {
		return snapshot.New(p.cfg.Paths.DataDir, date), nil
	}
	if mustExist {
		return snapshot.Latest(p.cfg.Paths.DataDir)
	}
	return snapshot.New(p.cfg.Paths.DataDir, ""), nil
}

// loadMapping reads the persisted category mapping; a missing mapping
// is not fatal, refinement then runs uncategorized.
func (p *Pipeline) loadMapping() map[int]string {
	path := snapshot.CategoryMappingPath(p.cfg.Paths.DataDir)
	var file discovery.MappingFile
	if err := snapshot.ReadJSON(path, &file); err != nil {
		p.log.Warn("no category mapping, fields stay uncategorized", "path", path, "error", err)
		return nil
	}
	return file.Runtime()
}

// ctxErr surfaces cancellation distinctly from per-country failures.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// sitemapIndex loads the countries index produced by discovery.
func (p *Pipeline) sitemapIndex() (*sitemap.Index, error) {
	path := snapshot.IndexPath(p.cfg.Paths.DataDir)
	var idx sitemap.Index
	if err := snapshot.ReadJSON(path, &idx); err != nil {
		return nil, fmt.Errorf("pipeline: load countries index: %w (run discover first)", err)
	}
	if len(idx.Countries) == 0 {
		return nil, fmt.Errorf("pipeline: countries index at %s is empty", path)
	}
	return &idx, nil
}

// rawStore and refinedStore bind record persistence to a layout.
func rawStore(l snapshot.Layout) *record.Store     { return record.NewStore(l.RawDir()) }
func refinedStore(l snapshot.Layout) *record.Store { return record.NewStore(l.RefinedDir()) }

// catalogThresholds maps config onto the builder's thresholds.
func (p *Pipeline) catalogThresholds() catalog.Thresholds {
	return catalog.Thresholds{
		Universal: p.cfg.Catalog.UniversalThreshold,
		Common:    p.cfg.Catalog.CommonThreshold,
	}
}

func (p *Pipeline) newSplitter() (*refine.Splitter, error) {
	return refine.NewSplitter(refine.Config{
		Marker:          p.cfg.Refine.Marker,
		MaxYearValueLen: p.cfg.Refine.MaxYearValueLen,
	})
}
