package pipeline

import (
	"context"

	"factharvest/catalog"
	"factharvest/record"
)

// Analyze rebuilds the field catalog from a snapshot's refined records
// without re-running the splitter. Useful after changing coverage
// thresholds, and for recording an existing snapshot into history.
func (p *Pipeline) Analyze(ctx context.Context, date string) (*catalog.Catalog, error) {
	layout, err := p.resolveLayout(date, true)
	if err != nil {
		return nil, err
	}
	records, loadErrs, err := refinedStore(layout).LoadAll()
	if err != nil {
		return nil, err
	}
	for _, lerr := range loadErrs {
		p.log.Warn("record rejected", "error", lerr)
	}

	cat := catalog.Build(records, p.catalogThresholds())
	if err := p.writeLog(layout.AnalysisDir(), "field_catalog.json", cat); err != nil {
		return nil, err
	}

	if p.history != nil {
		if err := p.history.RecordCatalog(ctx, layout.Date, cat, multiValuedPct(records)); err != nil {
			return nil, err
		}
	}
	p.log.Info("analysis finished",
		"snapshot", layout.Date,
		"countries", cat.TotalCountries,
		"fields", cat.TotalFields)
	return cat, nil
}

func multiValuedPct(records []*record.CountryRecord) float64 {
	total, multi := 0, 0
	for _, rec := range records {
		for i := range rec.Fields {
			total++
			if rec.Fields[i].IsMultiValued {
				multi++
			}
		}
	}
	return percentOf(multi, total)
}
