package refine

import "factharvest/record"

// CategoryEnricher annotates field entries with the human-meaningful
// category for their database_id. Enrichment runs before multi-value
// splitting so that registry keys built downstream see the category.
type CategoryEnricher struct {
	mapping map[int]string
}

func NewCategoryEnricher(mapping map[int]string) *CategoryEnricher {
	return &CategoryEnricher{mapping: mapping}
}

// Enrich returns a new record with category set on every field whose
// database_id appears in the mapping. An unmapped id is left
// uncategorized; that is a coverage gap, not an error.
func (e *CategoryEnricher) Enrich(rec *record.CountryRecord) *record.CountryRecord {
	out := rec.Clone()
	for i := range out.Fields {
		if cat, ok := e.mapping[out.Fields[i].DatabaseID]; ok {
			out.Fields[i].Category = cat
		}
	}
	return out
}

// Coverage reports how many of the record's fields the mapping covers.
func (e *CategoryEnricher) Coverage(rec *record.CountryRecord) (mapped, total int) {
	for _, f := range rec.Fields {
		if _, ok := e.mapping[f.DatabaseID]; ok {
			mapped++
		}
	}
	return mapped, len(rec.Fields)
}
