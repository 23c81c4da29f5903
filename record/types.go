// Package record defines the normalized country record model and its
// JSON persistence. One file per country per snapshot; field order is
// preserved through every transformation stage.
package record

// FieldValue is one ordered sub-value of a field. Order is dense and
// zero-based over retained values.
type FieldValue struct {
	Value string `json:"value"`
	Order int    `json:"order"`
	// Year is the annotated reference year, when one could be
	// extracted from the value text (e.g. "(2024 est.)").
	Year string `json:"year,omitempty"`
}

// MediaRef is an auxiliary asset reference (flag/map image). Opaque to
// the refinement and analysis stages.
type MediaRef struct {
	Type    string `json:"type,omitempty"`
	Label   string `json:"label,omitempty"`
	AltText string `json:"alt_text,omitempty"`
	Caption string `json:"caption,omitempty"`
	URL     string `json:"url,omitempty"`
}

// FieldEntry is one named fact about a country.
//
// RawValue always carries the original source text and is never
// mutated: splitting produces a fresh Values sequence and leaves
// RawValue as the audit trail.
type FieldEntry struct {
	DatabaseID int    `json:"database_id,omitempty"`
	Name       string `json:"name"`
	RawValue   string `json:"raw_value"`
	// Category is empty until enrichment; empty means uncategorized.
	Category   string   `json:"category,omitempty"`
	Subfields  []string `json:"subfields,omitempty"`
	HasRanking bool     `json:"has_ranking,omitempty"`

	IsMultiValued bool         `json:"is_multi_valued"`
	Values        []FieldValue `json:"values,omitempty"`

	Media []MediaRef `json:"media,omitempty"`
}

// CountryRecord is one country in one snapshot.
type CountryRecord struct {
	CountryID   string `json:"country_id"`
	Name        string `json:"name,omitempty"`
	Region      string `json:"region,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`

	SourceURL string `json:"source_url,omitempty"`
	ScrapedAt string `json:"scraped_at,omitempty"`
	RefinedAt string `json:"refined_at,omitempty"`

	Fields []FieldEntry `json:"fields"`
	Media  []MediaRef   `json:"media,omitempty"`
}

// Clone returns a deep copy. Transformations operate on copies so the
// loaded input stays untouched.
func (r *CountryRecord) Clone() *CountryRecord {
	out := *r
	out.Fields = make([]FieldEntry, len(r.Fields))
	for i, f := range r.Fields {
		out.Fields[i] = f.clone()
	}
	out.Media = append([]MediaRef(nil), r.Media...)
	return &out
}

func (f FieldEntry) clone() FieldEntry {
	f.Subfields = append([]string(nil), f.Subfields...)
	f.Values = append([]FieldValue(nil), f.Values...)
	f.Media = append([]MediaRef(nil), f.Media...)
	return f
}
