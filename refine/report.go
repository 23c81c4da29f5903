package refine

import (
	"sort"

	"factharvest/record"
)

// Report summarizes one refinement run across a whole snapshot.
// Percentages are computed once from the final totals, never rounded
// incrementally per record.
type Report struct {
	TotalCountries        int                    `json:"total_countries"`
	TotalFieldsExamined   int                    `json:"total_fields_examined"`
	MultiValuedCount      int                    `json:"multi_valued_count"`
	SingleValuedCount     int                    `json:"single_valued_count"`
	FailedEntries         int                    `json:"failed_entries"`
	MultiValuedPercentage float64                `json:"multi_valued_percentage"`
	ByField               map[string]*FieldStats `json:"by_field"`
	TopMultiValued        []TopField             `json:"top_multi_valued_fields"`
}

// FieldStats aggregates one field name across every country where it
// occurs.
type FieldStats struct {
	Occurrences           int     `json:"occurrences"`
	MultiValuedCount      int     `json:"multi_valued_count"`
	SingleValuedCount     int     `json:"single_valued_count"`
	MultiValuedPercentage float64 `json:"multi_valued_percentage"`
	AvgValueCount         float64 `json:"avg_value_count"`
	MinValueCount         int     `json:"min_value_count"`
	MaxValueCount         int     `json:"max_value_count"`

	totalValues int
}

// TopField is one row of the most-split-fields leaderboard.
type TopField struct {
	Name                  string  `json:"field_name"`
	MultiValuedPercentage float64 `json:"multi_valued_percentage"`
	AvgValueCount         float64 `json:"avg_value_count"`
}

const topFieldLimit = 20

type reportBuilder struct {
	total    int
	multi    int
	failures int
	byField  map[string]*FieldStats
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{byField: make(map[string]*FieldStats)}
}

func (b *reportBuilder) addFailure() { b.failures++ }

func (b *reportBuilder) addField(f *record.FieldEntry) {
	b.total++
	st, ok := b.byField[f.Name]
	if !ok {
		st = &FieldStats{MinValueCount: len(f.Values)}
		b.byField[f.Name] = st
	}
	st.Occurrences++
	st.totalValues += len(f.Values)
	if len(f.Values) < st.MinValueCount {
		st.MinValueCount = len(f.Values)
	}
	if len(f.Values) > st.MaxValueCount {
		st.MaxValueCount = len(f.Values)
	}
	if f.IsMultiValued {
		b.multi++
		st.MultiValuedCount++
	} else {
		st.SingleValuedCount++
	}
}

func (b *reportBuilder) finish(countries int) *Report {
	rep := &Report{
		TotalCountries:      countries,
		TotalFieldsExamined: b.total,
		MultiValuedCount:    b.multi,
		SingleValuedCount:   b.total - b.multi,
		FailedEntries:       b.failures,
		ByField:             b.byField,
	}
	if b.total > 0 {
		rep.MultiValuedPercentage = float64(b.multi) / float64(b.total) * 100
	}

	for name, st := range b.byField {
		if st.Occurrences > 0 {
			st.MultiValuedPercentage = float64(st.MultiValuedCount) / float64(st.Occurrences) * 100
			st.AvgValueCount = float64(st.totalValues) / float64(st.Occurrences)
		}
		if st.MultiValuedCount > 0 {
			rep.TopMultiValued = append(rep.TopMultiValued, TopField{
				Name:                  name,
				MultiValuedPercentage: st.MultiValuedPercentage,
				AvgValueCount:         st.AvgValueCount,
			})
		}
	}
	sort.Slice(rep.TopMultiValued, func(i, j int) bool {
		a, b := rep.TopMultiValued[i], rep.TopMultiValued[j]
		if a.MultiValuedPercentage != b.MultiValuedPercentage {
			return a.MultiValuedPercentage > b.MultiValuedPercentage
		}
		return a.Name < b.Name
	})
	if len(rep.TopMultiValued) > topFieldLimit {
		rep.TopMultiValued = rep.TopMultiValued[:topFieldLimit]
	}
	return rep
}
