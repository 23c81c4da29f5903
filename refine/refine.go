// Package refine turns raw country records into the uniform refined
// representation: compound field values split on the line-break marker
// into ordered value arrays, categories attached from the discovered
// mapping, and per-value years annotated where a value carries one.
//
// Everything here is a pure transform over already-loaded records. The
// input record is never mutated; every entry point returns a new copy.
package refine

import (
	"fmt"
	"regexp"
	"strings"

	"factharvest/record"
)

// DefaultMarker is the separator token in source payloads. The compiled
// pattern also matches the self-closing variants.
const DefaultMarker = "<br>"

// Config carries the knobs for the splitter. Zero values fall back to
// the defaults used against the live source.
type Config struct {
	Marker          string
	MaxYearValueLen int
}

// Splitter detects fields whose raw value encodes multiple ordered
// sub-values and rewrites them into the structured form.
type Splitter struct {
	marker     *regexp.Regexp
	maxYearLen int
}

// NewSplitter compiles the marker token into a case-insensitive
// pattern. The default marker additionally matches <br/> and <br />.
func NewSplitter(cfg Config) (*Splitter, error) {
	marker := cfg.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	re, err := compileMarker(marker)
	if err != nil {
		return nil, fmt.Errorf("refine: marker %q: %w", marker, err)
	}
	maxYearLen := cfg.MaxYearValueLen
	if maxYearLen <= 0 {
		maxYearLen = defaultMaxYearValueLen
	}
	return &Splitter{marker: re, maxYearLen: maxYearLen}, nil
}

func compileMarker(token string) (*regexp.Regexp, error) {
	if strings.EqualFold(token, DefaultMarker) {
		return regexp.Compile(`(?i)<br\s*/?>`)
	}
	return regexp.Compile(`(?i)` + regexp.QuoteMeta(token))
}

// Refine returns a new record with is_multi_valued and values populated
// on every field. raw_value is kept untouched as the audit trail, which
// also makes Refine idempotent: re-running it on its own output yields
// an identical record.
func (s *Splitter) Refine(rec *record.CountryRecord) *record.CountryRecord {
	out := rec.Clone()
	for i := range out.Fields {
		s.refineField(&out.Fields[i])
	}
	return out
}

func (s *Splitter) refineField(f *record.FieldEntry) {
	segments := s.split(f.RawValue)
	if len(segments) >= 2 {
		f.IsMultiValued = true
		f.Values = make([]record.FieldValue, len(segments))
		for i, seg := range segments {
			f.Values[i] = record.FieldValue{
				Value: seg,
				Order: i,
				Year:  extractYear(seg, s.maxYearLen),
			}
		}
		return
	}

	f.IsMultiValued = false
	single := strings.TrimSpace(f.RawValue)
	if len(segments) == 1 {
		single = segments[0]
	}
	f.Values = []record.FieldValue{{
		Value: single,
		Order: 0,
		Year:  extractYear(single, s.maxYearLen),
	}}
}

// split cuts raw on the marker, trims each segment, and drops segments
// that trim to nothing. Order of the survivors is source order.
func (s *Splitter) split(raw string) []string {
	parts := s.marker.Split(raw, -1)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			segments = append(segments, t)
		}
	}
	return segments
}

// RefineAll refines every record in order and aggregates the run-level
// report. A field entry with no name is counted as a refinement failure
// for that entry and kept as-is; it never aborts the record or the run.
func (s *Splitter) RefineAll(records []*record.CountryRecord) ([]*record.CountryRecord, *Report) {
	agg := newReportBuilder()
	refined := make([]*record.CountryRecord, 0, len(records))
	for _, rec := range records {
		out := rec.Clone()
		for i := range out.Fields {
			f := &out.Fields[i]
			if f.Name == "" {
				agg.addFailure()
				continue
			}
			s.refineField(f)
			agg.addField(f)
		}
		refined = append(refined, out)
	}
	return refined, agg.finish(len(records))
}
