package refine

import "regexp"

// Values longer than this are treated as descriptive prose rather than
// a simple data point, and no year is extracted from them.
const defaultMaxYearValueLen = 120

// Estimate-qualified years are tried first so "(2024 est.)" wins over a
// bare parenthesised year elsewhere in the same value.
var (
	yearEstPattern  = regexp.MustCompile(`\((\d{4}) est\.\)`)
	yearBarePattern = regexp.MustCompile(`\((\d{4})\)`)
)

// extractYear pulls a reporting year out of a value like
// "0.6% of GDP (2024 est.)". Values containing more than one year, or
// a single year inside text longer than maxLen, are left unannotated:
// those are historical narratives, not data points.
func extractYear(value string, maxLen int) string {
	if value == "" {
		return ""
	}
	found := len(yearEstPattern.FindAllString(value, -1)) +
		len(yearBarePattern.FindAllString(value, -1))
	if found != 1 || len(value) > maxLen {
		return ""
	}
	if m := yearEstPattern.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	if m := yearBarePattern.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return ""
}
