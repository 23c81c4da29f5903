package parse

import (
	"regexp"
	"strings"
	"time"
)

// Source pages carry "updated" stamps in a handful of prose formats.
// Patterns run most-specific first; the first match wins.
var datePatterns = []struct {
	re     *regexp.Regexp
	layout string
	suffix string
}{
	{regexp.MustCompile(`[A-Za-z]+ \d{1,2}, \d{4}`), "January 2, 2006", ""},
	{regexp.MustCompile(`\d{1,2} [A-Za-z]+ \d{4}`), "2 January 2006", ""},
	{regexp.MustCompile(`[A-Za-z]+ \d{4}`), "January 2006", "-01"},
	{regexp.MustCompile(`\d{4}`), "2006", "-01-01"},
}

// NormalizeDate converts a prose date like "September 30, 2025" to
// ISO form. A string that matches no known format is returned as-is
// rather than dropped.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, p := range datePatterns {
		m := p.re.FindString(s)
		if m == "" {
			continue
		}
		t, err := time.Parse(p.layout, m)
		if err != nil {
			continue
		}
		switch p.suffix {
		case "-01":
			return t.Format("2006-01") + "-01"
		case "-01-01":
			return t.Format("2006") + "-01-01"
		default:
			return t.Format("2006-01-02")
		}
	}
	return s
}
