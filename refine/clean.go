// CLAUDE:SUMMARY Strips residual HTML from field values for display surfaces.
package refine

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText strips any residual markup from a field value and decodes
// HTML entities, for display surfaces like spreadsheet exports. The
// refinement pipeline itself never calls this: segment content is left
// byte-for-byte as the source delivered it.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
