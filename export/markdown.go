// CLAUDE:SUMMARY Renders per-country markdown reports from refined records.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"factharvest/catalog"
	"factharvest/record"
)

// MarkdownRenderer converts refined country records into readable
// markdown reports. Field values keep their inline markup, converted
// to markdown equivalents.
type MarkdownRenderer struct {
	conv *converter.Converter
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

func (r *MarkdownRenderer) toMarkdown(html string) string {
	if html == "" {
		return ""
	}
	result, err := r.conv.ConvertString(html)
	if err != nil || strings.TrimSpace(result) == "" {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(result)
}

// Country renders one record. Fields are grouped by category, with
// uncategorized fields last; multi-valued fields become lists.
func (r *MarkdownRenderer) Country(rec *record.CountryRecord) string {
	var b strings.Builder
	title := rec.Name
	if title == "" {
		title = rec.CountryID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if rec.Region != "" {
		fmt.Fprintf(&b, "**Region:** %s  \n", rec.Region)
	}
	if rec.LastUpdated != "" {
		fmt.Fprintf(&b, "**Last updated:** %s  \n", rec.LastUpdated)
	}
	if rec.SourceURL != "" {
		fmt.Fprintf(&b, "**Source:** %s  \n", rec.SourceURL)
	}
	b.WriteString("\n")

	for _, category := range categoriesInOrder(rec) {
		label := category
		if label == "" {
			label = "Uncategorized"
		}
		fmt.Fprintf(&b, "## %s\n\n", label)
		for _, fe := range rec.Fields {
			if fe.Category != category {
				continue
			}
			r.writeField(&b, &fe)
		}
	}
	return b.String()
}

func (r *MarkdownRenderer) writeField(b *strings.Builder, fe *record.FieldEntry) {
	fmt.Fprintf(b, "### %s\n\n", fe.Name)
	if fe.IsMultiValued {
		for _, v := range fe.Values {
			text := r.toMarkdown(v.Value)
			if v.Year != "" {
				fmt.Fprintf(b, "- %s *(year %s)*\n", text, v.Year)
			} else {
				fmt.Fprintf(b, "- %s\n", text)
			}
		}
		b.WriteString("\n")
		return
	}
	if len(fe.Values) > 0 {
		fmt.Fprintf(b, "%s\n\n", r.toMarkdown(fe.Values[0].Value))
		return
	}
	fmt.Fprintf(b, "%s\n\n", r.toMarkdown(fe.RawValue))
}

// categoriesInOrder returns the distinct categories in first-seen
// order, with the uncategorized bucket moved to the end.
func categoriesInOrder(rec *record.CountryRecord) []string {
	seen := make(map[string]bool)
	var out []string
	hasUncategorized := false
	for _, fe := range rec.Fields {
		if fe.Category == "" {
			hasUncategorized = true
			continue
		}
		if !seen[fe.Category] {
			seen[fe.Category] = true
			out = append(out, fe.Category)
		}
	}
	if hasUncategorized {
		out = append(out, "")
	}
	return out
}

// CatalogSummary renders the field catalog as a markdown table,
// widest-coverage fields first.
func (r *MarkdownRenderer) CatalogSummary(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("# Field Catalog\n\n")
	fmt.Fprintf(&b, "%d distinct fields across %d countries: %d universal, %d common, %d rare.\n\n",
		cat.TotalFields, cat.TotalCountries,
		cat.Summary.Universal, cat.Summary.Common, cat.Summary.Rare)
	b.WriteString("| Field | Category | Countries | Coverage | Band |\n")
	b.WriteString("|---|---|---:|---:|---|\n")

	fields := make([]catalog.Entry, len(cat.Fields))
	copy(fields, cat.Fields)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].CoverageRatio > fields[j].CoverageRatio
	})
	for _, e := range fields {
		category := e.Key.Category
		if category == "" {
			category = catalog.Uncategorized
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %.1f%% | %s |\n",
			e.DisplayName, category, e.CountriesPresent, e.CoverageRatio*100, e.Band)
	}
	return b.String()
}
