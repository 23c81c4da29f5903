// Package export renders refined snapshots for human consumption: a
// filterable spreadsheet of every field value, and per-country
// markdown reports.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"factharvest/catalog"
	"factharvest/record"
	"factharvest/refine"
)

// XLSXOptions filter what lands in the workbook. Empty filters mean
// everything.
type XLSXOptions struct {
	Countries  []string
	Categories []string
}

var fieldHeaders = []string{
	"Country", "Country Slug", "Field Name", "Database ID", "Category",
	"Multi-Valued", "Value", "Order", "Year", "Has Ranking",
}

var catalogHeaders = []string{
	"Display Name", "Database ID", "Category", "Countries Present",
	"Coverage", "Band",
}

// WriteXLSX builds a workbook with a Summary sheet, the flat Fields
// sheet, and the Catalog sheet, and saves it to path.
func WriteXLSX(path string, records []*record.CountryRecord, cat *catalog.Catalog, opts XLSXOptions, now time.Time) error {
	records = filterRecords(records, opts)
	if len(records) == 0 {
		return fmt.Errorf("export: no records match the given filters")
	}

	f := excelize.NewFile()
	defer f.Close()

	rowCount, err := writeFieldsSheet(f, records)
	if err != nil {
		return err
	}
	if cat != nil {
		if err := writeCatalogSheet(f, cat); err != nil {
			return err
		}
	}
	if err := writeSummarySheet(f, records, cat, rowCount, now); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex("Summary")
	if err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func filterRecords(records []*record.CountryRecord, opts XLSXOptions) []*record.CountryRecord {
	countrySet := toSet(opts.Countries)
	categorySet := toSet(opts.Categories)
	var out []*record.CountryRecord
	for _, rec := range records {
		if countrySet != nil {
			if _, ok := countrySet[rec.CountryID]; !ok {
				continue
			}
		}
		if categorySet == nil {
			out = append(out, rec)
			continue
		}
		filtered := rec.Clone()
		filtered.Fields = filtered.Fields[:0]
		for _, fe := range rec.Fields {
			if _, ok := categorySet[fe.Category]; ok {
				filtered.Fields = append(filtered.Fields, fe)
			}
		}
		if len(filtered.Fields) > 0 {
			out = append(out, filtered)
		}
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	if len(list) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

func writeFieldsSheet(f *excelize.File, records []*record.CountryRecord) (int, error) {
	const sheet = "Fields"
	if _, err := f.NewSheet(sheet); err != nil {
		return 0, fmt.Errorf("export: new sheet %s: %w", sheet, err)
	}
	if err := writeRow(f, sheet, 1, toAny(fieldHeaders)); err != nil {
		return 0, err
	}

	row := 2
	for _, rec := range records {
		for _, fe := range rec.Fields {
			category := fe.Category
			if category == "" {
				category = catalog.Uncategorized
			}
			for _, v := range fe.Values {
				cells := []any{
					rec.Name, rec.CountryID, fe.Name, fe.DatabaseID, category,
					fe.IsMultiValued, refine.PlainText(v.Value), v.Order, v.Year, fe.HasRanking,
				}
				if err := writeRow(f, sheet, row, cells); err != nil {
					return 0, err
				}
				row++
			}
		}
	}
	if err := styleSheet(f, sheet, len(fieldHeaders), row-1); err != nil {
		return 0, err
	}
	return row - 2, nil
}

func writeCatalogSheet(f *excelize.File, cat *catalog.Catalog) error {
	const sheet = "Catalog"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: new sheet %s: %w", sheet, err)
	}
	if err := writeRow(f, sheet, 1, toAny(catalogHeaders)); err != nil {
		return err
	}
	for i, e := range cat.Fields {
		category := e.Key.Category
		if category == "" {
			category = catalog.Uncategorized
		}
		cells := []any{
			e.DisplayName, e.Key.DatabaseID, category, e.CountriesPresent,
			fmt.Sprintf("%.1f%%", e.CoverageRatio*100), e.Band,
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return styleSheet(f, sheet, len(catalogHeaders), len(cat.Fields)+1)
}

func writeSummarySheet(f *excelize.File, records []*record.CountryRecord, cat *catalog.Catalog, rowCount int, now time.Time) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: new sheet %s: %w", sheet, err)
	}
	lines := [][]any{
		{"Export Summary", ""},
		{"", ""},
		{"Export Date", now.UTC().Format("2006-01-02 15:04:05 UTC")},
		{"Total Countries", len(records)},
		{"Total Value Rows", rowCount},
	}
	if cat != nil {
		lines = append(lines,
			[]any{"Distinct Fields", cat.TotalFields},
			[]any{"Universal Fields", cat.Summary.Universal},
			[]any{"Common Fields", cat.Summary.Common},
			[]any{"Rare Fields", cat.Summary.Rare},
		)
	}
	for i, line := range lines {
		if err := writeRow(f, sheet, i+1, line); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "B", 24)
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	ref, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("export: cell ref: %w", err)
	}
	if err := f.SetSheetRow(sheet, ref, &cells); err != nil {
		return fmt.Errorf("export: write row %d on %s: %w", row, sheet, err)
	}
	return nil
}

func styleSheet(f *excelize.File, sheet string, cols, lastRow int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	endHeader, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}
	if lastRow > 1 {
		end, err := excelize.CoordinatesToCellName(cols, lastRow)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(sheet, "A1:"+end, nil); err != nil {
			return fmt.Errorf("export: auto filter: %w", err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freeze header: %w", err)
	}
	endCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", endCol, 22)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
