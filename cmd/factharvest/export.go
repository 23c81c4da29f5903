package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"factharvest/catalog"
	"factharvest/export"
	"factharvest/record"
	"factharvest/snapshot"
)

var (
	exportDate       string
	exportOut        string
	exportFormat     string
	exportCountries  []string
	exportCategories []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a refined snapshot as an XLSX workbook or markdown files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		layout := snapshot.New(cfg.Paths.DataDir, exportDate)
		if exportDate == "" {
			if layout, err = snapshot.Latest(cfg.Paths.DataDir); err != nil {
				return err
			}
		}

		records, loadErrs, err := record.NewStore(layout.RefinedDir()).LoadAll()
		if err != nil {
			return err
		}
		for _, lerr := range loadErrs {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", lerr)
		}
		var cat catalog.Catalog
		catPath := filepath.Join(layout.AnalysisDir(), "field_catalog.json")
		if err := snapshot.ReadJSON(catPath, &cat); err != nil {
			return fmt.Errorf("no catalog for snapshot %s, run refine first: %w", layout.Date, err)
		}

		switch exportFormat {
		case "xlsx":
			return exportXLSX(cmd, layout.Date, records, &cat)
		case "markdown":
			return exportMarkdown(cmd, records, &cat)
		default:
			return fmt.Errorf("unknown format %q, use xlsx or markdown", exportFormat)
		}
	},
}

func exportXLSX(cmd *cobra.Command, date string, records []*record.CountryRecord, cat *catalog.Catalog) error {
	out := exportOut
	if out == "" {
		out = fmt.Sprintf("factharvest-%s.xlsx", date)
	}
	opts := export.XLSXOptions{Countries: exportCountries, Categories: exportCategories}
	if err := export.WriteXLSX(out, records, cat, opts, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}

func exportMarkdown(cmd *cobra.Command, records []*record.CountryRecord, cat *catalog.Catalog) error {
	out := exportOut
	if out == "" {
		out = "."
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	keep := map[string]struct{}{}
	for _, slug := range exportCountries {
		keep[slug] = struct{}{}
	}

	renderer := export.NewMarkdownRenderer()
	written := 0
	for _, rec := range records {
		if len(keep) > 0 {
			if _, ok := keep[rec.CountryID]; !ok {
				continue
			}
		}
		path := filepath.Join(out, rec.CountryID+".md")
		if err := os.WriteFile(path, []byte(renderer.Country(rec)), 0o644); err != nil {
			return err
		}
		written++
	}
	summaryPath := filepath.Join(out, "catalog.md")
	if err := os.WriteFile(summaryPath, []byte(renderer.CatalogSummary(cat)), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d country files and catalog.md to %s\n", written, out)
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "snapshot date (YYYY-MM-DD, default latest)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (xlsx) or directory (markdown)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx or markdown")
	exportCmd.Flags().StringSliceVar(&exportCountries, "countries", nil, "restrict to these country slugs")
	exportCmd.Flags().StringSliceVar(&exportCategories, "categories", nil, "restrict to these categories (xlsx only)")

	rootCmd.AddCommand(exportCmd)
}
