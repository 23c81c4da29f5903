package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"factharvest/pipeline"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Refresh the country index and category mapping from the source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		idx, mapped, err := pipeline.New(cfg, newLogger()).Discover(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "discovered %d countries (%d urls), mapped %d fields\n",
			idx.Metadata.TotalCountries, idx.Metadata.TotalURLs, mapped)
		return nil
	},
}

var (
	scrapeDate      string
	scrapeCountries []string
	scrapeDryRun    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch every indexed country into a dated raw snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		var opts []pipeline.Option
		if len(scrapeCountries) > 0 {
			opts = append(opts, pipeline.WithCountries(scrapeCountries))
		}
		if scrapeDryRun {
			opts = append(opts, pipeline.WithDryRun())
		}
		summary, err := pipeline.New(cfg, newLogger(), opts...).Scrape(ctx, scrapeDate)
		if err != nil {
			return err
		}
		if scrapeDryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d countries would be scraped\n", summary.TotalCountries)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d scraped, %d skipped, %d failed\n",
			summary.SnapshotDate, summary.Succeeded, summary.Skipped, summary.Failed)
		return nil
	},
}

var (
	refineDate      string
	refineNoHistory bool
)

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Split multi-valued fields and build the catalog for a snapshot",
	Long:  "refine loads a snapshot's raw records, attaches categories, splits\nmulti-valued fields, persists refined records, and writes the field catalog\nand multi-value report. The run is recorded in the history database unless\n--no-history is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		var opts []pipeline.Option
		if !refineNoHistory {
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			opts = append(opts, pipeline.WithHistory(store))
		}

		summary, err := pipeline.New(cfg, newLogger(), opts...).Refine(ctx, refineDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d refined, %d failed, %d catalog fields (%.1f%% multi-valued)\n",
			summary.SnapshotDate, summary.Succeeded, summary.Failed,
			summary.Catalog.TotalFields, summary.Report.MultiValuedPercentage)
		return nil
	},
}

var (
	analyzeDate      string
	analyzeNoHistory bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rebuild the field catalog from already-refined records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		var opts []pipeline.Option
		if !analyzeNoHistory {
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			opts = append(opts, pipeline.WithHistory(store))
		}

		cat, err := pipeline.New(cfg, newLogger(), opts...).Analyze(ctx, analyzeDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d fields across %d countries (%d universal, %d common, %d rare)\n",
			cat.TotalFields, cat.TotalCountries,
			cat.Summary.Universal, cat.Summary.Common, cat.Summary.Rare)
		return nil
	},
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeDate, "date", "", "snapshot date (YYYY-MM-DD, default today)")
	scrapeCmd.Flags().StringSliceVar(&scrapeCountries, "countries", nil, "restrict to these country slugs")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "list what would be scraped without fetching")
	refineCmd.Flags().StringVar(&refineDate, "date", "", "snapshot date (YYYY-MM-DD, default latest)")
	refineCmd.Flags().BoolVar(&refineNoHistory, "no-history", false, "skip recording the catalog in the history database")
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "snapshot date (YYYY-MM-DD, default latest)")
	analyzeCmd.Flags().BoolVar(&analyzeNoHistory, "no-history", false, "skip recording the catalog in the history database")

	rootCmd.AddCommand(discoverCmd, scrapeCmd, refineCmd, analyzeCmd)
}
