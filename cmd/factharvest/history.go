package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"factharvest/catalog"
	"factharvest/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded snapshots and field coverage over time",
}

var historySnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List recorded snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := historyStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := store.Snapshots(cmd.Context())
		if err != nil {
			return err
		}
		for _, row := range rows {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  countries=%d fields=%d universal=%d common=%d rare=%d multi_valued=%.1f%%\n",
				row.Date, row.TotalCountries, row.TotalFields,
				row.Universal, row.Common, row.Rare, row.MultiValuedPct)
		}
		return nil
	},
}

var (
	trendDatabaseID int
	trendCategory   string
	trendName       string
)

var historyTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show one field's coverage across snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := historyStore()
		if err != nil {
			return err
		}
		defer store.Close()

		key := catalog.Key{DatabaseID: trendDatabaseID, Category: trendCategory, Name: trendName}
		points, err := store.FieldTrend(cmd.Context(), key)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			return fmt.Errorf("no coverage recorded for field %d", trendDatabaseID)
		}
		for _, p := range points {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d countries (%.1f%%, %s)\n",
				p.Date, p.CountriesPresent, p.CoverageRatio*100, p.Band)
		}
		return nil
	},
}

var diffFrom, diffTo string

var historyDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the field catalogs of two snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := historyStore()
		if err != nil {
			return err
		}
		defer store.Close()

		diff, err := store.CompareSnapshots(cmd.Context(), diffFrom, diffTo)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	},
}

func historyStore() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openHistory(cfg)
}

func init() {
	historyTrendCmd.Flags().IntVar(&trendDatabaseID, "database-id", 0, "numeric field identifier")
	historyTrendCmd.Flags().StringVar(&trendCategory, "category", "", "field category")
	historyTrendCmd.Flags().StringVar(&trendName, "name", "", "field name, for uncategorized fields")
	historyTrendCmd.MarkFlagRequired("database-id")

	historyDiffCmd.Flags().StringVar(&diffFrom, "from", "", "earlier snapshot date (YYYY-MM-DD)")
	historyDiffCmd.Flags().StringVar(&diffTo, "to", "", "later snapshot date (YYYY-MM-DD)")
	historyDiffCmd.MarkFlagRequired("from")
	historyDiffCmd.MarkFlagRequired("to")

	historyCmd.AddCommand(historySnapshotsCmd, historyTrendCmd, historyDiffCmd)
	rootCmd.AddCommand(historyCmd)
}
