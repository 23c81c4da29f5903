// CLAUDE:SUMMARY CLI entry point — cobra commands for discover, scrape, refine, export, serve, and history inspection.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"factharvest/config"
	"factharvest/history"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	cfgFile  string
	logLevel string
	dataDir  string
)

var rootCmd = &cobra.Command{
	Use:           "factharvest",
	Short:         "Harvest, refine, and analyze World Factbook country data",
	Long:          "factharvest scrapes structured country facts from the site's page-data JSON,\nsplits multi-valued fields, builds a cross-country field catalog, and tracks\nhow field coverage evolves across snapshots.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "factharvest.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the configured data directory")
}

func newLogger() *slog.Logger {
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	return cfg, nil
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	return history.Open(cfg.Paths.HistoryDB)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
