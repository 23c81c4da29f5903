package main

import (
	"github.com/spf13/cobra"

	"factharvest/server"
)

var (
	serveAddr      string
	serveNoHistory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots over a read-only HTTP API and MCP tools",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		ctx, cancel := signalContext()
		defer cancel()

		var opts []server.Option
		if !serveNoHistory {
			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			opts = append(opts, server.WithHistory(store))
		}
		return server.New(cfg, newLogger(), opts...).Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoHistory, "no-history", false, "disable the history endpoints and tools")

	rootCmd.AddCommand(serveCmd)
}
