package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pzntech/showcase-crawler/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP server and the interval scheduler",
		Long: `Starts the showcase API server. When scraper.interval_minutes is set,
a background scheduler also triggers a reconciliation run at that cadence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			return a.Run(cmd.Context())
		},
	}
}
