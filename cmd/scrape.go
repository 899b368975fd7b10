package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pzntech/showcase-crawler/internal/app"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Runs a single reconciliation and exits",
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
			defer a.Close()

			return a.RunOnce(cmd.Context())
		},
	}
}
