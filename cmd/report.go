// File: cmd/report.go
package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/skryptik/sift-cli/internal/observability"
	"github.com/skryptik/sift-cli/internal/reporting"
	"github.com/skryptik/sift-cli/internal/runstore"
)

// newReportCmd creates and configures the `report` command, which renders
// an archived run as markdown.
func newReportCmd() *cobra.Command {
	var (
		runID      string
		outputPath string
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Renders an archived run as a markdown report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if cfg.Archive.URL == "" {
				return fmt.Errorf("archive database URL is not configured (SIFT_ARCHIVE_URL)")
			}

			pool, err := pgxpool.New(ctx, cfg.Archive.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to archive database: %w", err)
			}
			defer pool.Close()

			store, err := runstore.New(ctx, pool, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize run store: %w", err)
			}

			run, scenes, err := store.GetRun(ctx, runID)
			if err != nil {
				return err
			}

			reporter, err := reporting.New(outputPath)
			if err != nil {
				return err
			}
			defer reporter.Close()
			return reporter.Write(run, scenes)
		},
	}

	reportCmd.Flags().StringVar(&runID, "run-id", "", "ID of the archived run to report on")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "stdout", "where to write the report")
	_ = reportCmd.MarkFlagRequired("run-id")

	return reportCmd
}

func init() {
	rootCmd.AddCommand(newReportCmd())
}
