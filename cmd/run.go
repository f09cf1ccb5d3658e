// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/observability"
	"github.com/skryptik/sift-cli/internal/reporting"
	"github.com/skryptik/sift-cli/internal/runner"
	"github.com/skryptik/sift-cli/internal/runstore"
	"github.com/skryptik/sift-cli/internal/selector"
	"github.com/skryptik/sift-cli/internal/snapshot"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		query      string
		backend    string
		provider   string
		headful    bool
		reportPath string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the scripted search task: snapshot, filter, select, act",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Flags override whatever the config file and environment set.
			if backend != "" {
				cfg.Snapshot.Backend = backend
			}
			if provider != "" {
				cfg.Selector.Provider = provider
			}
			if headful {
				cfg.Snapshot.Headless = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			page, err := snapshot.New(ctx, cfg.Snapshot, logger)
			if err != nil {
				return fmt.Errorf("failed to start snapshot backend: %w", err)
			}
			defer func() {
				if closeErr := page.Close(context.Background()); closeErr != nil {
					logger.Warn("Browser shutdown failed", zap.Error(closeErr))
				}
			}()

			sel, err := selector.New(ctx, cfg.Selector, logger)
			if err != nil {
				return fmt.Errorf("failed to build selector: %w", err)
			}

			r := runner.New(page, sel, *cfg, logger)
			task := runner.GoogleSearchTask(query, cfg.Scenes)

			run, records, runErr := r.Run(ctx, task)

			// Archive and report in parallel; both want the full record set
			// even when the run itself failed.
			g, gctx := errgroup.WithContext(context.Background())
			if cfg.Archive.Enabled {
				g.Go(func() error { return archiveRun(gctx, run, records) })
			}
			g.Go(func() error { return writeReport(reportPath, run, records) })
			if err := g.Wait(); err != nil {
				logger.Error("Post-run processing failed", zap.Error(err))
				if runErr == nil {
					runErr = err
				}
			}

			summary := r.Usage()
			for _, scene := range summary.Scenes {
				logger.Info("Scene token usage",
					zap.String("scene", scene.Scene),
					zap.Int("prompt", scene.Usage.PromptTokens),
					zap.Int("completion", scene.Usage.CompletionTokens),
					zap.Int("total", scene.Usage.TotalTokens))
			}
			logger.Info("Run token usage", zap.Int("total", summary.Total.TotalTokens))

			return runErr
		},
	}

	runCmd.Flags().StringVarP(&query, "query", "q", "best hiking trails", "search query the task types into the engine")
	runCmd.Flags().StringVar(&backend, "backend", "", "snapshot backend: chromedp or playwright (overrides config)")
	runCmd.Flags().StringVar(&provider, "selector", "", "selector provider: gemini, openai or rule (overrides config)")
	runCmd.Flags().BoolVar(&headful, "headful", false, "run the browser with a visible window")
	runCmd.Flags().StringVarP(&reportPath, "report", "o", "stdout", "where to write the markdown report")

	return runCmd
}

func archiveRun(ctx context.Context, run schemas.RunRecord, records []schemas.SceneRecord) error {
	logger := observability.GetLogger()

	pool, err := pgxpool.New(ctx, cfg.Archive.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to archive database: %w", err)
	}
	defer pool.Close()

	store, err := runstore.New(ctx, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.SaveRun(ctx, run, records); err != nil {
		return err
	}
	logger.Info("Run archived", zap.String("run_id", run.ID))
	return nil
}

func writeReport(path string, run schemas.RunRecord, records []schemas.SceneRecord) error {
	reporter, err := reporting.New(path)
	if err != nil {
		return err
	}
	defer reporter.Close()
	return reporter.Write(run, records)
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
