// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/internal/config"
	"github.com/skryptik/sift-cli/internal/observability"
)

var (
	cfgFile string

	// cfg is populated by the root PersistentPreRunE and read by every
	// subcommand.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "sift",
	Short:   "Sift captures browser snapshots and filters them down to actionable elements.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file in the working directory supplies API keys during
		// development. Missing files are fine.
		_ = godotenv.Load()

		loaded, err := config.Load(cfgFile)
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "sift"})
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting sift", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with a signal-aware context from main.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./sift.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
