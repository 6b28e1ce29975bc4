package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nutriguide/config"
	"nutriguide/internal/app"
	"nutriguide/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nutriguide",
	Short: "NutriGuide - answer nutrition questions from a curated FAQ",
	Long: `NutriGuide answers natural-language questions from a fixed knowledge base
of question/answer pairs. A question close enough to a known entry is answered
from that entry; anything else gets a polite fallback.

Example usage:
  nutriguide serve --watch                          # HTTP API, reload on dataset change
  nutriguide ask "What should I eat with diabetes?" # one-off question
  nutriguide ingest new_faq.json --install          # validate and install a dataset
  nutriguide eval                                   # self-match accuracy`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./nutriguide.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// loadApp builds the application and loads the configured dataset.
func loadApp(ctx context.Context, opts app.Options, showProgress bool) (*app.App, error) {
	a, err := app.New(cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	var progress func(done, total int)
	if showProgress {
		progress = newProgress("Embedding")
	}
	if _, err := a.LoadDataset(ctx, progress); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return a, nil
}
