package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nutriguide/internal/adapter/fs"
	"nutriguide/internal/app"
	"nutriguide/internal/server"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over HTTP",
	Long: `Load the dataset and serve the HTTP API.

With --watch the dataset file is watched and the knowledge base is replaced
whenever it changes. A file that fails validation is logged and ignored.

Examples:
  nutriguide serve
  nutriguide serve --addr :9090 --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "replace the knowledge base when the dataset file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveWatch {
		cfg.Dataset.Watch = true
	}

	a, err := loadApp(ctx, app.Options{WithGenerator: true}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Dataset.Watch {
		if cfg.Dataset.Dir != "" {
			return fmt.Errorf("--watch needs dataset.path, not dataset.dir")
		}
		if err := watchDataset(ctx, a); err != nil {
			return err
		}
	}

	return server.New(cfg.Server, a.Assistant, logger.Named("http")).Run(ctx)
}

func watchDataset(ctx context.Context, a *app.App) error {
	w, err := fs.NewWatcher(cfg.Dataset.Path, cfg.Dataset.Debounce, logger.Named("watch"))
	if err != nil {
		return fmt.Errorf("failed to watch dataset: %w", err)
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch dataset: %w", err)
	}

	go func() {
		defer w.Stop()
		for path := range changes {
			rev, err := a.ReloadFile(ctx, path)
			if err != nil {
				logger.Error("dataset reload rejected, keeping current knowledge base",
					zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Info("dataset reloaded", zap.String("path", path), zap.String("revision", rev.ID))
		}
	}()
	return nil
}
