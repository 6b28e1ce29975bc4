package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nutriguide/internal/adapter/dataset"
	"nutriguide/internal/app"
)

var ingestInstall bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Validate and test-load a dataset",
	Long: `Validate a candidate dataset and load it into a scratch knowledge base.

With --install the file is then atomically moved over dataset.path, which a
running "serve --watch" picks up.

Examples:
  nutriguide ingest new_faq.json
  nutriguide ingest new_faq.json --install`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestInstall, "install", false, "install the file as the served dataset")
}

func runIngest(cmd *cobra.Command, args []string) error {
	src := args[0]

	groups, err := dataset.LoadFile(src)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	rev, err := a.Assistant.Load(cmd.Context(), groups, newProgress("Embedding"))
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dataset OK: %d groups, %d entries (embedder %s)\n",
		rev.Groups, rev.Documents, a.Embedder.ModelName())

	if !ingestInstall {
		return nil
	}
	if cfg.Dataset.Path == "" {
		return fmt.Errorf("--install needs dataset.path")
	}
	if err := installFile(src, cfg.Dataset.Path); err != nil {
		return fmt.Errorf("failed to install dataset: %w", err)
	}
	logger.Info("dataset installed", zap.String("from", src), zap.String("to", cfg.Dataset.Path))
	fmt.Fprintf(out, "Installed to %s\n", cfg.Dataset.Path)
	return nil
}

// installFile copies src next to dst and renames it into place so readers
// never see a partially written file.
func installFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".nutriguide-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
