package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nutriguide/internal/app"
)

var promptCmd = &cobra.Command{
	Use:   "prompt <question>",
	Short: "Print the prompt a question would be answered with",
	Long: `Route the question and print the exact prompt that would be sent to the
language model, without calling it. No API key is needed.

Examples:
  nutriguide prompt "What should I eat if I have diabetes?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPromptCmd,
}

func init() {
	rootCmd.AddCommand(promptCmd)
}

func runPromptCmd(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	a, err := loadApp(cmd.Context(), app.Options{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt, d, err := a.Assistant.Prompt(cmd.Context(), question)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if d.Sufficient {
		fmt.Fprintf(out, "--- grounded (doc %d, score %.4f, threshold %.2f) ---\n",
			d.Best.Document.ID, d.Best.Score, cfg.Retrieve.Threshold)
	} else {
		fmt.Fprintf(out, "--- fallback (threshold %.2f) ---\n", cfg.Retrieve.Threshold)
	}
	fmt.Fprintln(out, prompt)
	return nil
}
