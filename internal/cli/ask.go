package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nutriguide/internal/app"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question",
	Long: `Load the dataset, route the question and print the generated answer.

Examples:
  nutriguide ask "What should I eat if I have diabetes?"
  nutriguide ask --json "Can I drink coffee?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	a, err := loadApp(cmd.Context(), app.Options{WithGenerator: true}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Assistant.Ask(cmd.Context(), question)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, resp.Text)
	if resp.SourceUsed {
		fmt.Fprintln(out, "\n(answered from the knowledge base)")
	} else {
		fmt.Fprintln(out, "\n(no matching knowledge base entry)")
	}
	return nil
}
