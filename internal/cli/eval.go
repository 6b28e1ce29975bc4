package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nutriguide/internal/app"
)

var (
	evalJSON    bool
	evalVerbose bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Check that every dataset question retrieves its own answer",
	Long: `Route every question of the loaded dataset back through the assistant and
report how many are answered from their own entry. A miss usually means two
groups ask near-identical questions with different answers.

Examples:
  nutriguide eval
  nutriguide eval --verbose`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output as JSON")
	evalCmd.Flags().BoolVarP(&evalVerbose, "verbose", "v", false, "list every miss")
}

// EvalReport summarizes a self-match run.
type EvalReport struct {
	Total     int      `json:"total"`
	Grounded  int      `json:"grounded"`
	Correct   int      `json:"correct"`
	Accuracy  float64  `json:"accuracy"`
	MeanScore float64  `json:"mean_score"`
	Threshold float64  `json:"threshold"`
	Misses    []string `json:"misses,omitempty"`
}

func runEval(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), app.Options{}, !evalJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	docs := a.Assistant.Documents()
	report := EvalReport{Total: len(docs), Threshold: cfg.Retrieve.Threshold}

	var progress func(done, total int)
	if !evalJSON {
		progress = newProgress("Evaluating")
	}

	var scoreSum float64
	for i, doc := range docs {
		d, results, err := a.Assistant.Route(cmd.Context(), doc.Question)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			scoreSum += results[0].Score
		}
		if d.Sufficient {
			report.Grounded++
		}
		if d.Sufficient && d.Best.Document.Answer == doc.Answer {
			report.Correct++
		} else {
			report.Misses = append(report.Misses, doc.Question)
		}
		if progress != nil {
			progress(i+1, len(docs))
		}
	}
	if report.Total > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.Total)
		report.MeanScore = scoreSum / float64(report.Total)
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, "SELF-MATCH EVALUATION")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Entries:    %d\n", report.Total)
	fmt.Fprintf(out, "Grounded:   %d\n", report.Grounded)
	fmt.Fprintf(out, "Correct:    %d (%.1f%%)\n", report.Correct, report.Accuracy*100)
	fmt.Fprintf(out, "Mean score: %.4f (threshold %.2f)\n", report.MeanScore, report.Threshold)
	if evalVerbose && len(report.Misses) > 0 {
		fmt.Fprintln(out, "\nMisses:")
		for _, q := range report.Misses {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}
