package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"nutriguide/config"
	"nutriguide/internal/adapter/analyzer"
	"nutriguide/internal/app"
	"nutriguide/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding nutriguide.yaml")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 5, "Number of neighbours to show")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\"")
		fmt.Println("\nShows:")
		fmt.Println("  1. Embedder and knowledge base in use")
		fmt.Println("  2. The nearest entries with their similarity")
		fmt.Println("  3. Which branch the configured threshold picks")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Retrieve.CacheSize = 0

	a, err := app.New(cfg, nil, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx := context.Background()
	rev, err := a.LoadDataset(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("THRESHOLD PROBE")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Entries:   %d (%d groups)\n", rev.Documents, rev.Groups)
	fmt.Printf("Embedder:  %s (%d dims)\n", a.Embedder.ModelName(), a.Embedder.Dimension())
	fmt.Printf("Threshold: %.2f\n\n", cfg.Retrieve.Threshold)

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	vecs, err := a.Embedder.Embed(ctx, []string{analyzer.Normalize(*query)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	results, err := a.Index.Search(vecs[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("Knowledge base is empty.")
		return
	}

	for i, r := range results {
		mark := "below"
		if r.Score >= cfg.Retrieve.Threshold {
			mark = "ABOVE"
		}
		fmt.Printf("%d. [%s %.3f] #%d %s\n", i+1, mark, r.Score, r.Document.ID, r.Document.Question)
		fmt.Printf("   %s\n\n", preview(r.Document.Answer))
	}

	d := usecase.Decide(results, cfg.Retrieve.Threshold)
	fmt.Println(strings.Repeat("=", 70))
	if d.Sufficient {
		fmt.Printf("Branch: grounded (margin %+.3f)\n", d.Best.Score-cfg.Retrieve.Threshold)
	} else {
		fmt.Printf("Branch: fallback (short by %.3f)\n", cfg.Retrieve.Threshold-results[0].Score)
	}
	if len(results) > 1 {
		fmt.Printf("Gap to runner-up: %.3f\n", results[0].Score-results[1].Score)
	}
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
