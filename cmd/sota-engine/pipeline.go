// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sota-engine/internal/fetch"
	"github.com/pdiddy/sota-engine/internal/parse"
	"github.com/pdiddy/sota-engine/internal/scan"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the whole pipeline end to end",
	Long: `Pipeline runs scan, fetch, parse, filter, extract and leaderboard in
sequence. Every stage consults its cache first, so an interrupted run
(or a run that stopped at the model-call budget) resumes from where it
left off. Per-paper failures are reported per stage and never abort the
run; the pipeline stops early only when a stage produces nothing for
the next one to work on.`,
	RunE: runPipeline,
}

func init() {
	pipelineCmd.Flags().String("criteria", "criteria.yaml", "selection criteria YAML file")
	pipelineCmd.Flags().Int("max-calls", 0, "model call budget for this run (0 = config, -1 = unlimited)")
	pipelineCmd.Flags().Bool("force-extract", false, "re-extract papers with cached results")

	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	pcfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	out := os.Stdout

	// Scan.
	criteriaPath, _ := cmd.Flags().GetString("criteria")
	crit, err := loadCriteria(criteriaPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "==> scan")
	set, summary, err := scan.ScanFile(crit, pcfg.Scan, out)
	if err != nil {
		return err
	}
	if err := scan.WriteCandidates(set, pcfg.Scan.DataDir); err != nil {
		return err
	}
	fmt.Fprintf(out, "scanned %d records: %d matched, %d malformed\n",
		summary.Scanned, summary.Matched, summary.Malformed)
	if len(set.Records) == 0 {
		return fmt.Errorf("no candidates matched the criteria")
	}

	// Fetch. Failures are reported but the pipeline continues with what
	// it has.
	fmt.Fprintln(out, "\n==> fetch")
	client := &http.Client{Timeout: pcfg.Fetch.Timeout}
	fetchResult := fetch.FetchBatch(ctx, client, set, pcfg.Fetch, out)
	if fetchResult.Downloaded+fetchResult.Cached == 0 {
		return fmt.Errorf("no PDFs available after fetch")
	}

	// Parse.
	fmt.Fprintln(out, "\n==> parse")
	extractor, err := newExtractor(pcfg.Parse)
	if err != nil {
		return err
	}
	parse.ParseBatch(extractor, set, pcfg.Parse, out)

	// Filter.
	fmt.Fprintln(out, "\n==> filter")
	docs, err := filteredDocs(pcfg, out)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no papers passed the content filter")
	}

	// Extract.
	fmt.Fprintln(out, "\n==> extract")
	extractCfg := pcfg.Extraction
	if v, _ := cmd.Flags().GetInt("max-calls"); v != 0 {
		extractCfg.MaxCalls = v
	}
	force, _ := cmd.Flags().GetBool("force-extract")
	extractSummary, err := runExtraction(ctx, docs, extractCfg, force, out)
	if err != nil {
		return err
	}

	// Leaderboard.
	fmt.Fprintln(out, "\n==> leaderboard")
	if err := buildLeaderboard(ctx, pcfg.Leaderboard, out); err != nil {
		return err
	}

	if extractSummary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed extraction", extractSummary.Failed)
	}
	return nil
}
