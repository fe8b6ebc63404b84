// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sota-engine/internal/fetch"
	"github.com/pdiddy/sota-engine/internal/scan"
	"github.com/pdiddy/sota-engine/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download PDFs for the candidate set",
	Long: `Fetch downloads the PDF of every candidate paper into papers/raw/ and
writes a metadata record alongside it. Papers already in the cache are
skipped, so an interrupted run picks up where it stopped. Individual
failures (missing PDFs, transient network errors, corrupt downloads)
are recorded and the batch continues.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("papers-dir", "", "base directory for papers")
	fetchCmd.Flags().String("data-dir", "", "directory holding the candidate set")
	fetchCmd.Flags().Duration("delay", 0, "delay between consecutive downloads")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	pcfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	cfg := pcfg.Fetch
	dataDir := pcfg.Scan.DataDir

	if v, _ := cmd.Flags().GetString("papers-dir"); v != "" {
		cfg.PapersDir = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		dataDir = v
	}
	if v, _ := cmd.Flags().GetDuration("delay"); v != 0 {
		cfg.DownloadDelay = v
	}

	set, err := candidateSet(dataDir)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Timeout}
	result := fetch.FetchBatch(context.Background(), client, set, cfg, os.Stdout)
	return reportFetch(result)
}

func reportFetch(result fetch.BatchResult) error {
	if result.Failed() > 0 {
		return fmt.Errorf("%d paper(s) failed to fetch", result.Failed())
	}
	return nil
}

// candidateSet loads the cached candidate set for downstream stages.
func candidateSet(dataDir string) (types.CandidateSet, error) {
	set, err := scan.ReadCandidates(dataDir)
	if err != nil {
		return set, fmt.Errorf("no candidate set; run \"sota-engine scan\" first: %w", err)
	}
	return set, nil
}
