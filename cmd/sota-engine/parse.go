// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sota-engine/internal/container"
	"github.com/pdiddy/sota-engine/internal/parse"
	"github.com/pdiddy/sota-engine/pkg/types"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract text from fetched PDFs",
	Long: `Parse runs every fetched PDF through pdftotext (in a docker or podman
container) and caches the per-page text, grouped into sections, in
papers/parsed/. A paper that cannot be parsed is recorded as failed and
excluded downstream; the batch continues. Use --invalidate to force a
re-parse of one paper.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().String("papers-dir", "", "base directory for papers")
	parseCmd.Flags().String("data-dir", "", "directory holding the candidate set")
	parseCmd.Flags().Int("max-pages", 0, "pages to extract per paper (0 = config)")
	parseCmd.Flags().String("invalidate", "", "drop the cached parse for a paper ID and exit")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	pcfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	cfg := pcfg.Parse
	dataDir := pcfg.Scan.DataDir

	if v, _ := cmd.Flags().GetString("papers-dir"); v != "" {
		cfg.PapersDir = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		dataDir = v
	}
	if v, _ := cmd.Flags().GetInt("max-pages"); v != 0 {
		cfg.MaxPages = v
	}

	if id, _ := cmd.Flags().GetString("invalidate"); id != "" {
		if err := parse.Invalidate(cfg, id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "invalidated parse cache for %s\n", id)
		return nil
	}

	set, err := candidateSet(dataDir)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	result := parse.ParseBatch(extractor, set, cfg, os.Stdout)
	if result.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed to parse", result.Failed)
	}
	return nil
}

// newExtractor builds the configured text extractor. Only the
// container-based pdftotext backend exists today.
func newExtractor(cfg types.ParseConfig) (parse.Extractor, error) {
	switch cfg.Backend {
	case types.BackendPdftotext, "":
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		return parse.NewPdftotextExtractor(rt)
	default:
		return nil, fmt.Errorf("unknown parse backend %q", cfg.Backend)
	}
}
