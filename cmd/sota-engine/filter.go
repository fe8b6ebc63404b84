// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sota-engine/internal/contentfilter"
	"github.com/pdiddy/sota-engine/internal/parse"
	"github.com/pdiddy/sota-engine/pkg/types"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter parsed papers on content",
	Long: `Filter applies content-level rules to the parsed papers: keyword groups
over the extracted text, required section headings, and a minimum text
length. Papers that fail are excluded from extraction, so every
excluded paper is a model call saved. The decision for each paper is
printed with the keywords that matched.`,
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().String("papers-dir", "", "base directory for papers")
	filterCmd.Flags().String("data-dir", "", "directory holding the candidate set")

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	pcfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	parseCfg := pcfg.Parse
	dataDir := pcfg.Scan.DataDir

	if v, _ := cmd.Flags().GetString("papers-dir"); v != "" {
		parseCfg.PapersDir = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		dataDir = v
	}

	set, err := candidateSet(dataDir)
	if err != nil {
		return err
	}

	docs := parsedDocs(set, parseCfg)
	if len(docs) == 0 {
		return fmt.Errorf("no parsed papers; run \"sota-engine parse\" first")
	}

	_, _, summary := contentfilter.Filter(docs, pcfg.ContentFilter, os.Stdout)
	if summary.Included == 0 {
		fmt.Fprintln(os.Stdout, "no papers passed the content filter")
	}
	return nil
}

// parsedDocs loads every cached parsed paper for the candidate set, in
// candidate order. Papers without a cache entry are skipped; a later
// parse run can pick them up.
func parsedDocs(set types.CandidateSet, cfg types.ParseConfig) []*types.ParsedPaper {
	var docs []*types.ParsedPaper
	for _, record := range set.Records {
		doc, err := parse.ReadCached(cfg, record.ID)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
