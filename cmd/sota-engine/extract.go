// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sota-engine/internal/contentfilter"
	"github.com/pdiddy/sota-engine/internal/extract"
	"github.com/pdiddy/sota-engine/internal/secrets"
	"github.com/pdiddy/sota-engine/internal/taxonomy"
	"github.com/pdiddy/sota-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured records via a Generative AI model",
	Long: `Extract sends each paper that passed the content filter to the
configured model (Gemini or Claude) and validates the response against
the extraction schema: field presence, paper type, taxonomy membership,
and metric normalization. A response that fails validation gets one
repair retry; a second failure is recorded as a terminal result.

Results are cached per paper and schema version, so re-running costs no
model calls for finished papers. --max-calls caps the model calls of
one run; papers beyond the budget stay eligible for the next run.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("provider", "", "model provider: gemini or claude")
	extractCmd.Flags().String("model", "", "model identifier")
	extractCmd.Flags().String("taxonomy", "", "taxonomy YAML file")
	extractCmd.Flags().Int("max-calls", 0, "model call budget for this run (0 = config, -1 = unlimited)")
	extractCmd.Flags().Int("concurrency", 0, "concurrent model calls (0 = config)")
	extractCmd.Flags().Bool("force", false, "re-extract papers with cached results")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	pcfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	cfg := pcfg.Extraction

	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := cmd.Flags().GetString("taxonomy"); v != "" {
		cfg.TaxonomyPath = v
	}
	if v, _ := cmd.Flags().GetInt("max-calls"); v != 0 {
		cfg.MaxCalls = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v != 0 {
		cfg.Concurrency = v
	}
	force, _ := cmd.Flags().GetBool("force")

	docs, err := filteredDocs(pcfg, io.Discard)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no papers passed the content filter; nothing to extract")
	}

	summary, err := runExtraction(context.Background(), docs, cfg, force, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed extraction", summary.Failed)
	}
	return nil
}

// filteredDocs loads the parsed candidate papers and applies the
// content filter, returning the papers eligible for extraction.
func filteredDocs(pcfg types.PipelineConfig, w io.Writer) ([]*types.ParsedPaper, error) {
	set, err := candidateSet(pcfg.Scan.DataDir)
	if err != nil {
		return nil, err
	}
	docs := parsedDocs(set, pcfg.Parse)
	if len(docs) == 0 {
		return nil, fmt.Errorf("no parsed papers; run \"sota-engine parse\" first")
	}
	_, included, _ := contentfilter.Filter(docs, pcfg.ContentFilter, w)
	return included, nil
}

// runExtraction wires up the taxonomy and model backend and runs the
// extraction batch. Shared by the extract and pipeline commands.
func runExtraction(ctx context.Context, docs []*types.ParsedPaper, cfg types.ExtractionConfig, force bool, w io.Writer) (extract.RunSummary, error) {
	tax, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		return extract.RunSummary{}, err
	}

	cfg.APIKey = secretDefault(secrets.APIKeyName(cfg.Provider), cfg.APIKey)
	if cfg.APIKey == "" {
		return extract.RunSummary{}, fmt.Errorf("no API key for provider %q: add .secrets/%s or set extraction.api_key",
			cfg.Provider, secrets.APIKeyName(cfg.Provider))
	}

	backend, err := extract.NewBackend(cfg.AIConfig, &http.Client{})
	if err != nil {
		return extract.RunSummary{}, err
	}

	return extract.ExtractBatch(ctx, backend, docs, tax, cfg, force, w)
}
