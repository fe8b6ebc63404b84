// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package leaderboard aggregates persisted extraction results into a
// ranked table of methods. The aggregation is a pure function of the
// result files: identical inputs produce an identical leaderboard.
package leaderboard

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/internal/taxonomy"
	"github.com/pdiddy/sota-engine/pkg/types"
)

const (
	extractedDir = "extracted"
	csvFile      = "leaderboard.csv"
)

// Row is one leaderboard line: one reported metric of one method on one
// benchmark, with the evidence quote that backs it.
type Row struct {
	Method         string  `json:"method" yaml:"method"`
	Benchmark      string  `json:"benchmark" yaml:"benchmark"`
	Metric         string  `json:"metric" yaml:"metric"`
	Value          float64 `json:"value" yaml:"value"`
	Split          string  `json:"split,omitempty" yaml:"split,omitempty"`
	PaperID        string  `json:"paper_id" yaml:"paper_id"`
	PaperTitle     string  `json:"paper_title" yaml:"paper_title"`
	TaxonomyLevel1 string  `json:"taxonomy_level_1" yaml:"taxonomy_level_1"`
	TaxonomyLevel2 string  `json:"taxonomy_level_2" yaml:"taxonomy_level_2"`
	Evidence       string  `json:"evidence" yaml:"evidence"`
}

// LoadResults reads every extraction result for the current schema
// version from resultsDir/extracted/. A missing directory is an empty
// run, not an error.
func LoadResults(cfg types.LeaderboardConfig) ([]*types.ExtractionResult, error) {
	dir := filepath.Join(cfg.ResultsDir, extractedDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading results directory %s: %w", dir, err)
	}

	suffix := fmt.Sprintf("-v%d.yaml", taxonomy.SchemaVersion)
	var results []*types.ExtractionResult
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading result %s: %w", entry.Name(), err)
		}
		var result types.ExtractionResult
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("parsing result %s: %w", entry.Name(), err)
		}
		results = append(results, &result)
	}
	return results, nil
}

// RowsFromResult flattens one successful result into leaderboard rows,
// one per reported metric. Unreported metrics and failed results
// produce nothing.
func RowsFromResult(result *types.ExtractionResult) []Row {
	if result.Status != types.ExtractionOK || result.Entry == nil {
		return nil
	}
	entry := result.Entry

	var rows []Row
	for _, m := range entry.Metrics {
		if m.Value == types.MetricUnreported {
			continue
		}
		rows = append(rows, Row{
			Method:         entry.MethodName,
			Benchmark:      entry.Benchmark,
			Metric:         m.Name,
			Value:          m.Value,
			Split:          m.Split,
			PaperID:        result.PaperID,
			PaperTitle:     entry.PaperTitle,
			TaxonomyLevel1: entry.TaxonomyLevel1,
			TaxonomyLevel2: entry.TaxonomyLevel2,
			Evidence:       entry.Evidence,
		})
	}
	return rows
}

// Aggregate flattens all successful results into a deduplicated,
// deterministically ordered leaderboard: value descending, then method,
// benchmark, metric and paper ID as tie-breakers.
func Aggregate(results []*types.ExtractionResult) []Row {
	seen := make(map[Row]bool)
	var rows []Row
	for _, result := range results {
		for _, row := range RowsFromResult(result) {
			if seen[row] {
				continue
			}
			seen[row] = true
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.Value != b.Value:
			return a.Value > b.Value
		case a.Method != b.Method:
			return a.Method < b.Method
		case a.Benchmark != b.Benchmark:
			return a.Benchmark < b.Benchmark
		case a.Metric != b.Metric:
			return a.Metric < b.Metric
		default:
			return a.PaperID < b.PaperID
		}
	})
	return rows
}

// CSVPath returns the leaderboard CSV location for a configuration.
func CSVPath(cfg types.LeaderboardConfig) string {
	return filepath.Join(cfg.OutputDir, csvFile)
}

// WriteCSV writes the leaderboard to path via temp file and rename.
// The output is byte-identical for identical rows.
func WriteCSV(rows []Row, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".leaderboard-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cw := csv.NewWriter(tmp)
	header := []string{
		"method", "benchmark", "metric", "value", "split",
		"paper_id", "paper_title", "taxonomy_level_1", "taxonomy_level_2", "evidence",
	}
	writeErr := cw.Write(header)
	for _, row := range rows {
		if writeErr != nil {
			break
		}
		writeErr = cw.Write([]string{
			row.Method, row.Benchmark, row.Metric,
			strconv.FormatFloat(row.Value, 'g', -1, 64), row.Split,
			row.PaperID, row.PaperTitle, row.TaxonomyLevel1, row.TaxonomyLevel2, row.Evidence,
		})
	}
	if writeErr == nil {
		cw.Flush()
		writeErr = cw.Error()
	}

	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return fmt.Errorf("writing CSV: %w", writeErr)
		}
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
