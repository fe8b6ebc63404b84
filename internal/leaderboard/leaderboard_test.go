// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package leaderboard

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/internal/taxonomy"
	"github.com/pdiddy/sota-engine/pkg/types"
)

func sampleResult(paperID, method string, value float64) *types.ExtractionResult {
	return &types.ExtractionResult{
		PaperID:       paperID,
		SchemaVersion: taxonomy.SchemaVersion,
		Status:        types.ExtractionOK,
		Model:         "fake/test",
		ExtractedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Entry: &types.SOTAEntry{
			PaperTitle:       "Paper " + paperID,
			MethodName:       method,
			ApplicationField: "general",
			Domain:           "Computer Vision",
			PaperType:        types.PaperMethod,
			TaxonomyLevel1:   "Robust Optimization",
			TaxonomyLevel2:   "Group DRO",
			Benchmark:        "Waterbirds",
			DatasetMentioned: true,
			Metrics: []types.Metric{
				{Name: "worst-group accuracy", Value: value, Split: "test"},
			},
			Evidence: method + " reaches state of the art.",
		},
	}
}

func TestAggregateSortsByValueDescending(t *testing.T) {
	rows := Aggregate([]*types.ExtractionResult{
		sampleResult("2301.1", "JTT", 0.867),
		sampleResult("2301.2", "GDRO", 0.914),
		sampleResult("2301.3", "ERM", 0.741),
	})

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	want := []string{"GDRO", "JTT", "ERM"}
	for i, method := range want {
		if rows[i].Method != method {
			t.Errorf("rows[%d].Method = %q, want %q", i, rows[i].Method, method)
		}
	}
}

func TestAggregateDeduplicates(t *testing.T) {
	a := sampleResult("2301.1", "GDRO", 0.914)
	b := sampleResult("2301.1", "GDRO", 0.914)

	rows := Aggregate([]*types.ExtractionResult{a, b})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want exact duplicate removed", len(rows))
	}
}

func TestRowsFromResult(t *testing.T) {
	failed := &types.ExtractionResult{
		PaperID: "2301.9",
		Status:  types.ExtractionFailed,
		Reason:  types.ReasonSchemaValidation,
	}
	if rows := RowsFromResult(failed); rows != nil {
		t.Errorf("failed result produced rows: %v", rows)
	}

	mixed := sampleResult("2301.1", "GDRO", 0.914)
	mixed.Entry.Metrics = append(mixed.Entry.Metrics,
		types.Metric{Name: "average accuracy", Value: types.MetricUnreported})
	rows := RowsFromResult(mixed)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want unreported metric dropped", len(rows))
	}
	if rows[0].Metric != "worst-group accuracy" {
		t.Errorf("Metric = %q", rows[0].Metric)
	}
	if rows[0].Evidence == "" {
		t.Error("row carries no evidence quote")
	}
}

func TestLoadResultsFiltersSchemaVersion(t *testing.T) {
	cfg := types.LeaderboardConfig{ResultsDir: t.TempDir()}
	dir := filepath.Join(cfg.ResultsDir, extractedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	write := func(name string, result *types.ExtractionResult) {
		data, err := yaml.Marshal(result)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(taxonomy.ResultFile("2301.1", taxonomy.SchemaVersion), sampleResult("2301.1", "GDRO", 0.914))
	write(taxonomy.ResultFile("2301.2", taxonomy.SchemaVersion-1), sampleResult("2301.2", "Old", 0.5))

	results, err := LoadResults(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].PaperID != "2301.1" {
		t.Fatalf("results = %+v, want only the current schema version", results)
	}
}

func TestLoadResultsMissingDirIsEmpty(t *testing.T) {
	results, err := LoadResults(types.LeaderboardConfig{ResultsDir: t.TempDir()})
	if err != nil {
		t.Fatalf("missing results directory must not be an error: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want none", results)
	}
}

// The CSV is a pure function of its rows: two writes over the same
// aggregation produce byte-identical files.
func TestWriteCSVDeterministic(t *testing.T) {
	dir := t.TempDir()
	rows := Aggregate([]*types.ExtractionResult{
		sampleResult("2301.1", "JTT", 0.867),
		sampleResult("2301.2", "GDRO", 0.914),
	})

	p1 := filepath.Join(dir, "a.csv")
	p2 := filepath.Join(dir, "b.csv")
	if err := WriteCSV(rows, p1); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(rows, p2); err != nil {
		t.Fatal(err)
	}

	d1, err := os.ReadFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := os.ReadFile(p2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d1, d2) {
		t.Error("identical rows produced different CSV bytes")
	}

	lines := bytes.Split(bytes.TrimSpace(d1), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if !bytes.HasPrefix(lines[0], []byte("method,benchmark,metric,value")) {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !bytes.HasPrefix(lines[1], []byte("GDRO,Waterbirds")) {
		t.Errorf("first data row = %s, want the top value first", lines[1])
	}
}
