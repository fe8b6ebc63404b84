// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package leaderboard

import (
	"context"
	"io"
	"testing"

	"github.com/pdiddy/sota-engine/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.LeaderboardConfig{OutputDir: t.TempDir(), MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRebuildIdempotent(t *testing.T) {
	store := testStore(t)
	results := []*types.ExtractionResult{
		sampleResult("2301.1", "GDRO", 0.914),
		sampleResult("2301.2", "JTT", 0.867),
	}

	for i := 0; i < 2; i++ {
		summary, err := store.Rebuild(context.Background(), results, io.Discard)
		if err != nil {
			t.Fatal(err)
		}
		if summary.Papers != 2 || summary.Rows != 2 {
			t.Fatalf("pass %d: summary = %+v, want 2 papers, 2 rows", i, summary)
		}
	}

	rows, err := store.Query(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows after double rebuild, want 2", len(rows))
	}
	if rows[0].Method != "GDRO" {
		t.Errorf("rows[0].Method = %q, want highest value first", rows[0].Method)
	}
	if rows[0].PaperTitle != "Paper 2301.1" {
		t.Errorf("PaperTitle = %q, want paper metadata joined in", rows[0].PaperTitle)
	}
}

// A paper whose latest result is a failure loses its indexed rows.
func TestStoreRebuildClearsFailedPaper(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.Rebuild(ctx, []*types.ExtractionResult{sampleResult("2301.1", "GDRO", 0.914)}, io.Discard); err != nil {
		t.Fatal(err)
	}

	failed := &types.ExtractionResult{
		PaperID: "2301.1",
		Status:  types.ExtractionFailed,
		Reason:  types.ReasonModelRefused,
	}
	if _, err := store.Rebuild(ctx, []*types.ExtractionResult{failed}, io.Discard); err != nil {
		t.Fatal(err)
	}

	rows, err := store.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows for a failed paper, want 0", len(rows))
	}
}

func TestStoreQueryFullText(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	results := []*types.ExtractionResult{
		sampleResult("2301.1", "GDRO", 0.914),
		sampleResult("2301.2", "Mixup", 0.880),
	}
	if _, err := store.Rebuild(ctx, results, io.Discard); err != nil {
		t.Fatal(err)
	}

	rows, err := store.Query(ctx, QueryOptions{Query: "mixup"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Method != "Mixup" {
		t.Fatalf("rows = %+v, want the Mixup row", rows)
	}
}

func TestStoreQueryFilters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	other := sampleResult("2301.3", "ERM", 0.972)
	other.Entry.Benchmark = "CelebA"
	results := []*types.ExtractionResult{
		sampleResult("2301.1", "GDRO", 0.914),
		other,
	}
	if _, err := store.Rebuild(ctx, results, io.Discard); err != nil {
		t.Fatal(err)
	}

	rows, err := store.Query(ctx, QueryOptions{Benchmark: "Waterbirds"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Benchmark != "Waterbirds" {
		t.Fatalf("rows = %+v, want only the Waterbirds row", rows)
	}

	rows, err = store.Query(ctx, QueryOptions{Metric: "no such metric"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows for an unknown metric, want 0", len(rows))
	}
}
