// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contentfilter

import (
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/sota-engine/pkg/types"
)

func doc(id string, sections ...types.Section) *types.ParsedPaper {
	return &types.ParsedPaper{
		PaperID:  id,
		Status:   types.ParseOK,
		Sections: sections,
	}
}

func TestEvaluate(t *testing.T) {
	base := doc("2301.07041",
		types.Section{Heading: "Abstract", Body: "We study spurious correlation on Waterbirds."},
		types.Section{Heading: "4 Results", Body: "Worst-group accuracy reaches 91.2%."},
	)

	tests := []struct {
		name        string
		doc         *types.ParsedPaper
		cfg         types.ContentFilterConfig
		wantInclude bool
		wantReason  string
	}{
		{
			name:        "empty config includes everything",
			doc:         base,
			wantInclude: true,
		},
		{
			name: "keyword group matches",
			doc:  base,
			cfg: types.ContentFilterConfig{
				KeywordGroups: [][]string{{"spurious correlation", "group robustness"}},
			},
			wantInclude: true,
		},
		{
			name: "unmatched keyword group excludes",
			doc:  base,
			cfg: types.ContentFilterConfig{
				KeywordGroups: [][]string{{"segmentation"}},
			},
			wantInclude: false,
			wantReason:  "no keyword",
		},
		{
			name: "required section present",
			doc:  base,
			cfg: types.ContentFilterConfig{
				RequiredSections: []string{"results", "experiments"},
			},
			wantInclude: true,
		},
		{
			name: "required section absent excludes",
			doc: doc("2301.1",
				types.Section{Heading: "Abstract", Body: "A position paper."},
			),
			cfg: types.ContentFilterConfig{
				RequiredSections: []string{"results", "experiments"},
			},
			wantInclude: false,
			wantReason:  "no section heading",
		},
		{
			name: "text below minimum length excludes",
			doc:  doc("2301.2", types.Section{Body: "tiny"}),
			cfg:  types.ContentFilterConfig{MinTextLength: 100},
			wantInclude: false,
			wantReason:  "too short",
		},
		{
			name: "failed parse always excluded",
			doc: &types.ParsedPaper{
				PaperID: "2301.3",
				Status:  types.ParseFailed,
				Reason:  "broken xref",
			},
			wantInclude: false,
			wantReason:  "parse failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.doc, tt.cfg)
			if d.Include != tt.wantInclude {
				t.Fatalf("Include = %v, want %v (reason: %s)", d.Include, tt.wantInclude, d.Reason)
			}
			if !tt.wantInclude && !strings.Contains(d.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to contain %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateKeepsMatchedEvidence(t *testing.T) {
	d := Evaluate(doc("2301.07041",
		types.Section{Heading: "Results", Body: "Spurious correlation hurts accuracy."},
	), types.ContentFilterConfig{
		KeywordGroups:    [][]string{{"spurious correlation"}},
		RequiredSections: []string{"results"},
	})

	if !d.Include {
		t.Fatalf("excluded: %s", d.Reason)
	}
	if len(d.MatchedKeywords) != 2 {
		t.Fatalf("MatchedKeywords = %v, want keyword + section evidence", d.MatchedKeywords)
	}
}

// The filter is deterministic: two passes over the same input produce
// identical decisions.
func TestFilterDeterministic(t *testing.T) {
	docs := []*types.ParsedPaper{
		doc("a", types.Section{Heading: "Results", Body: "mixup improves accuracy"}),
		doc("b", types.Section{Heading: "Intro", Body: "unrelated"}),
	}
	cfg := types.ContentFilterConfig{KeywordGroups: [][]string{{"mixup"}}}

	d1, inc1, sum1 := Filter(docs, cfg, io.Discard)
	d2, inc2, sum2 := Filter(docs, cfg, io.Discard)

	if sum1 != sum2 {
		t.Fatalf("summaries differ: %+v vs %+v", sum1, sum2)
	}
	if len(inc1) != 1 || len(inc2) != 1 || inc1[0].PaperID != "a" {
		t.Fatalf("included = %v / %v, want just paper a", inc1, inc2)
	}
	for i := range d1 {
		if d1[i].Include != d2[i].Include || d1[i].Reason != d2[i].Reason {
			t.Errorf("decision %d differs between runs", i)
		}
	}
}
