// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package contentfilter applies content-level rules over parsed papers
// to reject those unlikely to contain extractable quantitative results.
// It runs after parsing and before any model call, so every paper it
// rejects is a model invocation saved.
package contentfilter

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/sota-engine/pkg/types"
)

// Decision is the filter verdict for one paper, with the evidence that
// produced it kept for auditability.
type Decision struct {
	// PaperID identifies the paper.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Include reports whether the paper proceeds to extraction.
	Include bool `json:"include" yaml:"include"`

	// MatchedKeywords lists the keywords that satisfied each group.
	MatchedKeywords []string `json:"matched_keywords,omitempty" yaml:"matched_keywords,omitempty"`

	// Reason explains an exclusion. Empty when Include is true.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Summary holds counts from one filter pass.
type Summary struct {
	Included int
	Excluded int
}

// Evaluate applies the content-level predicate to one parsed paper.
// The decision is deterministic given the same document and config.
func Evaluate(doc *types.ParsedPaper, cfg types.ContentFilterConfig) Decision {
	d := Decision{PaperID: doc.PaperID}

	if doc.Status == types.ParseFailed {
		d.Reason = "parse failed: " + doc.Reason
		return d
	}

	text := doc.Text()
	if cfg.MinTextLength > 0 && utf8.RuneCountInString(text) < cfg.MinTextLength {
		d.Reason = fmt.Sprintf("text too short: %d < %d runes", utf8.RuneCountInString(text), cfg.MinTextLength)
		return d
	}

	lower := strings.ToLower(text)
	for _, group := range cfg.KeywordGroups {
		if len(group) == 0 {
			continue
		}
		matched := ""
		for _, kw := range group {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matched = kw
				break
			}
		}
		if matched == "" {
			d.Reason = fmt.Sprintf("no keyword of group %v found in text", group)
			return d
		}
		d.MatchedKeywords = append(d.MatchedKeywords, matched)
	}

	if len(cfg.RequiredSections) > 0 {
		matched := ""
		for _, kw := range cfg.RequiredSections {
			if kw == "" {
				continue
			}
			for _, sec := range doc.Sections {
				if strings.Contains(strings.ToLower(sec.Heading), strings.ToLower(kw)) {
					matched = kw
					break
				}
			}
			if matched != "" {
				break
			}
		}
		if matched == "" {
			d.Reason = fmt.Sprintf("no section heading matches any of %v", cfg.RequiredSections)
			return d
		}
		d.MatchedKeywords = append(d.MatchedKeywords, matched)
	}

	d.Include = true
	return d
}

// Filter evaluates all parsed papers and returns the decisions plus the
// subset of papers to extract, printing per-item status.
func Filter(docs []*types.ParsedPaper, cfg types.ContentFilterConfig, w io.Writer) ([]Decision, []*types.ParsedPaper, Summary) {
	var (
		decisions []Decision
		included  []*types.ParsedPaper
		sum       Summary
	)
	for _, doc := range docs {
		d := Evaluate(doc, cfg)
		decisions = append(decisions, d)
		if d.Include {
			fmt.Fprintf(w, "included: %s (matched %v)\n", doc.PaperID, d.MatchedKeywords)
			included = append(included, doc)
			sum.Included++
		} else {
			fmt.Fprintf(w, "excluded: %s (%s)\n", doc.PaperID, d.Reason)
			sum.Excluded++
		}
	}
	fmt.Fprintf(w, "\nContent filter: %d included, %d excluded\n", sum.Included, sum.Excluded)
	return decisions, included, sum
}
