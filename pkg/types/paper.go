// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ParseStatus indicates the state of PDF text extraction for a paper.
type ParseStatus string

const (
	ParseOK      ParseStatus = "ok"
	ParsePartial ParseStatus = "partial"
	ParseFailed  ParseStatus = "failed"
)

// PaperRecord holds the metadata for one paper as read from the bulk
// snapshot. Records are immutable once ingested; every downstream stage
// keys its cache by ID.
type PaperRecord struct {
	// ID is the arXiv identifier (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Categories lists the arXiv categories (e.g. "cs.LG", "stat.ML").
	Categories []string `json:"categories" yaml:"categories"`

	// DOI is the published DOI, empty for unpublished preprints.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// UpdateDate is the snapshot's last-update date for the record.
	UpdateDate time.Time `json:"update_date" yaml:"update_date"`
}

// CandidateSet is the ordered set of records that survived metadata
// filtering, together with the fingerprint of the criteria that produced
// it. The set is derived state: it is recomputed whenever the criteria
// change and cached only as a convenience.
type CandidateSet struct {
	// Fingerprint identifies the filter criteria that produced this set.
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`

	// Records are the surviving papers in snapshot order.
	Records []PaperRecord `json:"records" yaml:"records"`
}

// IDs returns the paper identifiers in set order.
func (c CandidateSet) IDs() []string {
	ids := make([]string, len(c.Records))
	for i, r := range c.Records {
		ids[i] = r.ID
	}
	return ids
}

// Section is one heading-delimited chunk of a parsed paper.
type Section struct {
	// Heading is the section heading, empty for preamble text.
	Heading string `json:"heading" yaml:"heading"`

	// Body is the extracted text under the heading.
	Body string `json:"body" yaml:"body"`

	// Page is the 1-based page where the section begins.
	Page int `json:"page" yaml:"page"`
}

// ParsedPaper is the normalized document produced by the parser. It is
// cached on disk keyed by paper ID; a paper is parsed once unless the
// cache is explicitly invalidated.
type ParsedPaper struct {
	// PaperID references the PaperRecord this document was parsed from.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Status records whether extraction was complete, degraded, or failed.
	Status ParseStatus `json:"status" yaml:"status"`

	// Sections holds the heading-delimited text in document order.
	Sections []Section `json:"sections" yaml:"sections"`

	// PageCount is the number of pages the extractor saw.
	PageCount int `json:"page_count" yaml:"page_count"`

	// FailedPages lists 1-based pages whose text could not be extracted.
	FailedPages []int `json:"failed_pages,omitempty" yaml:"failed_pages,omitempty"`

	// Reason records why parsing failed entirely. Empty unless Status is failed.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// ParsedAt is when the cache entry was written.
	ParsedAt time.Time `json:"parsed_at" yaml:"parsed_at"`
}

// Text returns the full extracted text, sections joined in order.
func (p ParsedPaper) Text() string {
	var n int
	for _, s := range p.Sections {
		n += len(s.Heading) + len(s.Body) + 2
	}
	buf := make([]byte, 0, n)
	for _, s := range p.Sections {
		if s.Heading != "" {
			buf = append(buf, s.Heading...)
			buf = append(buf, '\n')
		}
		buf = append(buf, s.Body...)
		buf = append(buf, '\n')
	}
	return string(buf)
}
