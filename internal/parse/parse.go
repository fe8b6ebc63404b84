// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse turns raw PDFs into normalized ParsedPaper documents:
// per-page text grouped into heading-delimited sections, with a status
// flag recording how much of the document survived extraction. Parsed
// documents are cached on disk keyed by paper ID.
package parse

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/pkg/types"
)

const (
	rawDir    = "raw"
	parsedDir = "parsed"
)

// Extractor produces per-page text from a PDF. A page whose text cannot
// be extracted is returned as an empty string; only an unreadable
// document yields an error.
type Extractor interface {
	ExtractPages(pdfPath string, maxPages int) ([]string, error)
}

// BatchResult holds the outcome of a batch parse run.
type BatchResult struct {
	Parsed  int
	Partial int
	Cached  int
	Failed  int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Parsed + r.Partial + r.Cached + r.Failed
}

// CachePath returns the parsed-document cache location for a paper.
func CachePath(cfg types.ParseConfig, paperID string) string {
	slug := strings.ReplaceAll(paperID, "/", "-")
	return filepath.Join(cfg.PapersDir, parsedDir, slug+".yaml")
}

// ParsePaper parses one PDF into a ParsedPaper, consulting the cache
// first. A document-level extraction failure produces a ParsedPaper
// with status failed rather than an error: the paper is excluded
// downstream but the run continues. The cached return value reports
// whether a cache entry was used.
func ParsePaper(ex Extractor, paperID, pdfPath string, cfg types.ParseConfig, w io.Writer) (*types.ParsedPaper, bool, error) {
	cachePath := CachePath(cfg, paperID)
	if doc, err := readCache(cachePath); err == nil {
		fmt.Fprintf(w, "cached: %s (%s)\n", paperID, doc.Status)
		return doc, true, nil
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, false, fmt.Errorf("creating parsed directory: %w", err)
	}

	doc := &types.ParsedPaper{
		PaperID:  paperID,
		ParsedAt: time.Now().UTC(),
	}

	pages, err := ex.ExtractPages(pdfPath, cfg.MaxPages)
	if err != nil {
		doc.Status = types.ParseFailed
		doc.Reason = err.Error()
		fmt.Fprintf(w, "failed:  %s (%v)\n", paperID, err)
	} else {
		doc.PageCount = len(pages)
		for i, page := range pages {
			if strings.TrimSpace(page) == "" {
				doc.FailedPages = append(doc.FailedPages, i+1)
			}
		}
		doc.Sections = splitSections(pages)

		switch {
		case len(pages) == 0 || len(doc.FailedPages) == len(pages):
			doc.Status = types.ParseFailed
			doc.Reason = "no text extracted from any page"
			fmt.Fprintf(w, "failed:  %s (no text)\n", paperID)
		case len(doc.FailedPages) > 0:
			doc.Status = types.ParsePartial
			fmt.Fprintf(w, "parsed:  %s (partial, %d/%d pages)\n",
				paperID, len(pages)-len(doc.FailedPages), len(pages))
		default:
			doc.Status = types.ParseOK
			fmt.Fprintf(w, "parsed:  %s (%d pages)\n", paperID, len(pages))
		}
	}

	if err := writeCache(cachePath, doc); err != nil {
		return nil, false, fmt.Errorf("caching parsed paper %s: %w", paperID, err)
	}
	return doc, false, nil
}

// ParseBatch parses every candidate whose PDF is in the raw cache,
// printing per-item status and returning a summary. Individual failures
// never abort the batch.
func ParseBatch(ex Extractor, set types.CandidateSet, cfg types.ParseConfig, w io.Writer) BatchResult {
	var result BatchResult
	for _, record := range set.Records {
		slug := strings.ReplaceAll(record.ID, "/", "-")
		pdfPath := filepath.Join(cfg.PapersDir, rawDir, slug+".pdf")
		if _, err := os.Stat(pdfPath); err != nil {
			continue // not fetched; a later run can pick it up
		}

		doc, cached, err := ParsePaper(ex, record.ID, pdfPath, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", record.ID, err)
			result.Failed++
			continue
		}
		switch {
		case cached:
			result.Cached++
		case doc.Status == types.ParseOK:
			result.Parsed++
		case doc.Status == types.ParsePartial:
			result.Partial++
		default:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d parsed, %d partial, %d cached, %d failed (total: %d)\n",
		result.Parsed, result.Partial, result.Cached, result.Failed, result.Total())
	return result
}

// ReadCached returns the cached ParsedPaper for a paper, if any.
func ReadCached(cfg types.ParseConfig, paperID string) (*types.ParsedPaper, error) {
	return readCache(CachePath(cfg, paperID))
}

// Invalidate removes a paper's parsed cache entry so the next run
// re-parses it.
func Invalidate(cfg types.ParseConfig, paperID string) error {
	err := os.Remove(CachePath(cfg, paperID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func readCache(path string) (*types.ParsedPaper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc types.ParsedPaper
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing cache %s: %w", path, err)
	}
	return &doc, nil
}

// writeCache persists the document via temp file and rename so a
// concurrent reader never observes a partial entry.
func writeCache(path string, doc *types.ParsedPaper) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling parsed paper: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".parse-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return fmt.Errorf("writing cache: %w", writeErr)
		}
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// knownHeadings are section names that count as headings even without
// numbering.
var knownHeadings = map[string]bool{
	"abstract":           true,
	"introduction":       true,
	"related work":       true,
	"background":         true,
	"method":             true,
	"methods":            true,
	"methodology":        true,
	"approach":           true,
	"experiments":        true,
	"experimental setup": true,
	"results":            true,
	"discussion":         true,
	"evaluation":         true,
	"conclusion":         true,
	"conclusions":        true,
	"acknowledgments":    true,
	"references":         true,
	"appendix":           true,
}

// numberedHeading matches "1 Introduction", "3.2 Ablations", "IV. Results".
var numberedHeading = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[IVX]+\.)\s+\S`)

// splitSections groups per-page text into heading-delimited sections,
// recording the page each section begins on.
func splitSections(pages []string) []types.Section {
	var sections []types.Section
	current := types.Section{Page: 1}
	var body []string

	flush := func() {
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Heading != "" || current.Body != "" {
			sections = append(sections, current)
		}
		body = nil
	}

	for pageNum, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			trimmed := strings.TrimSpace(line)
			if isHeading(trimmed) {
				flush()
				current = types.Section{
					Heading: trimmed,
					Page:    pageNum + 1,
				}
				continue
			}
			body = append(body, line)
		}
	}
	flush()
	return sections
}

// isHeading applies cheap plain-text heuristics: numbered headings,
// well-known section names, or short all-caps lines.
func isHeading(line string) bool {
	if line == "" || len(line) > 80 {
		return false
	}
	if knownHeadings[strings.ToLower(strings.TrimRight(line, ":"))] {
		return true
	}
	if numberedHeading.MatchString(line) {
		// Numbered lines that read like sentences are prose, not headings.
		return !strings.HasSuffix(line, ".") && strings.Count(line, " ") < 8
	}
	return isAllCaps(line)
}

// isAllCaps reports whether the line consists of uppercase words only
// (at least one letter, no lowercase).
func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		}
	}
	return hasLetter && len(line) >= 4
}
