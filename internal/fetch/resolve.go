// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/sota-engine/pkg/types"
)

// Base URLs for identifier resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	arxivAPIBase = "https://export.arxiv.org/api/query"
)

// newStylePattern matches post-2007 arXiv IDs: "2301.07041",
// "arXiv:2301.07041", "2301.07041v2".
var newStylePattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)

// oldStylePattern matches pre-2007 IDs like "hep-th/9901001".
var oldStylePattern = regexp.MustCompile(`^(?:arXiv:)?([a-z-]+(?:\.[A-Z]{2})?/\d{7})(?:v\d+)?$`)

// Normalize strips the optional "arXiv:" prefix and version suffix and
// returns the canonical identifier, or "" when the input is not an
// arXiv ID.
func Normalize(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if m := newStylePattern.FindStringSubmatch(identifier); m != nil {
		return m[1]
	}
	if m := oldStylePattern.FindStringSubmatch(identifier); m != nil {
		return m[1]
	}
	return ""
}

// Slug returns a filesystem-safe filename stem for the identifier.
// Old-style IDs contain a slash.
func Slug(id string) string {
	return strings.ReplaceAll(id, "/", "-")
}

// PDFURL returns the arxiv.org download URL for the identifier.
func PDFURL(id string) string {
	return arxivPDFBase + id
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// enrichFromArxivAPI fills missing metadata fields from the arXiv API.
func enrichFromArxivAPI(ctx context.Context, client *http.Client, id string, record *types.PaperRecord, cfg types.FetchConfig) error {
	apiURL := fmt.Sprintf("%s?id_list=%s", arxivAPIBase, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return fmt.Errorf("no entries found for arXiv ID %s", id)
	}

	entry := feed.Entries[0]
	if record.Title == "" {
		record.Title = strings.TrimSpace(entry.Title)
	}
	if record.Abstract == "" {
		record.Abstract = strings.TrimSpace(entry.Summary)
	}
	if len(record.Categories) == 0 {
		for _, c := range entry.Categories {
			record.Categories = append(record.Categories, c.Term)
		}
	}
	if len(record.Authors) == 0 {
		for _, a := range entry.Authors {
			record.Authors = append(record.Authors, strings.TrimSpace(a.Name))
		}
	}
	if record.UpdateDate.IsZero() {
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			record.UpdateDate = t
		}
	}
	return nil
}
