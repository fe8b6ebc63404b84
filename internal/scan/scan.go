// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scan selects candidate papers from the bulk arXiv metadata
// snapshot using cheap metadata-level predicates. It is the first and
// cheapest narrowing stage: no network or model calls, just a streaming
// pass over the snapshot.
package scan

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/pkg/types"
)

const candidatesFile = "candidates.yaml"

// Criteria is the metadata-level predicate. A record matches when every
// configured rule holds; keyword groups are ANDed, keywords within a
// group are ORed. Matching is case-insensitive substring matching, and
// the predicate is deterministic: re-filtering its own output with the
// same criteria yields the same set.
type Criteria struct {
	// AllowedCategories accepts a record when any of its categories is
	// listed. Empty disables the check.
	AllowedCategories []string `json:"allowed_categories" yaml:"allowed_categories"`

	// MinDate rejects records updated before it. Zero disables the check.
	MinDate time.Time `json:"min_date" yaml:"min_date"`

	// MaxDate rejects records updated after it. Zero disables the check.
	MaxDate time.Time `json:"max_date" yaml:"max_date"`

	// RequireDOI rejects records without a DOI (unpublished preprints).
	RequireDOI bool `json:"require_doi" yaml:"require_doi"`

	// ExcludeTitleKeywords rejects records whose title contains any entry.
	ExcludeTitleKeywords []string `json:"exclude_title_keywords" yaml:"exclude_title_keywords"`

	// KeywordGroups are ANDed groups of ORed keywords matched against
	// title and abstract.
	KeywordGroups [][]string `json:"keyword_groups" yaml:"keyword_groups"`
}

// Match reports whether the record satisfies the criteria.
func (c Criteria) Match(r types.PaperRecord) bool {
	if len(c.AllowedCategories) > 0 {
		found := false
		for _, cat := range r.Categories {
			for _, allowed := range c.AllowedCategories {
				if cat == allowed {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}

	if !c.MinDate.IsZero() && r.UpdateDate.Before(c.MinDate) {
		return false
	}
	if !c.MaxDate.IsZero() && r.UpdateDate.After(c.MaxDate) {
		return false
	}

	if c.RequireDOI && r.DOI == "" {
		return false
	}

	title := strings.ToLower(r.Title)
	for _, kw := range c.ExcludeTitleKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return false
		}
	}

	haystack := title + "\n" + strings.ToLower(r.Abstract)
	for _, group := range c.KeywordGroups {
		if len(group) == 0 {
			continue
		}
		matched := false
		for _, kw := range group {
			if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// Fingerprint returns a short stable digest of the criteria, used to
// detect when a cached candidate set was produced by different criteria.
func (c Criteria) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "invalid"
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))[:12]
}

// Summary holds counts from one scan pass.
type Summary struct {
	Scanned   int
	Matched   int
	Malformed int
}

// snapshotRecord mirrors one line of the arXiv metadata snapshot.
type snapshotRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Abstract   string `json:"abstract"`
	Categories string `json:"categories"`
	DOI        string `json:"doi"`
	UpdateDate string `json:"update_date"`
	Authors    string `json:"authors"`
}

func (s snapshotRecord) toRecord() types.PaperRecord {
	r := types.PaperRecord{
		ID:       s.ID,
		Title:    strings.TrimSpace(s.Title),
		Abstract: strings.TrimSpace(s.Abstract),
		DOI:      s.DOI,
	}
	if s.Categories != "" {
		r.Categories = strings.Fields(s.Categories)
	}
	if s.Authors != "" {
		r.Authors = []string{s.Authors}
	}
	if t, err := time.Parse("2006-01-02", s.UpdateDate); err == nil {
		r.UpdateDate = t
	}
	return r
}

// Scan streams JSON-lines snapshot records from r and returns the
// candidate set of records matching the criteria. Malformed lines are
// counted and skipped, not fatal. limit caps how many records are
// examined; -1 means unlimited.
func Scan(r io.Reader, crit Criteria, limit int, w io.Writer) (types.CandidateSet, Summary, error) {
	set := types.CandidateSet{Fingerprint: crit.Fingerprint()}
	var sum Summary

	scanner := bufio.NewScanner(r)
	// Abstracts can make snapshot lines long.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if limit >= 0 && sum.Scanned >= limit {
			break
		}

		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		sum.Scanned++

		var rec snapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			sum.Malformed++
			continue
		}

		paper := rec.toRecord()
		if paper.ID == "" {
			sum.Malformed++
			continue
		}

		if crit.Match(paper) {
			set.Records = append(set.Records, paper)
			sum.Matched++
		}
	}
	if err := scanner.Err(); err != nil {
		return set, sum, fmt.Errorf("reading snapshot: %w", err)
	}

	fmt.Fprintf(w, "scanned %d records, %d candidates, %d malformed lines skipped\n",
		sum.Scanned, sum.Matched, sum.Malformed)
	return set, sum, nil
}

// ScanFile runs Scan over the snapshot file named in cfg.
func ScanFile(crit Criteria, cfg types.ScanConfig, w io.Writer) (types.CandidateSet, Summary, error) {
	f, err := os.Open(cfg.SnapshotPath)
	if err != nil {
		return types.CandidateSet{}, Summary{}, fmt.Errorf("opening snapshot %s: %w", cfg.SnapshotPath, err)
	}
	defer f.Close()

	return Scan(f, crit, cfg.ScanLimit, w)
}

// WriteCandidates persists the candidate set under dataDir, writing to
// a temp file and renaming so a partial write is never observed.
func WriteCandidates(set types.CandidateSet, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshaling candidates: %w", err)
	}

	tmp, err := os.CreateTemp(dataDir, ".candidates-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return fmt.Errorf("writing candidates: %w", writeErr)
		}
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	dest := filepath.Join(dataDir, candidatesFile)
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ReadCandidates loads a previously written candidate set.
func ReadCandidates(dataDir string) (types.CandidateSet, error) {
	path := filepath.Join(dataDir, candidatesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.CandidateSet{}, err
	}
	var set types.CandidateSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return types.CandidateSet{}, fmt.Errorf("parsing candidates %s: %w", path, err)
	}
	return set, nil
}
