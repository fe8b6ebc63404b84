// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch resolves candidate paper identifiers to locally cached
// PDFs. Downloads are atomic (temp file, then rename) and idempotent:
// a cached paper is returned without any network call.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/internal/httputil"
	"github.com/pdiddy/sota-engine/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// pdfMagic is the leading byte signature of a well-formed PDF.
var pdfMagic = []byte("%PDF")

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindNotFound: the identifier does not resolve to a PDF (HTTP 404).
	KindNotFound ErrorKind = "not_found"

	// KindTransient: retries on timeouts/5xx were exhausted.
	KindTransient ErrorKind = "transient"

	// KindCorrupt: the downloaded bytes are not a PDF.
	KindCorrupt ErrorKind = "corrupt"
)

// Error is a classified fetch failure for one paper.
type Error struct {
	Kind    ErrorKind
	PaperID string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.PaperID, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.PaperID, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// BatchResult holds the outcome of a batch fetch run.
type BatchResult struct {
	Downloaded int
	Cached     int
	NotFound   int
	Transient  int
	Corrupt    int
	Other      int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Cached + r.Failed()
}

// Failed returns the number of papers that failed to fetch.
func (r BatchResult) Failed() int {
	return r.NotFound + r.Transient + r.Corrupt + r.Other
}

// PDFPath returns the cache location for a paper's PDF.
func PDFPath(cfg types.FetchConfig, paperID string) string {
	return filepath.Join(cfg.PapersDir, rawDir, Slug(paperID)+".pdf")
}

// FetchPaper returns the local path of the paper's PDF, downloading it
// if absent. The cached return value reports a cache hit, in which case
// no network request is made.
func FetchPaper(ctx context.Context, client *http.Client, record types.PaperRecord, cfg types.FetchConfig, w io.Writer) (path string, cached bool, err error) {
	id := Normalize(record.ID)
	if id == "" {
		return "", false, &Error{Kind: KindNotFound, PaperID: record.ID, Err: fmt.Errorf("unrecognized arXiv identifier %q", record.ID)}
	}

	pdfPath := PDFPath(cfg, id)
	if _, statErr := os.Stat(pdfPath); statErr == nil {
		fmt.Fprintf(w, "cached: %s\n", id)
		return pdfPath, true, nil
	}

	for _, dir := range []string{
		filepath.Join(cfg.PapersDir, rawDir),
		filepath.Join(cfg.PapersDir, metadataDir),
	} {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return "", false, fmt.Errorf("creating directory %s: %w", dir, mkErr)
		}
	}

	fmt.Fprintf(w, "downloading: %s\n", id)
	if err := downloadPDF(ctx, client, id, pdfPath, cfg); err != nil {
		return "", false, err
	}

	// Record the snapshot metadata beside the PDF, enriching missing
	// fields from the arXiv API. API failures only degrade metadata.
	meta := record
	meta.ID = id
	if meta.Title == "" || meta.Abstract == "" {
		if apiErr := enrichFromArxivAPI(ctx, client, id, &meta, cfg); apiErr != nil {
			fmt.Fprintf(w, "  warning: arXiv metadata fetch failed: %v\n", apiErr)
		}
	}
	if err := writeMetadata(meta, metadataPath(cfg, id)); err != nil {
		return "", false, fmt.Errorf("writing metadata for %s: %w", id, err)
	}

	return pdfPath, false, nil
}

// FetchBatch downloads all candidate papers, printing per-item status
// and returning a summary. It continues after individual failures and
// applies a delay between consecutive downloads.
func FetchBatch(ctx context.Context, client *http.Client, set types.CandidateSet, cfg types.FetchConfig, w io.Writer) BatchResult {
	var result BatchResult
	for i, record := range set.Records {
		if i > 0 && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(cfg.DownloadDelay):
			}
		}

		_, cached, err := FetchPaper(ctx, client, record, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", record.ID, err)
			var fe *Error
			switch {
			case errors.As(err, &fe) && fe.Kind == KindNotFound:
				result.NotFound++
			case errors.As(err, &fe) && fe.Kind == KindTransient:
				result.Transient++
			case errors.As(err, &fe) && fe.Kind == KindCorrupt:
				result.Corrupt++
			default:
				result.Other++
			}
			continue
		}
		if cached {
			result.Cached++
		} else {
			result.Downloaded++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d cached, %d failed (total: %d)\n",
		result.Downloaded, result.Cached, result.Failed(), result.Total())
	return result
}

// downloadPDF fetches the paper's PDF to destPath using a temp file so
// other stages never observe a partial download.
func downloadPDF(ctx context.Context, client *http.Client, id, destPath string, cfg types.FetchConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PDFURL(id), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return &Error{Kind: KindTransient, PaperID: id, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, PaperID: id, Err: fmt.Errorf("HTTP 404")}
	case httputil.Retryable(resp.StatusCode):
		return &Error{Kind: KindTransient, PaperID: id, Err: fmt.Errorf("HTTP %d after retries", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return &Error{Kind: KindNotFound, PaperID: id, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return &Error{Kind: KindTransient, PaperID: id, Err: fmt.Errorf("writing download: %w", copyErr)}
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := checkPDF(tmpPath); err != nil {
		os.Remove(tmpPath)
		return &Error{Kind: KindCorrupt, PaperID: id, Err: err}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// checkPDF sniffs the file header for the PDF magic bytes.
func checkPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("download too short to be a PDF")
	}
	if !bytes.Equal(header, pdfMagic) {
		return fmt.Errorf("missing %%PDF header")
	}
	return nil
}

func metadataPath(cfg types.FetchConfig, id string) string {
	return filepath.Join(cfg.PapersDir, metadataDir, Slug(id)+".yaml")
}

// writeMetadata writes a PaperRecord to a YAML file.
func writeMetadata(record types.PaperRecord, path string) error {
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadMetadata reads a PaperRecord from the metadata cache.
func ReadMetadata(cfg types.FetchConfig, id string) (types.PaperRecord, error) {
	data, err := os.ReadFile(metadataPath(cfg, Normalize(id)))
	if err != nil {
		return types.PaperRecord{}, err
	}
	var record types.PaperRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return types.PaperRecord{}, err
	}
	return record, nil
}
