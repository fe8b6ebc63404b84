// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/sota-engine/internal/httputil"
	"github.com/pdiddy/sota-engine/pkg/types"
)

const fakePDF = "%PDF-1.5\nfake body\n"

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func testConfig(t *testing.T) types.FetchConfig {
	t.Helper()
	return types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "sota-engine/test",
		},
		PapersDir:  t.TempDir(),
		MaxRetries: 3,
	}
}

// pdfServer serves a fake PDF and counts download requests. The arXiv
// metadata API endpoint is served from the same server.
func pdfServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "id_list") {
			// Metadata API: empty feed keeps the fetch on the happy path.
			w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>T</title></entry></feed>`))
			return
		}
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))

	origPDF, origAPI := arxivPDFBase, arxivAPIBase
	arxivPDFBase = ts.URL + "/pdf/"
	arxivAPIBase = ts.URL + "/api"
	t.Cleanup(func() {
		arxivPDFBase = origPDF
		arxivAPIBase = origAPI
		ts.Close()
	})
	return ts, &calls
}

func record(id string) types.PaperRecord {
	return types.PaperRecord{ID: id, Title: "A Paper", Abstract: "An abstract."}
}

func TestFetchPaperDownloadsAndCaches(t *testing.T) {
	ts, calls := pdfServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(fakePDF))
	})
	cfg := testConfig(t)

	path, cached, err := FetchPaper(context.Background(), ts.Client(), record("2301.07041"), cfg, io.Discard)
	if err != nil {
		t.Fatalf("FetchPaper: %v", err)
	}
	if cached {
		t.Error("first fetch reported as cached")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading cached PDF: %v", err)
	}
	if string(data) != fakePDF {
		t.Error("cached bytes differ from download")
	}

	// Metadata is written beside the PDF.
	if _, err := ReadMetadata(cfg, "2301.07041"); err != nil {
		t.Errorf("metadata not written: %v", err)
	}

	// Second fetch: cache hit, zero network calls, same bytes.
	before := atomic.LoadInt32(calls)
	path2, cached2, err := FetchPaper(context.Background(), ts.Client(), record("2301.07041"), cfg, io.Discard)
	if err != nil {
		t.Fatalf("second FetchPaper: %v", err)
	}
	if !cached2 {
		t.Error("second fetch not reported as cached")
	}
	if atomic.LoadInt32(calls) != before {
		t.Error("cache hit performed a network call")
	}
	data2, _ := os.ReadFile(path2)
	if string(data2) != fakePDF {
		t.Error("cache hit returned different bytes")
	}
}

func TestFetchPaperNotFound(t *testing.T) {
	ts, calls := pdfServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := FetchPaper(context.Background(), ts.Client(), record("2301.99999"), testConfig(t), io.Discard)

	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindNotFound {
		t.Fatalf("err = %v, want Error{KindNotFound}", err)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("404 was retried: %d calls", atomic.LoadInt32(calls))
	}
}

func TestFetchPaperTransientExhaustion(t *testing.T) {
	ts, calls := pdfServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, _, err := FetchPaper(context.Background(), ts.Client(), record("2301.07041"), testConfig(t), io.Discard)

	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindTransient {
		t.Fatalf("err = %v, want Error{KindTransient}", err)
	}
	// 1 initial + 3 retries.
	if got := atomic.LoadInt32(calls); got != 4 {
		t.Errorf("calls = %d, want 4", got)
	}
}

func TestFetchPaperCorruptDownload(t *testing.T) {
	ts, _ := pdfServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not a pdf</html>"))
	})
	cfg := testConfig(t)

	_, _, err := FetchPaper(context.Background(), ts.Client(), record("2301.07041"), cfg, io.Discard)

	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindCorrupt {
		t.Fatalf("err = %v, want Error{KindCorrupt}", err)
	}

	// No partial artifact may survive, temp files included.
	entries, _ := os.ReadDir(filepath.Join(cfg.PapersDir, "raw"))
	if len(entries) != 0 {
		t.Errorf("raw dir not empty after failed download: %v", entries)
	}
}

func TestFetchPaperRejectsBadIdentifier(t *testing.T) {
	_, _, err := FetchPaper(context.Background(), http.DefaultClient, record("not-an-id"), testConfig(t), io.Discard)
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindNotFound {
		t.Fatalf("err = %v, want Error{KindNotFound}", err)
	}
}

// A failing paper must not stop the batch: remaining papers are fetched.
func TestFetchBatchContinuesPastFailures(t *testing.T) {
	ts, _ := pdfServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "2301.11111") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(fakePDF))
	})
	cfg := testConfig(t)

	set := types.CandidateSet{Records: []types.PaperRecord{
		record("2301.11111"),
		record("2301.22222"),
	}}

	result := FetchBatch(context.Background(), ts.Client(), set, cfg, io.Discard)
	if result.Transient != 1 {
		t.Errorf("Transient = %d, want 1", result.Transient)
	}
	if result.Downloaded != 1 {
		t.Errorf("Downloaded = %d, want 1", result.Downloaded)
	}
	if _, err := os.Stat(PDFPath(cfg, "2301.22222")); err != nil {
		t.Error("second paper was not fetched after first failed")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2301.07041", "2301.07041"},
		{"arXiv:2301.07041", "2301.07041"},
		{"2301.07041v2", "2301.07041"},
		{"hep-th/9901001", "hep-th/9901001"},
		{"hep-th/9901001v3", "hep-th/9901001"},
		{"10.1145/1234567", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("hep-th/9901001"); got != "hep-th-9901001" {
		t.Errorf("Slug = %q", got)
	}
}
