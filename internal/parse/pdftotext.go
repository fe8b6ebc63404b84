// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/sota-engine/internal/container"
)

const imagePdftotext = "pdftotext:latest"

// PdftotextExtractor extracts text by piping PDFs through the pdftotext
// container image. It depends on a container.Runtime (docker or podman)
// injected at construction time.
type PdftotextExtractor struct {
	runtime container.Runtime
}

// NewPdftotextExtractor creates an extractor that uses the given
// container runtime. It verifies that the pdftotext image exists
// locally before returning.
func NewPdftotextExtractor(rt container.Runtime) (*PdftotextExtractor, error) {
	if err := rt.ImageExists(imagePdftotext); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &PdftotextExtractor{runtime: rt}, nil
}

// ExtractPages reads the PDF at pdfPath and returns per-page text.
// pdftotext separates pages with form feeds, so a page that yields no
// text comes back as an empty string rather than an error.
func (p *PdftotextExtractor) ExtractPages(pdfPath string, maxPages int) ([]string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	args := []string{"-enc", "UTF-8", "-eol", "unix"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, "-", "-")

	var out bytes.Buffer
	if err := p.runtime.Run(imagePdftotext, args, f, &out); err != nil {
		return nil, fmt.Errorf("extracting %s with pdftotext: %w", pdfPath, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("pdftotext produced empty output for %s", pdfPath)
	}

	// pdftotext emits a form feed after each page, including the last.
	pages := strings.Split(out.String(), "\f")
	if len(pages) > 0 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}
