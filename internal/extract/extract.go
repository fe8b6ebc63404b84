// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns filtered papers into validated structured
// records via a Generative AI backend. Every processed paper ends with
// a terminal ExtractionResult on disk, success or failure, keyed by
// paper ID and schema version so re-runs skip finished work.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sota-engine/internal/taxonomy"
	"github.com/pdiddy/sota-engine/pkg/types"
)

const extractedDir = "extracted"

// RunSummary holds counts from one extraction run.
type RunSummary struct {
	// Extracted papers got a validated entry this run.
	Extracted int

	// Cached papers already had a result for the current schema version.
	Cached int

	// Failed papers got a terminal failed result this run.
	Failed int

	// Deferred papers were not attempted (budget exhausted or backend
	// halt) and stay eligible for a later run.
	Deferred int

	// SchemaFailures and Refusals break Failed down by reason.
	SchemaFailures int
	Refusals       int

	// BudgetExhausted reports that the call budget ran out mid-run.
	BudgetExhausted bool

	// Halted reports that the backend became unavailable mid-run.
	Halted bool
}

// Total returns the number of papers considered.
func (s RunSummary) Total() int {
	return s.Extracted + s.Cached + s.Failed + s.Deferred
}

// ResultPath returns the result-file location for a paper under the
// current schema version.
func ResultPath(cfg types.ExtractionConfig, paperID string) string {
	slug := strings.ReplaceAll(paperID, "/", "-")
	return filepath.Join(cfg.ResultsDir, extractedDir, taxonomy.ResultFile(slug, taxonomy.SchemaVersion))
}

// ReadResult loads the persisted result for a paper, if any.
func ReadResult(cfg types.ExtractionConfig, paperID string) (*types.ExtractionResult, error) {
	data, err := os.ReadFile(ResultPath(cfg, paperID))
	if err != nil {
		return nil, err
	}
	var result types.ExtractionResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result: %w", err)
	}
	return &result, nil
}

// budget is the shared model-call allowance for one run. A limit below
// zero means unlimited.
type budget struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
	exhausted bool
}

func newBudget(maxCalls int) *budget {
	return &budget{remaining: maxCalls, unlimited: maxCalls < 0}
}

// take reserves one model call. It returns false once the budget is
// spent.
func (b *budget) take() bool {
	if b.unlimited {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		b.exhausted = true
		return false
	}
	b.remaining--
	return true
}

func (b *budget) wasExhausted() bool {
	if b.unlimited {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhausted
}

// ExtractBatch processes the given papers through the model backend
// with a bounded worker pool. Papers with an existing result for the
// current schema version are skipped unless force is set. Validation
// failures and refusals produce terminal failed results and the run
// continues; a backend-unavailable error stops further calls but keeps
// everything already written.
func ExtractBatch(ctx context.Context, backend ModelBackend, docs []*types.ParsedPaper, tax *taxonomy.Taxonomy, cfg types.ExtractionConfig, force bool, w io.Writer) (RunSummary, error) {
	outDir := filepath.Join(cfg.ResultsDir, extractedDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return RunSummary{}, fmt.Errorf("creating results directory: %w", err)
	}

	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}

	calls := newBudget(cfg.MaxCalls)
	var halted sync.Once
	halt := make(chan struct{})

	jobs := make(chan *types.ParsedPaper)
	outcomes := make(chan outcome, len(docs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				outcomes <- processOne(ctx, backend, doc, tax, cfg, force, calls, halt, &halted)
			}
		}()
	}

feed:
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- doc:
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	var summary RunSummary
	for o := range outcomes {
		fmt.Fprintln(w, o.line)
		switch o.status {
		case "extracted":
			summary.Extracted++
		case "cached":
			summary.Cached++
		case "deferred":
			summary.Deferred++
		case "failed":
			summary.Failed++
			switch o.reason {
			case types.ReasonSchemaValidation:
				summary.SchemaFailures++
			case types.ReasonModelRefused:
				summary.Refusals++
			}
		}
	}

	summary.BudgetExhausted = calls.wasExhausted()
	select {
	case <-halt:
		summary.Halted = true
	default:
	}

	fmt.Fprintf(w, "\nExtraction summary: %d extracted, %d cached, %d failed, %d deferred (total: %d)\n",
		summary.Extracted, summary.Cached, summary.Failed, summary.Deferred, summary.Total())
	if summary.BudgetExhausted {
		fmt.Fprintf(w, "call budget (%d) exhausted; remaining papers deferred to a later run\n", cfg.MaxCalls)
	}
	if summary.Halted {
		fmt.Fprintf(w, "model backend unavailable; remaining papers deferred to a later run\n")
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// outcome is one paper's terminal state within a run.
type outcome struct {
	status string // extracted | cached | failed | deferred
	reason types.FailureReason
	line   string
}

// processOne handles one paper end to end and never blocks the pool on
// another paper's outcome.
func processOne(ctx context.Context, backend ModelBackend, doc *types.ParsedPaper, tax *taxonomy.Taxonomy, cfg types.ExtractionConfig, force bool, calls *budget, halt chan struct{}, halted *sync.Once) (o outcome) {
	if !force {
		if _, err := os.Stat(ResultPath(cfg, doc.PaperID)); err == nil {
			o.status = "cached"
			o.line = fmt.Sprintf("cached:    %s (schema v%d)", doc.PaperID, taxonomy.SchemaVersion)
			return o
		}
	}

	select {
	case <-halt:
		o.status = "deferred"
		o.line = fmt.Sprintf("deferred:  %s (backend unavailable)", doc.PaperID)
		return o
	case <-ctx.Done():
		o.status = "deferred"
		o.line = fmt.Sprintf("deferred:  %s (cancelled)", doc.PaperID)
		return o
	default:
	}

	if !calls.take() {
		o.status = "deferred"
		o.line = fmt.Sprintf("deferred:  %s (budget exhausted)", doc.PaperID)
		return o
	}

	if cfg.CallDelay > 0 {
		select {
		case <-ctx.Done():
			o.status = "deferred"
			o.line = fmt.Sprintf("deferred:  %s (cancelled)", doc.PaperID)
			return o
		case <-time.After(cfg.CallDelay):
		}
	}

	result, err := ExtractPaper(ctx, backend, doc, tax, cfg, calls.take)
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			halted.Do(func() { close(halt) })
		}
		o.status = "deferred"
		o.line = fmt.Sprintf("deferred:  %s (%v)", doc.PaperID, err)
		return o
	}

	if werr := writeResult(ResultPath(cfg, doc.PaperID), result); werr != nil {
		o.status = "failed"
		o.line = fmt.Sprintf("failed:    %s (writing result: %v)", doc.PaperID, werr)
		return o
	}

	if result.Status == types.ExtractionOK {
		o.status = "extracted"
		o.line = fmt.Sprintf("extracted: %s (%s on %s)", doc.PaperID, result.Entry.MethodName, result.Entry.Benchmark)
	} else {
		o.status = "failed"
		o.reason = result.Reason
		o.line = fmt.Sprintf("failed:    %s (%s: %s)", doc.PaperID, result.Reason, result.Detail)
	}
	return o
}

// ExtractPaper runs the model once for one paper and validates the
// response. A response that fails validation gets a single repair
// retry, re-prompting with the validation error, if takeCall grants the
// extra model call. The returned error is non-nil only for
// backend-level failures; schema and refusal outcomes come back as
// terminal failed results.
func ExtractPaper(ctx context.Context, backend ModelBackend, doc *types.ParsedPaper, tax *taxonomy.Taxonomy, cfg types.ExtractionConfig, takeCall func() bool) (*types.ExtractionResult, error) {
	prompt, err := BuildPrompt(doc, tax, cfg)
	if err != nil {
		return nil, err
	}

	result := &types.ExtractionResult{
		PaperID:       doc.PaperID,
		SchemaVersion: taxonomy.SchemaVersion,
		Model:         backend.Name(),
		ExtractedAt:   time.Now().UTC(),
	}

	raw, err := backend.Extract(ctx, Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		result.Status = types.ExtractionFailed
		result.Reason = types.ReasonModelRefused
		result.Detail = "model returned empty output"
		return result, nil
	}

	entry, verr := decodeEntry(raw, tax)
	if verr != nil && takeCall != nil && takeCall() {
		repair, rerr := BuildRepairPrompt(prompt, verr.Error())
		if rerr != nil {
			return nil, rerr
		}
		raw, err = backend.Extract(ctx, Request{Prompt: repair})
		if err != nil {
			return nil, err
		}
		entry, verr = decodeEntry(raw, tax)
	}

	if verr != nil {
		result.Status = types.ExtractionFailed
		result.Reason = types.ReasonSchemaValidation
		result.Detail = verr.Error()
		return result, nil
	}

	result.Status = types.ExtractionOK
	result.Entry = entry
	return result, nil
}

// decodeEntry parses the model response into a validated SOTAEntry.
// Taxonomy assignments are canonicalized to the tree's spelling and
// metric values are normalized to [0, 1].
func decodeEntry(raw string, tax *taxonomy.Taxonomy) (*types.SOTAEntry, error) {
	var entry types.SOTAEntry
	dec := json.NewDecoder(strings.NewReader(stripFences(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entry); err != nil {
		return nil, fmt.Errorf("response is not a valid record object: %v", err)
	}

	var problems []string
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s is empty", field))
		}
	}
	require("paper_title", entry.PaperTitle)
	require("method_name", entry.MethodName)
	require("application_field", entry.ApplicationField)
	require("domain", entry.Domain)
	require("benchmark", entry.Benchmark)
	require("evidence", entry.Evidence)

	if !types.ValidPaperTypes[entry.PaperType] {
		problems = append(problems, fmt.Sprintf("paper_type %q is not one of the allowed values", entry.PaperType))
	}

	if l1, ok := tax.Level1(entry.TaxonomyLevel1); ok {
		entry.TaxonomyLevel1 = l1.Name
		if l2, ok := tax.Level2(l1.Name, entry.TaxonomyLevel2); ok {
			entry.TaxonomyLevel2 = l2
		} else {
			problems = append(problems, fmt.Sprintf("taxonomy_level_2 %q is not a child of %q", entry.TaxonomyLevel2, l1.Name))
		}
	} else {
		problems = append(problems, fmt.Sprintf("taxonomy_level_1 %q is not a taxonomy category", entry.TaxonomyLevel1))
	}

	if len(entry.Metrics) == 0 {
		problems = append(problems, "metrics is empty; report each target metric, with value -1 when unreported")
	}
	for i := range entry.Metrics {
		m := &entry.Metrics[i]
		if strings.TrimSpace(m.Name) == "" {
			problems = append(problems, fmt.Sprintf("metrics[%d] has no name", i))
			continue
		}
		normalizeMetric(m)
		if m.Value != types.MetricUnreported && (m.Value < 0 || m.Value > 1) {
			problems = append(problems, fmt.Sprintf("metric %q value %g is outside [0, 1]", m.Name, m.Value))
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return &entry, nil
}

// normalizeMetric rescales percentage-style values into [0, 1]. A "%"
// unit always divides by 100; without a unit, values in (1, 100] are
// assumed to be percentages the model forgot to rescale.
func normalizeMetric(m *types.Metric) {
	if m.Value == types.MetricUnreported {
		return
	}
	switch {
	case strings.TrimSpace(m.Unit) == "%":
		m.Value /= 100
		m.Unit = ""
	case m.Value > 1 && m.Value <= 100:
		m.Value /= 100
	}
}

// stripFences removes a Markdown code fence around the response, which
// some models add despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// writeResult persists the result via temp file and rename so a
// concurrent reader never observes a partial file.
func writeResult(path string, result *types.ExtractionResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".extract-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return fmt.Errorf("writing result: %w", writeErr)
		}
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
