// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/pdiddy/sota-engine/internal/taxonomy"
	"github.com/pdiddy/sota-engine/pkg/types"
)

// extractionPromptTmpl is the prompt sent to the model for one paper.
// It combines the schema contract, the taxonomy, the run's target
// datasets and metrics, and the (possibly truncated) document text.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a research results extraction system. Read the following academic paper and fill in one structured record describing its state-of-the-art claim.

Record fields:
{{.Contract}}
Method taxonomy (choose taxonomy_level_1 from the top level and taxonomy_level_2 from its children):
{{.Taxonomy}}
{{- if .Datasets}}
Target datasets for this run: {{.Datasets}}. Set dataset_mentioned to true only if the paper explicitly evaluates on one of them.
{{- end}}
{{- if .Metrics}}
Target metrics:
{{.Metrics}}
{{- end}}
Report metric values normalized to the [0, 1] range: if the paper says "85.5%", report 0.855. Use -1 for a target metric the paper does not report. The evidence field must be a verbatim quote from the paper text below.

Respond with a single JSON object containing exactly the fields listed above. Do not include any text outside the JSON object.

Paper text:
{{.Document}}
`))

// repairSuffix is appended to the prompt when the first response failed
// validation. {{.Problem}} carries the validation error text.
var repairSuffix = template.Must(template.New("repair").Parse(`

Your previous response was rejected: {{.Problem}}.
Return a corrected JSON object with exactly the required fields and nothing else.`))

// promptData feeds extractionPromptTmpl.
type promptData struct {
	Contract string
	Taxonomy string
	Datasets string
	Metrics  string
	Document string
}

// BuildPrompt renders the extraction prompt for one parsed paper.
func BuildPrompt(doc *types.ParsedPaper, tax *taxonomy.Taxonomy, cfg types.ExtractionConfig) (string, error) {
	data := promptData{
		Contract: taxonomy.Contract(),
		Taxonomy: tax.Render(),
		Datasets: strings.Join(cfg.Datasets, ", "),
		Metrics:  renderMetrics(cfg.Metrics),
		Document: TruncateDocument(doc, cfg),
	}

	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildRepairPrompt re-renders the prompt with the validation problem
// appended, for the single repair retry.
func BuildRepairPrompt(prompt, problem string) (string, error) {
	var buf bytes.Buffer
	if err := repairSuffix.Execute(&buf, struct{ Problem string }{Problem: problem}); err != nil {
		return "", fmt.Errorf("rendering repair prompt: %w", err)
	}
	return prompt + buf.String(), nil
}

// renderMetrics formats the target metric map as stable prompt lines.
func renderMetrics(metrics map[string]string) string {
	if len(metrics) == 0 {
		return ""
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, metrics[name])
	}
	return b.String()
}

// TruncateDocument returns the document text bounded by
// cfg.MaxDocumentChars. When the full text fits it is returned
// unchanged. Otherwise sections are kept in priority order: headings
// matching cfg.PrioritySections first, then the abstract, then the rest
// in document order, each cut off where the budget runs out.
func TruncateDocument(doc *types.ParsedPaper, cfg types.ExtractionConfig) string {
	full := doc.Text()
	limit := cfg.MaxDocumentChars
	if limit <= 0 || len(full) <= limit {
		return full
	}

	priorities := cfg.PrioritySections
	if len(priorities) == 0 {
		priorities = []string{"result", "experiment", "conclusion"}
	}

	taken := make([]bool, len(doc.Sections))
	var ordered []types.Section
	pick := func(match func(heading string) bool) {
		for i, sec := range doc.Sections {
			if !taken[i] && match(strings.ToLower(sec.Heading)) {
				taken[i] = true
				ordered = append(ordered, sec)
			}
		}
	}

	pick(func(h string) bool {
		for _, p := range priorities {
			if p != "" && strings.Contains(h, strings.ToLower(p)) {
				return true
			}
		}
		return false
	})
	pick(func(h string) bool { return strings.Contains(h, "abstract") })
	pick(func(string) bool { return true })

	var b strings.Builder
	for _, sec := range ordered {
		remaining := limit - b.Len()
		if remaining <= 0 {
			break
		}
		text := sec.Body
		if sec.Heading != "" {
			text = sec.Heading + "\n" + sec.Body
		}
		text += "\n\n"
		if len(text) > remaining {
			text = text[:remaining]
		}
		b.WriteString(text)
	}
	return strings.TrimSpace(b.String())
}
