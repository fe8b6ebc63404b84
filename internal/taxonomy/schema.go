// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package taxonomy

import (
	"fmt"
	"strings"
)

// SchemaVersion identifies the current extraction record contract.
// Bumping it invalidates every cached extraction result: result files
// carry the version in their name, so older results are simply not
// found and the papers are re-extracted.
const SchemaVersion = 1

// Field describes one field of the extraction record contract.
type Field struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// SchemaFields returns the extraction record contract in prompt order.
func SchemaFields() []Field {
	return []Field{
		{"paper_title", "string", true, "Title of the research paper."},
		{"method_name", "string", true, "Name of the proposed method. Prefer the acronym; otherwise the shortest distinct name."},
		{"application_field", "string", true, "Application field of the research (e.g. healthcare, materials science, theory, general)."},
		{"domain", "string", true, "Research domain (e.g. Computer Vision, NLP)."},
		{"paper_type", "string", true, "One of: Method, Theoretical, Survey, Benchmark, Analysis, Position."},
		{"taxonomy_level_1", "string", true, "Level-1 category from the taxonomy below."},
		{"taxonomy_level_2", "string", true, "Level-2 category from the taxonomy below, under the chosen level-1."},
		{"benchmark", "string", true, "Dataset or benchmark the metrics were measured on."},
		{"dataset_mentioned", "bool", true, "Whether the target dataset is explicitly tested."},
		{"metrics", "array", true, "Reported metrics, each with name, value, and optional unit and split. If the text says \"85.5%\", report 0.855. Use -1 when not reported."},
		{"evidence", "string", true, "A direct, verbatim quote from the paper supporting the extracted metrics."},
	}
}

// Contract renders the schema fields as a prompt fragment.
func Contract() string {
	var b strings.Builder
	for _, f := range SchemaFields() {
		req := "required"
		if !f.Required {
			req = "optional"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", f.Name, f.Type, req, f.Description)
	}
	return b.String()
}

// ResultFile returns the cache filename for a paper's extraction result
// under the given schema version.
func ResultFile(paperID string, version int) string {
	return fmt.Sprintf("%s-v%d.yaml", paperID, version)
}
