// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperType categorizes the kind of contribution a paper makes.
type PaperType string

const (
	PaperMethod      PaperType = "Method"
	PaperTheoretical PaperType = "Theoretical"
	PaperSurvey      PaperType = "Survey"
	PaperBenchmark   PaperType = "Benchmark"
	PaperAnalysis    PaperType = "Analysis"
	PaperPosition    PaperType = "Position"
)

// ValidPaperTypes is the closed set of accepted PaperType values.
var ValidPaperTypes = map[PaperType]bool{
	PaperMethod:      true,
	PaperTheoretical: true,
	PaperSurvey:      true,
	PaperBenchmark:   true,
	PaperAnalysis:    true,
	PaperPosition:    true,
}

// MetricUnreported marks a metric the paper did not report numerically.
const MetricUnreported = -1.0

// Metric is one reported performance number. Values are normalized to
// the [0,1] range when the source reports percentages.
type Metric struct {
	// Name is the metric name (e.g. "accuracy", "worst-group accuracy").
	Name string `json:"name" yaml:"name"`

	// Value is the normalized metric value, or MetricUnreported.
	Value float64 `json:"value" yaml:"value"`

	// Unit is the reported unit, empty for dimensionless fractions.
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Split is the evaluation split (e.g. "test", "val"), if stated.
	Split string `json:"split,omitempty" yaml:"split,omitempty"`
}

// SOTAEntry is the structured record the model must populate for one
// paper. Field order matches the extraction schema contract.
type SOTAEntry struct {
	// PaperTitle is the title of the research paper.
	PaperTitle string `json:"paper_title" yaml:"paper_title"`

	// MethodName names the proposed method, preferring the acronym.
	MethodName string `json:"method_name" yaml:"method_name"`

	// ApplicationField is the application area (e.g. healthcare, general).
	ApplicationField string `json:"application_field" yaml:"application_field"`

	// Domain is the research domain (e.g. "Computer Vision", "NLP").
	Domain string `json:"domain" yaml:"domain"`

	// PaperType classifies the contribution.
	PaperType PaperType `json:"paper_type" yaml:"paper_type"`

	// TaxonomyLevel1 is the assigned top-level taxonomy category.
	TaxonomyLevel1 string `json:"taxonomy_level_1" yaml:"taxonomy_level_1"`

	// TaxonomyLevel2 is the assigned second-level taxonomy category.
	TaxonomyLevel2 string `json:"taxonomy_level_2" yaml:"taxonomy_level_2"`

	// Benchmark is the dataset or benchmark the metrics were measured on.
	Benchmark string `json:"benchmark" yaml:"benchmark"`

	// DatasetMentioned reports whether the target dataset is explicitly tested.
	DatasetMentioned bool `json:"dataset_mentioned" yaml:"dataset_mentioned"`

	// Metrics lists the reported performance numbers.
	Metrics []Metric `json:"metrics" yaml:"metrics"`

	// Evidence is a verbatim quote from the paper supporting the metrics.
	Evidence string `json:"evidence" yaml:"evidence"`
}

// ExtractionStatus is the terminal state of one extraction attempt.
type ExtractionStatus string

const (
	ExtractionOK     ExtractionStatus = "ok"
	ExtractionFailed ExtractionStatus = "failed"
)

// FailureReason classifies why an extraction ended in ExtractionFailed.
type FailureReason string

const (
	// ReasonSchemaValidation: the model response did not conform to the
	// extraction schema after the repair retry.
	ReasonSchemaValidation FailureReason = "schema_validation"

	// ReasonModelRefused: the model declined or returned empty output.
	ReasonModelRefused FailureReason = "model_refused"
)

// ExtractionResult is the persisted outcome of extracting one paper
// under one schema version. Exactly one result exists per
// (paper, schema version); re-runs overwrite it idempotently.
type ExtractionResult struct {
	// PaperID identifies the source paper.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// SchemaVersion is the extraction schema version the entry conforms to.
	SchemaVersion int `json:"schema_version" yaml:"schema_version"`

	// Status is ok or failed.
	Status ExtractionStatus `json:"status" yaml:"status"`

	// Reason classifies the failure. Empty on success.
	Reason FailureReason `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Detail carries the validation error text for failed results.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`

	// Entry is the validated structured record. Nil on failure.
	Entry *SOTAEntry `json:"entry,omitempty" yaml:"entry,omitempty"`

	// Model is the model identifier that produced the entry.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// ExtractedAt is when the result was written.
	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at"`
}
