package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "sota-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ScanConfig holds settings for the metadata scanning stage.
type ScanConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// SnapshotPath is the arXiv metadata snapshot (JSON-lines file).
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path" mapstructure:"snapshot_path"`

	// DataDir is the directory for the candidate set cache.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// ScanLimit caps how many snapshot records are examined (-1 unlimited).
	ScanLimit int `json:"scan_limit" yaml:"scan_limit" mapstructure:"scan_limit"`
}

// FetchConfig holds settings for the PDF fetching stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir is the base directory for papers (contains raw/, metadata/, parsed/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// DownloadDelay is the delay between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay" mapstructure:"download_delay"`

	// MaxRetries bounds retry attempts on transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ParseBackend identifies the PDF text extraction tool.
type ParseBackend string

const (
	BackendPdftotext ParseBackend = "pdftotext"
)

// ParseConfig holds settings for the PDF parsing stage.
type ParseConfig struct {
	// Backend selects the extraction tool.
	Backend ParseBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// PapersDir is the base directory for papers (contains raw/, parsed/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// MaxPages caps how many pages are extracted per paper (0 = all).
	// The content filter only needs the front of the document.
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`
}

// ContentFilterConfig holds settings for the content-level filtering stage.
type ContentFilterConfig struct {
	// KeywordGroups are ANDed groups of ORed keywords matched against
	// the full extracted text, case-insensitive.
	KeywordGroups [][]string `json:"keyword_groups" yaml:"keyword_groups" mapstructure:"keyword_groups"`

	// RequiredSections lists keywords at least one of which must appear
	// in a section heading (e.g. "results", "experiments"). Empty
	// disables the check.
	RequiredSections []string `json:"required_sections" yaml:"required_sections" mapstructure:"required_sections"`

	// MinTextLength rejects papers whose extracted text is shorter (runes).
	MinTextLength int `json:"min_text_length" yaml:"min_text_length" mapstructure:"min_text_length"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the model backend: "gemini" or "claude".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir is the base directory for papers (contains parsed/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// ResultsDir is the base directory for results (contains extracted/).
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`

	// TaxonomyPath is the taxonomy YAML file shared by all extraction calls.
	TaxonomyPath string `json:"taxonomy_path" yaml:"taxonomy_path" mapstructure:"taxonomy_path"`

	// Datasets names the target benchmark datasets for the run.
	Datasets []string `json:"datasets" yaml:"datasets" mapstructure:"datasets"`

	// Metrics maps target metric names to their descriptions.
	Metrics map[string]string `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// MaxCalls caps model calls per run (-1 unlimited). Papers left
	// unprocessed when the budget runs out stay eligible for a later run.
	MaxCalls int `json:"max_calls" yaml:"max_calls" mapstructure:"max_calls"`

	// Concurrency is the worker-pool ceiling for model calls (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// CallDelay is the pause between consecutive model calls per worker.
	CallDelay time.Duration `json:"call_delay" yaml:"call_delay" mapstructure:"call_delay"`

	// MaxDocumentChars bounds the document excerpt sent to the model.
	MaxDocumentChars int `json:"max_document_chars" yaml:"max_document_chars" mapstructure:"max_document_chars"`

	// PrioritySections lists heading keywords whose sections are kept
	// first when the document must be truncated.
	PrioritySections []string `json:"priority_sections" yaml:"priority_sections" mapstructure:"priority_sections"`
}

// LeaderboardConfig holds settings for the aggregation stage.
type LeaderboardConfig struct {
	// ResultsDir is the base directory for results (contains extracted/).
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`

	// OutputDir is the directory for the leaderboard CSV and index/.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Scan          ScanConfig          `json:"scan" yaml:"scan" mapstructure:"scan"`
	Fetch         FetchConfig         `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Parse         ParseConfig         `json:"parse" yaml:"parse" mapstructure:"parse"`
	ContentFilter ContentFilterConfig `json:"content_filter" yaml:"content_filter" mapstructure:"content_filter"`
	Extraction    ExtractionConfig    `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Leaderboard   LeaderboardConfig   `json:"leaderboard" yaml:"leaderboard" mapstructure:"leaderboard"`
}
