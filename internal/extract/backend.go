// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/sota-engine/internal/httputil"
	"github.com/pdiddy/sota-engine/pkg/types"
)

// ErrModelUnavailable marks backend failures that are about the service,
// not the paper: network errors, auth rejections, rate limiting and
// server errors that survived the retry budget. The orchestrator stops
// issuing further calls when it sees this; completed results stay.
var ErrModelUnavailable = errors.New("model backend unavailable")

// Request is one model invocation.
type Request struct {
	// Prompt is the full prompt text.
	Prompt string

	// MaxTokens bounds the response length. Zero means the backend default.
	MaxTokens int
}

// ModelBackend abstracts the Generative AI API so tests can supply a
// mock. Extract returns the raw response text; interpreting it is the
// orchestrator's job.
type ModelBackend interface {
	Name() string
	Extract(ctx context.Context, req Request) (string, error)
}

// NewBackend selects the backend adapter for the configured provider.
func NewBackend(cfg types.AIConfig, client *http.Client) (ModelBackend, error) {
	switch cfg.Provider {
	case "gemini":
		return &GeminiBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, MaxRetries: cfg.MaxRetries}, nil
	case "claude":
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, MaxRetries: cfg.MaxRetries}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q (want gemini or claude)", cfg.Provider)
	}
}

const defaultMaxTokens = 4096

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey     string
	Model      string
	Client     *http.Client
	MaxRetries int
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Name identifies the backend and model in results and status lines.
func (c *ClaudeBackend) Name() string {
	return "claude/" + c.Model
}

// Extract sends the prompt and returns the concatenated text blocks of
// the response. An empty response is not an error here; the
// orchestrator treats it as a refusal.
func (c *ClaudeBackend) Extract(ctx context.Context, r Request) (string, error) {
	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: r.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (c *ClaudeBackend) do(req *http.Request) (*http.Response, error) {
	return doModelRequest(c.client(), req, c.MaxRetries)
}

func (c *ClaudeBackend) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// geminiAPIBase is the Gemini API base URL. Package-level var for test
// substitution.
var geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend calls the Gemini generateContent API. The request asks
// for a JSON response so the model does not wrap its output in prose.
type GeminiBackend struct {
	APIKey     string
	Model      string
	Client     *http.Client
	MaxRetries int
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// Name identifies the backend and model in results and status lines.
func (g *GeminiBackend) Name() string {
	return "gemini/" + g.Model
}

// Extract sends the prompt and returns the first candidate's text. A
// candidate blocked by the safety filter comes back as an empty string,
// which the orchestrator records as a refusal.
func (g *GeminiBackend) Extract(ctx context.Context, r Request) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: r.Prompt}},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			MaxOutputTokens:  r.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", geminiAPIBase, g.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := doModelRequest(client, req, g.MaxRetries)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(gResp.Candidates) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// doModelRequest runs the request with transient-failure retries and
// maps non-2xx outcomes onto the error taxonomy. Rate limiting, server
// errors and auth rejections all mean the service cannot be used right
// now, so they wrap ErrModelUnavailable.
func doModelRequest(client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	resp, err := httputil.DoWithRetry(req.Context(), client, req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %v: %w", req.URL.Host, err, ErrModelUnavailable)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	switch {
	case httputil.Retryable(resp.StatusCode),
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("API returned %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrModelUnavailable)
	default:
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
