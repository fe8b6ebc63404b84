// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sota-engine/pkg/types"
)

func TestClaudeBackendExtract(t *testing.T) {
	var gotReq claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{
			{Type: "text", Text: `{"paper_title":`},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: ` "X"}`},
		}})
	}))
	defer server.Close()

	oldURL := claudeAPIURL
	claudeAPIURL = server.URL
	t.Cleanup(func() { claudeAPIURL = oldURL })

	backend := &ClaudeBackend{APIKey: "test-key", Model: "claude-sonnet-4-5"}
	got, err := backend.Extract(context.Background(), Request{Prompt: "extract this"})
	require.NoError(t, err)

	assert.Equal(t, `{"paper_title": "X"}`, got, "text blocks concatenated, non-text skipped")
	assert.Equal(t, "claude-sonnet-4-5", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "extract this", gotReq.Messages[0].Content)
	assert.Equal(t, defaultMaxTokens, gotReq.MaxTokens)
}

func TestGeminiBackendExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var gotReq geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMIMEType)

		json.NewEncoder(w).Encode(geminiResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: `{"method_`}, {Text: `name": "Y"}`}}},
		}}})
	}))
	defer server.Close()

	oldBase := geminiAPIBase
	geminiAPIBase = server.URL
	t.Cleanup(func() { geminiAPIBase = oldBase })

	backend := &GeminiBackend{APIKey: "test-key", Model: "gemini-2.5-flash"}
	got, err := backend.Extract(context.Background(), Request{Prompt: "extract this"})
	require.NoError(t, err)
	assert.Equal(t, `{"method_name": "Y"}`, got)
}

// A safety-blocked response has no candidates. That comes back as empty
// output, which the orchestrator records as a refusal.
func TestGeminiBackendNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	}))
	defer server.Close()

	oldBase := geminiAPIBase
	geminiAPIBase = server.URL
	t.Cleanup(func() { geminiAPIBase = oldBase })

	backend := &GeminiBackend{Model: "gemini-2.5-flash"}
	got, err := backend.Extract(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackendErrorClassification(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		wantUnavailable bool
		wantCalls       int
	}{
		{"rate limited after retries", http.StatusTooManyRequests, true, 4},
		{"server error after retries", http.StatusInternalServerError, true, 4},
		{"auth rejected, no retry", http.StatusUnauthorized, true, 1},
		{"bad request, no retry", http.StatusBadRequest, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls++
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			oldURL := claudeAPIURL
			claudeAPIURL = server.URL
			t.Cleanup(func() { claudeAPIURL = oldURL })

			backend := &ClaudeBackend{Model: "claude-sonnet-4-5", MaxRetries: 3}
			_, err := backend.Extract(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.Equal(t, tt.wantUnavailable, errors.Is(err, ErrModelUnavailable))
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(types.AIConfig{Provider: "gemini", Model: "gemini-2.5-flash"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini/gemini-2.5-flash", b.Name())

	b, err = NewBackend(types.AIConfig{Provider: "claude", Model: "claude-sonnet-4-5"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude/claude-sonnet-4-5", b.Name())

	_, err = NewBackend(types.AIConfig{Provider: "cortex"}, nil)
	assert.Error(t, err)
}
