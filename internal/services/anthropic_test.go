package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAnthropicService(t *testing.T) {
	service := NewAnthropicService("test-api-key", "", "claude-haiku-4-5", discardLogger())

	if service.apiKey != "test-api-key" {
		t.Errorf("Expected API key test-api-key, got %s", service.apiKey)
	}
	if service.baseURL != DefaultAnthropicBaseURL {
		t.Errorf("Expected default base URL, got %s", service.baseURL)
	}
	if service.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	trimmed := NewAnthropicService("k", "http://localhost:9999/", "m", nil)
	if trimmed.baseURL != "http://localhost:9999" {
		t.Errorf("Expected trailing slash trimmed, got %s", trimmed.baseURL)
	}
}

func TestAnthropicService_Generate(t *testing.T) {
	var got AnthropicChatRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "{\"score\": 8,"}, {"type": "text", "text": " \"approved\": true}"}],
			"model": "claude-haiku-4-5",
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 20}
		}`)
	}))
	defer srv.Close()

	service := NewAnthropicService("secret", srv.URL, "fallback-model", discardLogger())
	out, err := service.Generate(context.Background(), GenerateRequest{
		Agent:  AgentCritic,
		System: "Bạn là biên tập viên.",
		User:   "Chấm bản thảo",
		JSON:   true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != `{"score": 8, "approved": true}` {
		t.Errorf("unexpected output %q", out)
	}

	if headers.Get("x-api-key") != "secret" {
		t.Errorf("missing api key header")
	}
	if headers.Get("anthropic-version") != anthropicVersion {
		t.Errorf("missing version header")
	}
	if got.Model != "fallback-model" {
		t.Errorf("Expected fallback model, got %s", got.Model)
	}
	if got.MaxTokens != DefaultMaxTokens {
		t.Errorf("Expected default max tokens, got %d", got.MaxTokens)
	}
	if got.System != "Bạn là biên tập viên." {
		t.Errorf("system prompt not forwarded: %q", got.System)
	}
	if len(got.Messages) != 1 || !strings.HasSuffix(got.Messages[0].Content, "Respond with a single JSON object only.") {
		t.Errorf("JSON instruction not appended: %+v", got.Messages)
	}
}

func TestAnthropicService_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusTooManyRequests, body: `{"error":{"type":"rate_limit","message":"slow down"}}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"type":"invalid_request","message":"bad"}}`},
		{name: "empty content", status: http.StatusOK, body: `{"content":[]}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			service := NewAnthropicService("k", srv.URL, "m", discardLogger())
			if _, err := service.Generate(context.Background(), GenerateRequest{User: "hi"}); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestAnthropicService_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	service := NewAnthropicService("k", srv.URL, "m", discardLogger())
	if _, err := service.Generate(ctx, GenerateRequest{User: "hi"}); err == nil {
		t.Error("Expected error for canceled context")
	}
}
