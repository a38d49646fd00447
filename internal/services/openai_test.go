package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIService_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"beats\": []}"}
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`)
	}))
	defer srv.Close()

	service := NewOpenAIService("test-key", srv.URL, "gpt-4o-mini", discardLogger())
	out, err := service.Generate(context.Background(), GenerateRequest{
		Agent:       AgentPlanner,
		System:      "Lập dàn ý",
		User:        "Chương 1",
		MaxTokens:   512,
		Temperature: 0.3,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != `{"beats": []}` {
		t.Errorf("unexpected output %q", out)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("Expected fallback model, got %v", body["model"])
	}
	if body["max_completion_tokens"] != float64(512) {
		t.Errorf("Expected max_completion_tokens 512, got %v", body["max_completion_tokens"])
	}
	format, ok := body["response_format"].(map[string]any)
	if !ok || format["type"] != "json_object" {
		t.Errorf("Expected json_object response format, got %v", body["response_format"])
	}
	msgs, ok := body["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("Expected system and user messages, got %v", body["messages"])
	}
}

func TestOpenAIService_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	service := NewOpenAIService("k", srv.URL, "m", discardLogger())
	if _, err := service.Generate(context.Background(), GenerateRequest{User: "hi"}); err == nil {
		t.Error("Expected error when no choices are returned")
	}
}
