package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/config"
)

// NewLLMService selects the provider named by cfg.LLMProvider. The model
// name given to the provider is the writer model; agents pass their own.
func NewLLMService(ctx context.Context, cfg *config.Config, log *slog.Logger) (LLMService, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case config.ProviderAnthropic:
		log.Info("Using Anthropic LLM service", "base_url", cfg.AnthropicBaseURL)
		return NewAnthropicService(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.Models.Writer, log), nil
	case config.ProviderOpenAI:
		log.Info("Using OpenAI LLM service")
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Models.Writer, log), nil
	case config.ProviderGemini:
		log.Info("Using Gemini LLM service")
		return NewGeminiService(ctx, cfg.GeminiAPIKey, "", cfg.Models.Writer, log)
	case config.ProviderMock:
		log.Warn("Using mock LLM service")
		return NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// NewEmbedder builds the configured embedding provider behind a bounded
// pool. A Gemini setup failure degrades to the hash provider.
func NewEmbedder(ctx context.Context, cfg *config.Config, log *slog.Logger) *EmbeddingPool {
	workers := cfg.Engine.EmbeddingWorkers
	if cfg.EmbeddingProvider == "gemini" {
		e, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, "", cfg.Models.Embedding)
		if err == nil {
			return NewEmbeddingPool(e, workers, log)
		}
		log.Warn("gemini embedder unavailable, using hash embeddings", "error", err)
	}
	return NewEmbeddingPool(HashEmbedder{}, workers, log)
}
