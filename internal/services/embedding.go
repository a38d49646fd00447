package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"

	"github.com/jwebster45206/isekai-engine/pkg/skill"
)

// GeminiEmbedder produces 768-dim semantic-similarity embeddings.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

var (
	_ skill.Embedder = (*GeminiEmbedder)(nil)
	_ skill.Embedder = HashEmbedder{}
	_ skill.Embedder = (*EmbeddingPool)(nil)
)

func NewGeminiEmbedder(ctx context.Context, apiKey, baseURL, model string) (*GeminiEmbedder, error) {
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := newGenAIClient(ctx, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr(int32(skill.EmbeddingDims)),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// HashEmbedder is the offline provider. It never fails.
type HashEmbedder struct{}

func (HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return skill.HashEmbedding(text), nil
}

// EmbeddingPool bounds concurrent calls into a synchronous embedding client.
// Callers block on the semaphore until a slot frees or ctx ends.
type EmbeddingPool struct {
	inner  skill.Embedder
	sem    *semaphore.Weighted
	size   int64
	logger *slog.Logger
}

func NewEmbeddingPool(inner skill.Embedder, workers int, logger *slog.Logger) *EmbeddingPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingPool{
		inner:  inner,
		sem:    semaphore.NewWeighted(int64(workers)),
		size:   int64(workers),
		logger: logger,
	}
}

// Size is the number of concurrent embedding calls allowed.
func (p *EmbeddingPool) Size() int {
	return int(p.size)
}

func (p *EmbeddingPool) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for embedding slot: %w", err)
	}
	defer p.sem.Release(1)
	return p.inner.Embed(ctx, text)
}

// EmbedAll embeds texts concurrently, preserving order. The first error
// cancels the remaining calls.
func (p *EmbeddingPool) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := p.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("batch embedding failed", "count", len(texts), "error", err)
		return nil, err
	}
	return out, nil
}
