package skill

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/google/uuid"
)

// EmbeddingDims is the embedding width for the uniqueness corpus.
const EmbeddingDims = 768

const (
	// WarnSimilarity logs a near-duplicate warning.
	WarnSimilarity = 0.85
	// ReportSimilarity is the floor for naming the closest skill.
	ReportSimilarity = 0.5
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StoredEmbedding is one row of the uniqueness corpus.
type StoredEmbedding struct {
	PlayerID  uuid.UUID `json:"player_id"`
	SkillName string    `json:"skill_name"`
	SkillText string    `json:"skill_text"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingText is the canonical text embedded for a skill.
func EmbeddingText(name, description, mechanic string) string {
	return fmt.Sprintf("%s: %s. %s", name, description, mechanic)
}

// HashEmbedding is the deterministic stand-in used when the provider fails.
// SHA-256 blocks over "text:i" are concatenated until there are EmbeddingDims
// bytes, each byte mapped to [-1, 1], and the vector normalised.
func HashEmbedding(text string) []float32 {
	raw := make([]byte, 0, EmbeddingDims+sha256.Size)
	for i := 0; len(raw) < EmbeddingDims; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", text, i)))
		raw = append(raw, sum[:]...)
	}
	vec := make([]float32, EmbeddingDims)
	for i := range vec {
		vec[i] = float32(float64(raw[i])/127.5 - 1)
	}
	return normalize(vec)
}

// IsHashEmbedding reports whether e still holds the hash stand-in for its text.
func IsHashEmbedding(e StoredEmbedding) bool {
	return slices.Equal(e.Embedding, HashEmbedding(e.SkillText))
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

// CosineSimilarity returns 0 for empty or mismatched vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Result is the outcome of a uniqueness check.
type Result struct {
	Score       float64
	MostSimilar string
	Similarity  float64
	Embedding   []float32
	Fallback    bool
}

// Checker scores a candidate skill against existing skills.
type Checker struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewChecker builds a checker. A nil embedder always uses the hash fallback.
func NewChecker(embedder Embedder, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{embedder: embedder, logger: logger}
}

// Embed calls the provider and falls back to HashEmbedding on any error.
func (c *Checker) Embed(ctx context.Context, text string) ([]float32, bool) {
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec, false
		}
		c.logger.Warn("embedding provider failed, using hash fallback", "error", err)
	}
	return HashEmbedding(text), true
}

// Check returns 1 - max cosine similarity, floored at 0. An empty corpus is
// always fully unique.
func (c *Checker) Check(ctx context.Context, text string, corpus []StoredEmbedding) Result {
	vec, fallback := c.Embed(ctx, text)
	res := Result{Score: 1.0, Embedding: vec, Fallback: fallback}
	if len(corpus) == 0 {
		return res
	}

	best, bestName := -1.0, ""
	for _, row := range corpus {
		sim := CosineSimilarity(vec, row.Embedding)
		if sim > best {
			best, bestName = sim, row.SkillName
		}
	}
	res.Similarity = best
	res.Score = max(0, 1-best)
	if best > WarnSimilarity {
		c.logger.Warn("skill is nearly identical to an existing skill", "similar_to", bestName, "similarity", best)
	}
	if best > ReportSimilarity {
		res.MostSimilar = bestName
	}
	return res
}
