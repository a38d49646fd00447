package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/storage"
)

// MaxNameRunes caps the display name.
const MaxNameRunes = 40

// Request is one onboarding submission.
type Request struct {
	UserID  string   `json:"user_id"`
	Name    string   `json:"name"`
	Answers []string `json:"answers"`
}

// Validate checks the request shape before scoring.
func (r Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if len([]rune(name)) > MaxNameRunes {
		return fmt.Errorf("name exceeds %d characters", MaxNameRunes)
	}
	return nil
}

// Service creates players.
type Service struct {
	store     storage.Storage
	generator *SkillGenerator
	logger    *slog.Logger
}

func NewService(store storage.Storage, generator *SkillGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, generator: generator, logger: logger}
}

// Onboard scores the quiz, generates the unique skill and persists the new
// player with its skill embedding and an onboarded identity event.
func (s *Service) Onboard(ctx context.Context, req Request) (*player.State, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := Score(req.Answers)
	if err != nil {
		return nil, err
	}

	p := player.New(req.UserID, strings.TrimSpace(req.Name), res.Archetype, res.Seed, res.DNA)

	corpus, err := s.store.LoadSkillEmbeddings(ctx)
	if err != nil {
		// uniqueness is best-effort; an empty corpus is always unique
		s.logger.Warn("Failed to load skill corpus", "error", err)
	}
	gen := s.generator.Generate(ctx, p.Name, res, corpus)
	us := gen.Skill
	p.Skill = &us

	if err := s.store.SavePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	if err := s.store.SaveSkillEmbedding(ctx, skill.StoredEmbedding{
		PlayerID:  p.ID,
		SkillName: us.Name,
		SkillText: skill.EmbeddingText(us.Name, us.Description, us.Mechanic),
		Embedding: gen.Embedding,
	}); err != nil {
		s.logger.Error("Failed to save skill embedding", "error", err, "player_id", p.ID.String())
	}

	ev := identity.NewEvent(p.ID, uuid.Nil, 0, identity.EventOnboarded,
		fmt.Sprintf("onboarded as %s with skill %s", p.Archetype, us.Name),
		map[string]any{
			"archetype":      p.Archetype,
			"dna":            p.DNA,
			"skill_category": us.Category,
			"similarity":     gen.Similarity,
			"fallback_skill": gen.Fallback,
		})
	if err := s.store.LogIdentityEvent(ctx, ev); err != nil {
		s.logger.Error("Failed to log onboarded event", "error", err, "player_id", p.ID.String())
	}

	s.logger.Info("Player onboarded",
		"player_id", p.ID.String(),
		"archetype", p.Archetype,
		"skill", us.Name,
		"skill_attempts", gen.Attempts)
	return p, nil
}

// BatchEmbedder embeds many texts at once, preserving order.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// Reembed replaces corpus rows that still carry the hash stand-in, written
// while the provider was down, with real embeddings. It returns how many
// rows changed.
func (s *Service) Reembed(ctx context.Context, embedder BatchEmbedder) (int, error) {
	corpus, err := s.store.LoadSkillEmbeddings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load skill corpus: %w", err)
	}

	var stale []skill.StoredEmbedding
	for _, e := range corpus {
		if skill.IsHashEmbedding(e) {
			stale = append(stale, e)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	texts := make([]string, len(stale))
	for i, e := range stale {
		texts[i] = e.SkillText
	}
	vecs, err := embedder.EmbedAll(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed skill corpus: %w", err)
	}

	updated := 0
	for i, e := range stale {
		e.Embedding = vecs[i]
		if skill.IsHashEmbedding(e) {
			continue
		}
		if err := s.store.SaveSkillEmbedding(ctx, e); err != nil {
			s.logger.Error("Failed to save skill embedding", "error", err, "skill", e.SkillName)
			continue
		}
		updated++
	}
	s.logger.Info("Skill corpus re-embedded", "stale", len(stale), "updated", updated)
	return updated, nil
}
