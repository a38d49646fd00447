package pipeline

import (
	"context"
	"fmt"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/textfilter"
)

// parseFallbackScore is the synthetic score given when the critic's reply
// cannot be read, so a broken critic never blocks a chapter.
const parseFallbackScore = 7.0

type criticInput struct {
	Prose        string
	Beats        []Beat
	Tags         []string
	Tone         string
	RewriteCount int
	LedgerBlock  string
}

type criticUpdate struct {
	out CriticOutput
}

func (u criticUpdate) merge(s *NarrativeState) {
	out := u.out
	s.Critic = &out
}

type critic struct {
	caller
	model       string
	minScore    float64
	forceFloor  float64
	maxAttempts int
	ledgerChars int
}

func (c *critic) agent() services.Agent { return services.AgentCritic }

func (c *critic) run(ctx context.Context, s NarrativeState) update {
	in := criticInput{
		Beats:        s.beats(),
		Tags:         s.PreferenceTags,
		Tone:         s.Tone,
		RewriteCount: s.RewriteCount,
	}
	if s.Writer != nil {
		in.Prose = s.Writer.Prose
	}
	if s.Ledger != nil {
		in.LedgerBlock = s.Ledger.ToPromptString(c.ledgerChars)
	}
	return criticUpdate{out: c.review(ctx, in)}
}

// review runs the canon guard and, when it finds nothing critical, the LLM
// critic.
func (c *critic) review(ctx context.Context, in criticInput) CriticOutput {
	report := textfilter.CheckCanon(in.Prose)
	if report.HasCriticalViolation() {
		criticals := report.Criticals()
		c.logger.Warn("Canon guard rejected draft",
			"rules", textfilter.RuleIDs(criticals),
			"rewrite_count", in.RewriteCount)
		return CriticOutput{
			Score:               0,
			Approved:            false,
			Feedback:            "Bản thảo vi phạm canon của thế giới.",
			Issues:              textfilter.RuleIDs(report.Violations),
			RewriteInstructions: textfilter.FormatViolations(criticals),
			CanonCriticals:      textfilter.RuleIDs(criticals),
			CanonWarnings:       textfilter.RuleIDs(report.Warnings()),
		}
	}

	warnings := report.Warnings()
	b := prompts.New().
		WithStory(in.Tags, in.Tone, "").
		WithList("DÀN Ý", beatLines(in.Beats)).
		WithLedger(in.LedgerBlock).
		WithSection("LẦN VIẾT", fmt.Sprintf("Bản thảo lần %d", in.RewriteCount+1)).
		WithSection("BẢN THẢO", in.Prose)
	if len(warnings) > 0 {
		b = b.WithSection(prompts.CanonAdvisoryHeader, textfilter.FormatViolations(warnings))
	}
	user, err := b.Build()
	if err != nil {
		c.logger.Error("Failed to build critic prompt", "error", err)
		return c.fallback(warnings)
	}

	raw, err := c.generate(ctx, services.GenerateRequest{
		Agent:       services.AgentCritic,
		Model:       c.model,
		System:      prompts.CriticSystemPrompt,
		User:        user,
		MaxTokens:   1024,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		logParseFailure(c.logger, services.AgentCritic, raw, err)
		return c.fallback(warnings)
	}

	var out CriticOutput
	if err := decodeJSON(raw, &out); err != nil {
		logParseFailure(c.logger, services.AgentCritic, raw, err)
		return c.fallback(warnings)
	}
	out.Score = min(max(out.Score, 0), 10)
	out.Approved = out.Approved && out.Score >= c.minScore
	out.CanonWarnings = textfilter.RuleIDs(warnings)

	if !out.Approved && c.shouldForceApprove(in.RewriteCount, out.Score) {
		c.logger.Info("Critic force-approved draft", "score", out.Score, "rewrite_count", in.RewriteCount)
		out.Approved = true
		out.ForceApproved = true
	}
	return out
}

// shouldForceApprove holds iff the last allowed draft is being judged and
// it reaches the passable floor.
func (c *critic) shouldForceApprove(rewriteCount int, score float64) bool {
	return rewriteCount >= c.maxAttempts-1 && score >= c.forceFloor
}

func (c *critic) fallback(warnings []textfilter.Violation) CriticOutput {
	return CriticOutput{
		Score:         parseFallbackScore,
		Approved:      true,
		Feedback:      "Tự động duyệt do không đọc được đánh giá.",
		CanonWarnings: textfilter.RuleIDs(warnings),
		ParseFallback: true,
	}
}
