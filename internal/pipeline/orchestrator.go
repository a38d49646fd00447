package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwebster45206/isekai-engine/internal/config"
	"github.com/jwebster45206/isekai-engine/internal/content"
	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/internal/telemetry"
	"github.com/jwebster45206/isekai-engine/pkg/archetype"
	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/fate"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/textfilter"
)

// DefaultAgentTimeout applies when the configured timeout is unset.
const DefaultAgentTimeout = 60 * time.Second

// Orchestrator runs pipeline turns. It holds only read-only collaborators
// and may serve concurrent runs for different stories.
type Orchestrator struct {
	cfg     config.Engine
	library *content.Library
	fate    *fate.Buffer
	tracer  trace.Tracer
	logger  *slog.Logger
	seed    *int64
	now     func() time.Time

	parser    *inputParser
	planner   *planner
	simulator *simulator
	writer    *writer
	critic    *critic
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithTracer replaces the global engine tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithSeed fixes the CRNG seed of every run.
func WithSeed(seed int64) Option {
	return func(o *Orchestrator) { o.seed = &seed }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires the agents. A nil library behaves as an empty one.
func New(llm services.LLMService, cfg *config.Config, library *content.Library, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if library == nil {
		library = content.Empty()
	}
	e := cfg.Engine
	if e.AgentTimeout <= 0 {
		e.AgentTimeout = DefaultAgentTimeout
	}
	o := &Orchestrator{
		cfg:     e,
		library: library,
		fate:    fate.New(e.Fate),
		tracer:  telemetry.Tracer(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	c := caller{llm: llm, logger: logger}
	o.parser = &inputParser{caller: c, model: cfg.Models.Parser, guard: textfilter.NewPromptGuard(e.PromptGuard.MaxLength, logger), ledgerChars: e.LedgerPromptChars}
	o.planner = &planner{caller: c, model: cfg.Models.Planner, library: library, ledgerChars: e.LedgerPromptChars}
	o.simulator = &simulator{caller: c, model: cfg.Models.Simulator, ledgerChars: e.LedgerPromptChars}
	o.writer = &writer{
		caller:       c,
		model:        cfg.Models.Writer,
		worldContext: library.WorldContext(),
		maxTokens:    e.WriterMaxTokens,
		temperature:  e.WriterTemperature,
		ledgerChars:  e.LedgerPromptChars,
	}
	o.critic = &critic{
		caller:      c,
		model:       cfg.Models.Critic,
		minScore:    e.CriticMinScore,
		forceFloor:  e.CriticForceApproveFloor,
		maxAttempts: max(e.MaxRewriteAttempts, 1),
		ledgerChars: e.LedgerPromptChars,
	}
	return o
}

// Run executes one turn and the deterministic post-processing. Nothing is
// persisted here. The only errors are a missing player and cancellation of
// ctx; every agent failure degrades to that agent's fallback.
func (o *Orchestrator) Run(ctx context.Context, initial NarrativeState) (*Outcome, error) {
	if initial.Player == nil {
		return nil, errors.New("narrative state has no player")
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("story.id", initial.StoryID.String()),
		attribute.Int("chapter.number", initial.ChapterNumber),
	))
	defer span.End()

	s := o.prepare(initial)
	log := o.logger.With("story_id", s.StoryID.String(), "chapter", s.ChapterNumber)
	log.Info("Pipeline started", "event", s.Event.EventType, "free_input", s.FreeInput != "")

	var err error
	if strings.TrimSpace(s.FreeInput) != "" {
		if s, err = o.runStep(ctx, o.parser, s); err != nil {
			return nil, o.abort(span, err)
		}
	}
	if s, err = o.runStep(ctx, o.planner, s); err != nil {
		return nil, o.abort(span, err)
	}
	if s, err = o.runStep(ctx, o.simulator, s); err != nil {
		return nil, o.abort(span, err)
	}
	if s, err = o.draft(ctx, s, log); err != nil {
		return nil, o.abort(span, err)
	}

	out := o.finalize(s)
	span.SetAttributes(
		attribute.Int("rewrite.count", s.RewriteCount),
		attribute.Float64("critic.score", s.Critic.Score),
		attribute.String("pipeline.status", string(s.Status)),
	)
	log.Info("Pipeline finished",
		"status", s.Status,
		"rewrite_count", s.RewriteCount,
		"critic_score", s.Critic.Score,
		"events", len(out.Events))
	return out, nil
}

// draft runs the writer/critic loop. The writer is invoked at most
// MaxRewriteAttempts times.
func (o *Orchestrator) draft(ctx context.Context, s NarrativeState, log *slog.Logger) (NarrativeState, error) {
	var err error
	for {
		if s, err = o.runStep(ctx, o.writer, s); err != nil {
			return s, err
		}
		if s, err = o.runStep(ctx, o.critic, s); err != nil {
			return s, err
		}

		verdict := s.Critic
		if verdict.Approved {
			s.Status = StatusApproved
			if verdict.ForceApproved {
				s.Status = StatusForceApproved
			}
			break
		}
		if s.RewriteCount+1 < o.critic.maxAttempts {
			s.RewriteCount++
			log.Info("Critic requested rewrite", "score", verdict.Score, "rewrite_count", s.RewriteCount)
			continue
		}
		s.Status = StatusExhausted
		log.Warn("Rewrite attempts exhausted, emitting last draft",
			"score", verdict.Score,
			"canon_criticals", verdict.CanonCriticals)
		break
	}
	s.FinalProse = s.Writer.Prose
	s.FinalChoices = s.Writer.Choices
	return s, nil
}

// runStep executes one agent under its own span and timeout. A timeout is
// the agent's own failure; cancellation of ctx aborts the run.
func (o *Orchestrator) runStep(ctx context.Context, st step, s NarrativeState) (NarrativeState, error) {
	ctx, span := o.tracer.Start(ctx, "agent."+string(st.agent()), trace.WithAttributes(
		attribute.String("story.id", s.StoryID.String()),
		attribute.Int("chapter.number", s.ChapterNumber),
		attribute.Int("rewrite.count", s.RewriteCount),
	))
	defer span.End()

	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	u := st.run(stepCtx, s)
	cancel()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "canceled")
		return s, fmt.Errorf("%s: %w", st.agent(), err)
	}
	u.merge(&s)
	if s.Critic != nil && st.agent() == services.AgentCritic {
		span.SetAttributes(attribute.Float64("critic.score", s.Critic.Score))
	}
	return s, nil
}

func (o *Orchestrator) abort(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "pipeline aborted")
	o.logger.Warn("Pipeline aborted", "error", err)
	return fmt.Errorf("pipeline aborted: %w", err)
}

// prepare computes the deterministic planner inputs.
func (o *Orchestrator) prepare(s NarrativeState) NarrativeState {
	p := s.Player
	if s.Ledger == nil {
		s.Ledger = ledger.New(s.StoryID)
	}
	if s.Protagonist == "" {
		s.Protagonist = p.Name
	}
	if s.SceneNumber == 0 {
		s.SceneNumber = 1
	}
	s.Event = o.rng().RollChapterEvents(p)
	status, instruction := o.fate.GetStatus(p.FateBuffer)
	s.FateInstruction = prompts.FateLine(status, instruction)
	s.RewardPlan = skill.PlanReward(p, s.ChapterNumber)
	s.PendingEvolution = pendingEvolution(p)
	return s
}

// rng builds the CRNG for one run.
func (o *Orchestrator) rng() *crng.Engine {
	if o.seed != nil {
		return crng.New(o.cfg.CRNG, *o.seed)
	}
	seed, err := crng.NewSeed()
	if err != nil {
		o.logger.Warn("Falling back to clock seed for CRNG", "error", err)
		seed = o.now().UnixNano()
	}
	return crng.New(o.cfg.CRNG, seed)
}

// pendingEvolution lists the evolution flags the planner must weave in.
func pendingEvolution(p *player.State) []string {
	var out []string
	if w := p.DormantWeapon(); w != nil {
		out = append(out, fmt.Sprintf("%s đang ngủ yên, chờ được đánh thức lại", w.Name))
	}
	if w := p.AwakeningWeapon(); w != nil {
		out = append(out, fmt.Sprintf("%s sắp thức tỉnh", w.Name))
	}
	if w := p.PrimaryWeapon(); w != nil && w.SignatureMove != nil {
		if ok, _ := w.CanEvolveV3(p.Skill.Stage()); ok {
			out = append(out, fmt.Sprintf("Tuyệt kỹ %s có thể tiến hóa lần cuối trong trận chiến đỉnh điểm", w.SignatureMove.Name))
		}
	}
	if evo := p.ArchetypeEvolution; evo.TransmutationPending {
		name := evo.PendingForm
		if f, ok := archetype.FormByID(name); ok {
			name = f.Name
		}
		out = append(out, fmt.Sprintf("Nhân vật bắt đầu hóa thân thành %s", name))
	}
	return out
}
