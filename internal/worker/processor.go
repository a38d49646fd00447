package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/internal/pipeline"
	"github.com/jwebster45206/isekai-engine/pkg/chat"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/storage"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

var (
	// ErrUnknownChoice means the choice id is not on the latest chapter.
	ErrUnknownChoice = errors.New("choice not offered by the latest chapter")
	// ErrDailyLimit means the player used every turn for today.
	ErrDailyLimit = errors.New("daily turn limit reached")
	// ErrStoryInactive means the story was soft-deleted.
	ErrStoryInactive = errors.New("story is not active")
)

// Runner runs one pipeline turn.
type Runner interface {
	Run(ctx context.Context, s pipeline.NarrativeState) (*pipeline.Outcome, error)
}

var _ Runner = (*pipeline.Orchestrator)(nil)

// Processor loads a story, runs the pipeline and commits the result. It is
// used by the queue worker and, synchronously, by the CLI and console.
type Processor struct {
	storage        storage.Storage
	runner         Runner
	maxTurnsPerDay int
	logger         *slog.Logger
	now            func() time.Time
}

// NewProcessor builds a processor. maxTurnsPerDay <= 0 disables the limit.
func NewProcessor(store storage.Storage, runner Runner, maxTurnsPerDay int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		storage:        store,
		runner:         runner,
		maxTurnsPerDay: maxTurnsPerDay,
		logger:         logger,
		now:            time.Now,
	}
}

// StartStory creates and saves an empty story for a player. The first
// chapter is written by the first continuation.
func (p *Processor) StartStory(ctx context.Context, playerID uuid.UUID, tags []string, backstory, tone string) (*story.Story, error) {
	pl, err := p.storage.LoadPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	s := story.NewStory(pl.UserID, pl.ID, tags, backstory, tone)
	if err := p.storage.SaveStory(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}
	ws := &story.WorldState{StoryID: s.ID, CurrentFloor: max(pl.Progression.Floor, 1)}
	if err := p.storage.SaveWorldState(ctx, ws); err != nil {
		p.logger.Error("Failed to save initial world state", "error", err, "story_id", s.ID.String())
	}
	p.logger.Info("Story started", "story_id", s.ID.String(), "player_id", pl.ID.String())
	return s, nil
}

// Process runs one continuation. Nothing is written unless the pipeline
// completes.
func (p *Processor) Process(ctx context.Context, req chat.ContinueRequest) (*chat.ContinueResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	st, err := p.storage.LoadStory(ctx, req.StoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if !st.IsActive {
		return nil, ErrStoryInactive
	}
	if req.PlayerID != uuid.Nil && req.PlayerID != st.PlayerID {
		return nil, fmt.Errorf("player %s does not own story %s", req.PlayerID, st.ID)
	}

	pl, err := p.storage.LoadPlayer(ctx, st.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	if err := p.checkTurns(pl); err != nil {
		return nil, err
	}

	prev, err := p.storage.LoadLatestChapter(ctx, st.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load latest chapter: %w", err)
	}

	state := pipeline.NarrativeState{
		StoryID:        st.ID,
		ChapterNumber:  1,
		PreferenceTags: st.PreferenceTags,
		Backstory:      st.Backstory,
		Tone:           st.Tone,
		Protagonist:    pl.Name,
		Player:         pl,
		FreeInput:      strings.TrimSpace(req.FreeText),
	}
	if prev != nil {
		state.ChapterNumber = prev.ChapterNumber + 1
		state.PreviousSummary = prev.Summary
	}
	if req.ChoiceID != "" {
		c, err := findChoice(prev, req.ChoiceID)
		if err != nil {
			return nil, err
		}
		state.ChosenChoice = &c
	}

	state.Ledger, err = p.loadLedger(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	world, err := p.loadWorld(ctx, st.ID, pl)
	if err != nil {
		return nil, err
	}

	out, err := p.runner.Run(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("pipeline failed: %w", err)
	}

	p.commit(ctx, st, world, out)

	return &chat.ContinueResponse{
		StoryID:       st.ID,
		ChapterNumber: out.Chapter.ChapterNumber,
		Title:         out.Chapter.Title,
		Prose:         out.Chapter.Prose,
		Choices:       out.Chapter.Choices,
		RankTitle:     out.Player.Progression.RankTitle,
		CriticScore:   out.Chapter.CriticScore,
		RewriteCount:  out.Chapter.RewriteCount,
	}, nil
}

func (p *Processor) checkTurns(pl *player.State) error {
	if p.maxTurnsPerDay <= 0 {
		return nil
	}
	today := *pl
	today.ResetDailyTurns(p.now())
	if today.TurnsToday >= p.maxTurnsPerDay {
		return ErrDailyLimit
	}
	return nil
}

func findChoice(prev *story.Chapter, id string) (story.Choice, error) {
	if prev != nil {
		for _, c := range prev.Choices {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return story.Choice{}, fmt.Errorf("%w: %s", ErrUnknownChoice, id)
}

func (p *Processor) loadLedger(ctx context.Context, storyID uuid.UUID) (*ledger.Ledger, error) {
	l, err := p.storage.LoadLedger(ctx, storyID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ledger.New(storyID), nil
	case err != nil:
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return l, nil
}

func (p *Processor) loadWorld(ctx context.Context, storyID uuid.UUID, pl *player.State) (*story.WorldState, error) {
	w, err := p.storage.LoadWorldState(ctx, storyID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &story.WorldState{StoryID: storyID, CurrentFloor: max(pl.Progression.Floor, 1)}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load world state: %w", err)
	}
	return w, nil
}

// commit writes the turn in a fixed order. Every write is attempted; a
// failure is logged and the next write proceeds.
func (p *Processor) commit(ctx context.Context, st *story.Story, world *story.WorldState, out *pipeline.Outcome) {
	log := p.logger.With("story_id", st.ID.String(), "chapter", out.Chapter.ChapterNumber)
	now := p.now().UTC()

	if err := p.storage.SavePlayer(ctx, out.Player); err != nil {
		log.Error("Failed to save player", "error", err)
	}
	if err := p.storage.SaveLedger(ctx, out.Ledger); err != nil {
		log.Error("Failed to save ledger", "error", err)
	}

	st.ChapterCount = out.Chapter.ChapterNumber
	if st.Title == "" {
		st.Title = out.Chapter.Title
	}
	st.UpdatedAt = now
	if err := p.storage.SaveStory(ctx, st); err != nil {
		log.Error("Failed to save story", "error", err)
	}
	if err := p.storage.SaveChapter(ctx, out.Chapter); err != nil {
		log.Error("Failed to save chapter", "error", err)
	}
	if err := p.storage.SaveScene(ctx, out.Scene); err != nil {
		log.Error("Failed to save scene", "error", err)
	}
	for _, ev := range out.Events {
		if err := p.storage.LogIdentityEvent(ctx, ev); err != nil {
			log.Error("Failed to log identity event", "error", err, "event_type", ev.Type)
		}
	}

	world.Record(out.WorldChanges, out.Foreshadowing)
	world.CurrentFloor = max(out.Player.Progression.Floor, 1)
	world.UpdatedAt = now
	if err := p.storage.SaveWorldState(ctx, world); err != nil {
		log.Error("Failed to save world state", "error", err)
	}

	log.Info("Chapter committed",
		"status", out.State.Status,
		"critic_score", out.Chapter.CriticScore,
		"events", len(out.Events))
}
