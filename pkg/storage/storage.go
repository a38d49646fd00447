package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// ErrNotFound is returned by Load operations when the record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the persistence surface the engine consumes.
// Chapters, scenes and identity events are append-only; everything else is
// upserted whole.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Players
	SavePlayer(ctx context.Context, p *player.State) error
	LoadPlayer(ctx context.Context, id uuid.UUID) (*player.State, error)

	// Stories
	SaveStory(ctx context.Context, s *story.Story) error
	LoadStory(ctx context.Context, id uuid.UUID) (*story.Story, error)

	// Chapters and scenes
	SaveChapter(ctx context.Context, c *story.Chapter) error
	LoadLatestChapter(ctx context.Context, storyID uuid.UUID) (*story.Chapter, error)
	ListChapters(ctx context.Context, storyID uuid.UUID) ([]*story.Chapter, error)
	SaveScene(ctx context.Context, sc *story.Scene) error
	ListScenes(ctx context.Context, chapterID uuid.UUID) ([]*story.Scene, error)

	// Per-story canon and world bookkeeping
	SaveLedger(ctx context.Context, l *ledger.Ledger) error
	LoadLedger(ctx context.Context, storyID uuid.UUID) (*ledger.Ledger, error)
	SaveWorldState(ctx context.Context, w *story.WorldState) error
	LoadWorldState(ctx context.Context, storyID uuid.UUID) (*story.WorldState, error)

	// Identity event log
	LogIdentityEvent(ctx context.Context, ev identity.Event) error
	ListIdentityEvents(ctx context.Context, playerID uuid.UUID) ([]identity.Event, error)

	// Unique-skill embedding corpus
	SaveSkillEmbedding(ctx context.Context, e skill.StoredEmbedding) error
	LoadSkillEmbeddings(ctx context.Context) ([]skill.StoredEmbedding, error)
}
