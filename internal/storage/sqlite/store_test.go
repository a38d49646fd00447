package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/storage"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	s, err := Open(context.Background(), path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	ctx := context.Background()

	first, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	var n int
	require.NoError(t, second.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestStore_PlayerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := player.New("user-1", "Lâm Phong", player.ArchetypeSeeker, player.SeedIdentity{
		CoreValues: []string{"tự do"},
	}, nil)
	p.FateBuffer = 87.5
	require.NoError(t, s.SavePlayer(ctx, p))

	got, err := s.LoadPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, player.ArchetypeSeeker, got.Archetype)
	assert.Equal(t, 87.5, got.FateBuffer)

	p.FateBuffer = 60
	require.NoError(t, s.SavePlayer(ctx, p))
	got, err = s.LoadPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.FateBuffer)

	_, err = s.LoadPlayer(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_StoryAndChapters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := story.NewStory("user-1", uuid.New(), []string{"tu tiên"}, "", "u tối")
	require.NoError(t, s.SaveStory(ctx, st))
	loaded, err := s.LoadStory(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.PlayerID, loaded.PlayerID)

	_, err = s.LoadLatestChapter(ctx, st.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, n := range []int{2, 1, 3} {
		require.NoError(t, s.SaveChapter(ctx, &story.Chapter{
			ID:            uuid.New(),
			StoryID:       st.ID,
			ChapterNumber: n,
			Title:         "Chương",
			CreatedAt:     time.Now().UTC(),
		}))
	}

	latest, err := s.LoadLatestChapter(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.ChapterNumber)

	all, err := s.ListChapters(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, i+1, c.ChapterNumber)
	}

	dup := &story.Chapter{ID: uuid.New(), StoryID: st.ID, ChapterNumber: 3}
	assert.Error(t, s.SaveChapter(ctx, dup), "chapter numbers are unique per story")
}

func TestStore_Scenes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := &story.Chapter{ID: uuid.New(), StoryID: uuid.New(), ChapterNumber: 1, Prose: "Sương phủ tầng một."}
	require.NoError(t, s.SaveChapter(ctx, c))
	require.NoError(t, s.SaveScene(ctx, story.WrapChapter(c, story.SceneExploration, 6, "u hoài")))

	scenes, err := s.ListScenes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.True(t, scenes[0].IsChapterEnd)
	assert.Equal(t, c.Prose, scenes[0].Prose)

	orphan := &story.Scene{ID: uuid.New(), ChapterID: uuid.New(), SceneNumber: 1}
	assert.Error(t, s.SaveScene(ctx, orphan), "scenes reference an existing chapter")
}

func TestStore_LedgerAndWorldState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	storyID := uuid.New()

	l := ledger.New(storyID)
	l.AddEntity(ledger.Entity{Type: ledger.EntityNPC, Name: "Lão Mộc Sương", FirstChapter: 1})
	l.AddFact("Tầng một chìm trong sương.", 1, "writer", nil)
	require.NoError(t, s.SaveLedger(ctx, l))

	gotLedger, err := s.LoadLedger(ctx, storyID)
	require.NoError(t, err)
	require.Len(t, gotLedger.Entities, 1)
	assert.Equal(t, "Lão Mộc Sương", gotLedger.Entities[0].Name)
	assert.Len(t, gotLedger.Facts, 1)

	_, err = s.LoadWorldState(ctx, storyID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	w := &story.WorldState{StoryID: storyID, CurrentFloor: 2}
	w.Record([]string{"cổng tầng hai mở"}, nil)
	require.NoError(t, s.SaveWorldState(ctx, w))
	gotWorld, err := s.LoadWorldState(ctx, storyID)
	require.NoError(t, err)
	assert.Equal(t, 2, gotWorld.CurrentFloor)
	assert.Contains(t, gotWorld.WorldChanges, "cổng tầng hai mở")
}

func TestStore_IdentityEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	playerID, storyID := uuid.New(), uuid.New()

	first := identity.NewEvent(playerID, storyID, 1, identity.EventDeltaApplied, "delta", map[string]any{"source": "chapter"})
	second := identity.NewEvent(playerID, storyID, 2, identity.EventDrift, "drift", nil)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := identity.NewEvent(uuid.New(), storyID, 1, identity.EventDrift, "someone else", nil)

	for _, ev := range []identity.Event{first, second, other} {
		require.NoError(t, s.LogIdentityEvent(ctx, ev))
	}

	events, err := s.ListIdentityEvents(ctx, playerID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, identity.EventDeltaApplied, events[0].Type)
	assert.Equal(t, "chapter", events[0].Data["source"])
	assert.Equal(t, identity.EventDrift, events[1].Type)
	assert.Nil(t, events[1].Data)
}

func TestStore_SkillEmbeddings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := skill.StoredEmbedding{
		PlayerID:  uuid.New(),
		SkillName: "Mắt Sương",
		SkillText: "nhìn xuyên sương mù",
		Embedding: skill.HashEmbedding("nhìn xuyên sương mù"),
	}
	require.NoError(t, s.SaveSkillEmbedding(ctx, e))

	e.SkillText = "nhìn xuyên ảo ảnh"
	require.NoError(t, s.SaveSkillEmbedding(ctx, e))

	all, err := s.LoadSkillEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "nhìn xuyên ảo ảnh", all[0].SkillText)
	assert.Len(t, all[0].Embedding, skill.EmbeddingDims)
}

func TestStore_MigrateChaptersToScenes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	storyID := uuid.New()

	legacy := &story.Chapter{ID: uuid.New(), StoryID: storyID, ChapterNumber: 1, Prose: "Chương cũ."}
	modern := &story.Chapter{ID: uuid.New(), StoryID: storyID, ChapterNumber: 2, Prose: "Chương mới.", TotalScenes: 1}
	require.NoError(t, s.SaveChapter(ctx, legacy))
	require.NoError(t, s.SaveChapter(ctx, modern))
	require.NoError(t, s.SaveScene(ctx, story.WrapChapter(modern, "", 5, "")))

	report, err := s.MigrateChaptersToScenes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SceneMigrationReport{Migrated: 1, Skipped: 1}, report)

	scenes, err := s.ListScenes(ctx, legacy.ID)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, "Chương cũ.", scenes[0].Prose)

	chapters, err := s.ListChapters(ctx, storyID)
	require.NoError(t, err)
	assert.Equal(t, 1, chapters[0].TotalScenes)

	again, err := s.MigrateChaptersToScenes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SceneMigrationReport{Migrated: 0, Skipped: 2}, again)
}
