package storage

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// MockStorage is an in-memory Storage for tests.
type MockStorage struct {
	mu          sync.RWMutex
	players     map[uuid.UUID]*player.State
	stories     map[uuid.UUID]*story.Story
	chapters    map[uuid.UUID][]*story.Chapter
	scenes      map[uuid.UUID][]*story.Scene
	ledgers     map[uuid.UUID]*ledger.Ledger
	worlds      map[uuid.UUID]*story.WorldState
	events      []identity.Event
	embeddings  []skill.StoredEmbedding
	pingError   error
	writeErrors map[string]error
	writes      []string
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		players:     make(map[uuid.UUID]*player.State),
		stories:     make(map[uuid.UUID]*story.Story),
		chapters:    make(map[uuid.UUID][]*story.Chapter),
		scenes:      make(map[uuid.UUID][]*story.Scene),
		ledgers:     make(map[uuid.UUID]*ledger.Ledger),
		worlds:      make(map[uuid.UUID]*story.WorldState),
		writeErrors: make(map[string]error),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// FailWrite makes the named write operation (e.g. "SaveLedger") return err.
func (m *MockStorage) FailWrite(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrors[op] = err
}

// Writes returns the successful write operations in call order.
func (m *MockStorage) Writes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.writes)
}

// write records op unless a failure was configured for it. Callers hold mu.
func (m *MockStorage) write(op string) error {
	if err := m.writeErrors[op]; err != nil {
		return err
	}
	m.writes = append(m.writes, op)
	return nil
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SavePlayer(ctx context.Context, p *player.State) error {
	if p == nil {
		return errors.New("player cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SavePlayer"); err != nil {
		return err
	}
	m.players[p.ID] = p.Clone()
	return nil
}

func (m *MockStorage) LoadPlayer(ctx context.Context, id uuid.UUID) (*player.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MockStorage) SaveStory(ctx context.Context, s *story.Story) error {
	if s == nil {
		return errors.New("story cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SaveStory"); err != nil {
		return err
	}
	cp := *s
	m.stories[s.ID] = &cp
	return nil
}

func (m *MockStorage) LoadStory(ctx context.Context, id uuid.UUID) (*story.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockStorage) SaveChapter(ctx context.Context, c *story.Chapter) error {
	if c == nil {
		return errors.New("chapter cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SaveChapter"); err != nil {
		return err
	}
	m.chapters[c.StoryID] = append(m.chapters[c.StoryID], c)
	return nil
}

func (m *MockStorage) LoadLatestChapter(ctx context.Context, storyID uuid.UUID) (*story.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *story.Chapter
	for _, c := range m.chapters[storyID] {
		if latest == nil || c.ChapterNumber > latest.ChapterNumber {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MockStorage) ListChapters(ctx context.Context, storyID uuid.UUID) ([]*story.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.chapters[storyID])
	slices.SortFunc(out, func(a, b *story.Chapter) int { return a.ChapterNumber - b.ChapterNumber })
	return out, nil
}

func (m *MockStorage) SaveScene(ctx context.Context, sc *story.Scene) error {
	if sc == nil {
		return errors.New("scene cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SaveScene"); err != nil {
		return err
	}
	m.scenes[sc.ChapterID] = append(m.scenes[sc.ChapterID], sc)
	return nil
}

func (m *MockStorage) ListScenes(ctx context.Context, chapterID uuid.UUID) ([]*story.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.scenes[chapterID]), nil
}

func (m *MockStorage) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	if l == nil {
		return errors.New("ledger cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SaveLedger"); err != nil {
		return err
	}
	m.ledgers[l.StoryID] = l.Clone()
	return nil
}

func (m *MockStorage) LoadLedger(ctx context.Context, storyID uuid.UUID) (*ledger.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.ledgers[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

func (m *MockStorage) SaveWorldState(ctx context.Context, w *story.WorldState) error {
	if w == nil {
		return errors.New("world state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SaveWorldState"); err != nil {
		return err
	}
	cp := *w
	m.worlds[w.StoryID] = &cp
	return nil
}

func (m *MockStorage) LoadWorldState(ctx context.Context, storyID uuid.UUID) (*story.WorldState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worlds[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MockStorage) LogIdentityEvent(ctx context.Context, ev identity.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("LogIdentityEvent"); err != nil {
		return err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *MockStorage) ListIdentityEvents(ctx context.Context, playerID uuid.UUID) ([]identity.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []identity.Event
	for _, ev := range m.events {
		if ev.PlayerID == playerID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockStorage) SaveSkillEmbedding(ctx context.Context, e skill.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SaveSkillEmbedding"); err != nil {
		return err
	}
	for i, have := range m.embeddings {
		if have.PlayerID == e.PlayerID && have.SkillName == e.SkillName {
			m.embeddings[i] = e
			return nil
		}
	}
	m.embeddings = append(m.embeddings, e)
	return nil
}

func (m *MockStorage) LoadSkillEmbeddings(ctx context.Context) ([]skill.StoredEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.embeddings), nil
}
