// Package sqlite implements the engine's Storage on a single SQLite file.
// Records are stored as JSON documents next to the columns used for lookup.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/storage"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// Store is the SQLite-backed Storage. All writes go through one connection.
type Store struct {
	sqlDB  *sql.DB
	logger *slog.Logger
}

var _ storage.Storage = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite storage ready", "path", path)
	return &Store{sqlDB: sqlDB, logger: logger}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(data), nil
}

// loadDoc scans one JSON column into out, mapping no rows to ErrNotFound.
func (s *Store) loadDoc(ctx context.Context, out any, query string, args ...any) error {
	var data string
	err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return decodeInto(data, out)
}

func decodeInto(data string, out any) error {
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Players

func (s *Store) SavePlayer(ctx context.Context, p *player.State) error {
	if p == nil {
		return fmt.Errorf("player is nil")
	}
	p.UpdatedAt = time.Now().UTC()
	data, err := encode(p)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO players (id, user_id, name, data, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, name = excluded.name,
	data = excluded.data, updated_at = excluded.updated_at`,
		p.ID.String(), p.UserID, p.Name, data, toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

func (s *Store) LoadPlayer(ctx context.Context, id uuid.UUID) (*player.State, error) {
	var p player.State
	if err := s.loadDoc(ctx, &p, `SELECT data FROM players WHERE id = ?`, id.String()); err != nil {
		return nil, fmt.Errorf("load player %s: %w", id, err)
	}
	return &p, nil
}

// Stories

func (s *Store) SaveStory(ctx context.Context, st *story.Story) error {
	if st == nil {
		return fmt.Errorf("story is nil")
	}
	st.UpdatedAt = time.Now().UTC()
	data, err := encode(st)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO stories (id, user_id, player_id, is_active, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET is_active = excluded.is_active, data = excluded.data, updated_at = excluded.updated_at`,
		st.ID.String(), st.UserID, st.PlayerID.String(), st.IsActive, data, toMillis(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save story: %w", err)
	}
	return nil
}

func (s *Store) LoadStory(ctx context.Context, id uuid.UUID) (*story.Story, error) {
	var st story.Story
	if err := s.loadDoc(ctx, &st, `SELECT data FROM stories WHERE id = ?`, id.String()); err != nil {
		return nil, fmt.Errorf("load story %s: %w", id, err)
	}
	return &st, nil
}

// Chapters and scenes

// SaveChapter inserts a new chapter. Chapters are append-only; a second
// chapter with the same number in a story is rejected.
func (s *Store) SaveChapter(ctx context.Context, c *story.Chapter) error {
	if c == nil {
		return fmt.Errorf("chapter is nil")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	data, err := encode(c)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO chapters (id, story_id, chapter_number, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID.String(), c.StoryID.String(), c.ChapterNumber, data, toMillis(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("save chapter %d: %w", c.ChapterNumber, err)
	}
	return nil
}

func (s *Store) LoadLatestChapter(ctx context.Context, storyID uuid.UUID) (*story.Chapter, error) {
	var c story.Chapter
	err := s.loadDoc(ctx, &c, `
SELECT data FROM chapters WHERE story_id = ? ORDER BY chapter_number DESC LIMIT 1`, storyID.String())
	if err != nil {
		return nil, fmt.Errorf("load latest chapter: %w", err)
	}
	return &c, nil
}

func (s *Store) ListChapters(ctx context.Context, storyID uuid.UUID) ([]*story.Chapter, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT data FROM chapters WHERE story_id = ? ORDER BY chapter_number`, storyID.String())
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return scanDocs[story.Chapter](rows)
}

func (s *Store) SaveScene(ctx context.Context, sc *story.Scene) error {
	if sc == nil {
		return fmt.Errorf("scene is nil")
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	data, err := encode(sc)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO scenes (id, chapter_id, scene_number, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		sc.ID.String(), sc.ChapterID.String(), sc.SceneNumber, data, toMillis(sc.CreatedAt))
	if err != nil {
		return fmt.Errorf("save scene %d: %w", sc.SceneNumber, err)
	}
	return nil
}

func (s *Store) ListScenes(ctx context.Context, chapterID uuid.UUID) ([]*story.Scene, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT data FROM scenes WHERE chapter_id = ? ORDER BY scene_number`, chapterID.String())
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return scanDocs[story.Scene](rows)
}

func scanDocs[T any](rows *sql.Rows) ([]*T, error) {
	defer func() { _ = rows.Close() }()
	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v := new(T)
		if err := json.Unmarshal([]byte(data), v); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Ledger and world state

func (s *Store) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	if l == nil {
		return fmt.Errorf("ledger is nil")
	}
	l.UpdatedAt = time.Now().UTC()
	data, err := encode(l)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO ledgers (story_id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(story_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		l.StoryID.String(), data, toMillis(l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (s *Store) LoadLedger(ctx context.Context, storyID uuid.UUID) (*ledger.Ledger, error) {
	var l ledger.Ledger
	if err := s.loadDoc(ctx, &l, `SELECT data FROM ledgers WHERE story_id = ?`, storyID.String()); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return &l, nil
}

func (s *Store) SaveWorldState(ctx context.Context, w *story.WorldState) error {
	if w == nil {
		return fmt.Errorf("world state is nil")
	}
	w.UpdatedAt = time.Now().UTC()
	data, err := encode(w)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO world_states (story_id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(story_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		w.StoryID.String(), data, toMillis(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save world state: %w", err)
	}
	return nil
}

func (s *Store) LoadWorldState(ctx context.Context, storyID uuid.UUID) (*story.WorldState, error) {
	var w story.WorldState
	if err := s.loadDoc(ctx, &w, `SELECT data FROM world_states WHERE story_id = ?`, storyID.String()); err != nil {
		return nil, fmt.Errorf("load world state: %w", err)
	}
	return &w, nil
}

// Identity events

func (s *Store) LogIdentityEvent(ctx context.Context, ev identity.Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	var data sql.NullString
	if len(ev.Data) > 0 {
		encoded, err := encode(ev.Data)
		if err != nil {
			return err
		}
		data = sql.NullString{String: encoded, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO identity_events (id, player_id, story_id, chapter, event_type, description, data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.PlayerID.String(), ev.StoryID.String(), ev.Chapter,
		string(ev.Type), ev.Description, data, toMillis(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("log identity event: %w", err)
	}
	return nil
}

func (s *Store) ListIdentityEvents(ctx context.Context, playerID uuid.UUID) ([]identity.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, player_id, story_id, chapter, event_type, description, data, created_at
FROM identity_events WHERE player_id = ? ORDER BY created_at, rowid`, playerID.String())
	if err != nil {
		return nil, fmt.Errorf("list identity events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []identity.Event
	for rows.Next() {
		var (
			ev                identity.Event
			id, pid, sid, typ string
			data              sql.NullString
			createdAt         int64
		)
		if err := rows.Scan(&id, &pid, &sid, &ev.Chapter, &typ, &ev.Description, &data, &createdAt); err != nil {
			return nil, err
		}
		ev.ID, _ = uuid.Parse(id)
		ev.PlayerID, _ = uuid.Parse(pid)
		ev.StoryID, _ = uuid.Parse(sid)
		ev.Type = identity.EventType(typ)
		ev.CreatedAt = time.UnixMilli(createdAt).UTC()
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &ev.Data); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Skill embeddings

func (s *Store) SaveSkillEmbedding(ctx context.Context, e skill.StoredEmbedding) error {
	vec, err := encode(e.Embedding)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO skill_embeddings (player_id, skill_name, skill_text, embedding_json, created_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(player_id, skill_name) DO UPDATE SET skill_text = excluded.skill_text, embedding_json = excluded.embedding_json`,
		e.PlayerID.String(), e.SkillName, e.SkillText, vec, toMillis(time.Time{}))
	if err != nil {
		return fmt.Errorf("save skill embedding: %w", err)
	}
	return nil
}

func (s *Store) LoadSkillEmbeddings(ctx context.Context) ([]skill.StoredEmbedding, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT player_id, skill_name, skill_text, embedding_json FROM skill_embeddings ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("load skill embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []skill.StoredEmbedding
	for rows.Next() {
		var (
			e        skill.StoredEmbedding
			pid, vec string
		)
		if err := rows.Scan(&pid, &e.SkillName, &e.SkillText, &vec); err != nil {
			return nil, err
		}
		e.PlayerID, _ = uuid.Parse(pid)
		if err := json.Unmarshal([]byte(vec), &e.Embedding); err != nil {
			s.logger.Warn("Skipping corrupt skill embedding", "skill", e.SkillName, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
