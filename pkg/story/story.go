package story

import (
	"time"

	"github.com/google/uuid"
)

// Story is one player's ongoing narrative.
type Story struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	PlayerID       uuid.UUID  `json:"player_id"`
	Title          string     `json:"title,omitempty"`
	PreferenceTags []string   `json:"preference_tags,omitempty"`
	Backstory      string     `json:"backstory,omitempty"`
	Tone           string     `json:"tone,omitempty"`
	ChapterCount   int        `json:"chapter_count"`
	IsActive       bool       `json:"is_active"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewStory creates an active story with no chapters.
func NewStory(userID string, playerID uuid.UUID, tags []string, backstory, tone string) *Story {
	now := time.Now().UTC()
	return &Story{
		ID:             uuid.New(),
		UserID:         userID,
		PlayerID:       playerID,
		PreferenceTags: tags,
		Backstory:      backstory,
		Tone:           tone,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SoftDelete marks the story inactive without removing its chapters.
func (s *Story) SoftDelete(now time.Time) {
	s.IsActive = false
	t := now.UTC()
	s.DeletedAt = &t
}

// MaxChoices is the number of options offered after each chapter.
const MaxChoices = 3

// Choice is one option offered to the player.
type Choice struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	RiskLevel       int    `json:"risk_level"`
	ConsequenceHint string `json:"consequence_hint,omitempty"`
	ActionType      string `json:"action_type,omitempty"`
	// Refused marks the stand-in choice produced when free input was rejected.
	Refused bool `json:"refused,omitempty"`
}

// ClampRisk bounds a risk level to 1..5.
func ClampRisk(r int) int {
	return min(max(r, 1), 5)
}

// Chapter is an append-only generated chapter.
type Chapter struct {
	ID            uuid.UUID `json:"id"`
	StoryID       uuid.UUID `json:"story_id"`
	ChapterNumber int       `json:"chapter_number"`
	Title         string    `json:"title"`
	Prose         string    `json:"prose"`
	Summary       string    `json:"summary"`
	Choices       []Choice  `json:"choices"`
	ChosenChoice  *Choice   `json:"chosen_choice,omitempty"`
	FreeInput     string    `json:"free_input,omitempty"`
	IdentityDelta string    `json:"identity_delta,omitempty"` // serialised JSON
	TotalScenes   int       `json:"total_scenes"`
	CriticScore   float64   `json:"critic_score"`
	RewriteCount  int       `json:"rewrite_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// SceneType classifies a scene for pacing and post-processing.
type SceneType string

const (
	SceneExploration SceneType = "exploration"
	SceneCombat      SceneType = "combat"
	SceneDiscovery   SceneType = "discovery"
	SceneSocial      SceneType = "social"
	SceneClimax      SceneType = "climax"
	SceneRest        SceneType = "rest"
)

// Scene is an append-only unit within a chapter.
type Scene struct {
	ID             uuid.UUID `json:"id"`
	ChapterID      uuid.UUID `json:"chapter_id"`
	SceneNumber    int       `json:"scene_number"`
	BeatIndex      int       `json:"beat_index"`
	Prose          string    `json:"prose"`
	Choices        []Choice  `json:"choices"`
	SceneType      SceneType `json:"scene_type"`
	Tension        int       `json:"tension"`
	Mood           string    `json:"mood,omitempty"`
	ChosenChoiceID string    `json:"chosen_choice_id,omitempty"`
	IsChapterEnd   bool      `json:"is_chapter_end"`
	CriticScore    float64   `json:"critic_score"`
	RewriteCount   int       `json:"rewrite_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// WrapChapter builds the single scene that carries a whole chapter.
func WrapChapter(c *Chapter, sceneType SceneType, tension int, mood string) *Scene {
	if sceneType == "" {
		sceneType = SceneExploration
	}
	return &Scene{
		ID:           uuid.New(),
		ChapterID:    c.ID,
		SceneNumber:  1,
		BeatIndex:    0,
		Prose:        c.Prose,
		Choices:      c.Choices,
		SceneType:    sceneType,
		Tension:      min(max(tension, 1), 10),
		Mood:         mood,
		IsChapterEnd: true,
		CriticScore:  c.CriticScore,
		RewriteCount: c.RewriteCount,
		CreatedAt:    c.CreatedAt,
	}
}

// WorldState is per-story world bookkeeping outside the ledger.
type WorldState struct {
	StoryID       uuid.UUID         `json:"story_id"`
	CurrentFloor  int               `json:"current_floor"`
	Location      string            `json:"location,omitempty"`
	WorldChanges  []string          `json:"world_changes,omitempty"`
	Foreshadowing []string          `json:"foreshadowing,omitempty"`
	Vars          map[string]string `json:"vars,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// maxWorldChanges bounds the rolling world-change log.
const maxWorldChanges = 50

// Record appends world changes and foreshadowing, keeping the newest entries.
func (w *WorldState) Record(changes, foreshadowing []string) {
	w.WorldChanges = appendBounded(w.WorldChanges, changes, maxWorldChanges)
	w.Foreshadowing = appendBounded(w.Foreshadowing, foreshadowing, maxWorldChanges)
}

func appendBounded(dst, src []string, limit int) []string {
	for _, s := range src {
		if s != "" {
			dst = append(dst, s)
		}
	}
	if len(dst) > limit {
		dst = dst[len(dst)-limit:]
	}
	return dst
}
