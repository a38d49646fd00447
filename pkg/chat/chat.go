package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// MaxFreeTextLength bounds free-form player input before it reaches the guard.
const MaxFreeTextLength = 2000

// ContinueRequest asks the engine for the next chapter of a story.
// Exactly one of ChoiceID and FreeText is set.
type ContinueRequest struct {
	StoryID  uuid.UUID `json:"story_id"`
	PlayerID uuid.UUID `json:"player_id"`
	ChoiceID string    `json:"choice_id,omitempty"`
	FreeText string    `json:"free_text,omitempty"`
}

// ContinueResponse is what a client sees after a continuation completes.
type ContinueResponse struct {
	StoryID       uuid.UUID      `json:"story_id"`
	ChapterNumber int            `json:"chapter_number"`
	Title         string         `json:"title,omitempty"`
	Prose         string         `json:"prose"`
	Choices       []story.Choice `json:"choices"`
	RankTitle     string         `json:"rank_title,omitempty"`
	CriticScore   float64        `json:"critic_score"`
	RewriteCount  int            `json:"rewrite_count"`
}

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage is a single message in an LLM conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

func (cr *ContinueRequest) Validate() error {
	if cr.StoryID == uuid.Nil {
		return fmt.Errorf("story_id is required")
	}
	hasChoice := strings.TrimSpace(cr.ChoiceID) != ""
	hasText := strings.TrimSpace(cr.FreeText) != ""
	switch {
	case hasChoice && hasText:
		return fmt.Errorf("choice_id and free_text are mutually exclusive")
	case !hasChoice && !hasText:
		return fmt.Errorf("either choice_id or free_text is required")
	}
	if utf8.RuneCountInString(cr.FreeText) > MaxFreeTextLength {
		return fmt.Errorf("free_text exceeds maximum length of %d characters", MaxFreeTextLength)
	}
	return nil
}
