package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/chat"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeContinue asks for the next chapter of a story.
	RequestTypeContinue RequestType = "continue"
)

// Request is one unit of work on the continuation queue.
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	StoryID   uuid.UUID   `json:"story_id"`
	PlayerID  uuid.UUID   `json:"player_id"`

	ChoiceID string `json:"choice_id,omitempty"`
	FreeText string `json:"free_text,omitempty"`

	// Attempts counts re-queues caused by a held story lock.
	Attempts   int       `json:"attempts,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewContinueRequest wraps a validated continuation for the queue.
func NewContinueRequest(cr chat.ContinueRequest) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       RequestTypeContinue,
		StoryID:    cr.StoryID,
		PlayerID:   cr.PlayerID,
		ChoiceID:   cr.ChoiceID,
		FreeText:   cr.FreeText,
		EnqueuedAt: time.Now().UTC(),
	}
}

// ContinueRequest converts back to the engine envelope.
func (r *Request) ContinueRequest() chat.ContinueRequest {
	return chat.ContinueRequest{
		StoryID:  r.StoryID,
		PlayerID: r.PlayerID,
		ChoiceID: r.ChoiceID,
		FreeText: r.FreeText,
	}
}

// MarshalJSON serializes the request to JSON for Redis storage
func (r *Request) MarshalJSON() ([]byte, error) {
	type Alias Request
	return json.Marshal(&struct {
		StoryID  string `json:"story_id"`
		PlayerID string `json:"player_id"`
		*Alias
	}{
		StoryID:  r.StoryID.String(),
		PlayerID: r.PlayerID.String(),
		Alias:    (*Alias)(r),
	})
}

// UnmarshalJSON deserializes the request from JSON in Redis
func (r *Request) UnmarshalJSON(data []byte) error {
	type Alias Request
	aux := &struct {
		StoryID  string `json:"story_id"`
		PlayerID string `json:"player_id"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	storyID, err := uuid.Parse(aux.StoryID)
	if err != nil {
		return err
	}
	r.StoryID = storyID

	if aux.PlayerID != "" {
		playerID, err := uuid.Parse(aux.PlayerID)
		if err != nil {
			return err
		}
		r.PlayerID = playerID
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
