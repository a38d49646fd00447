package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued     EventType = "request.queued"
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeRequestRequeued   EventType = "request.requeued"
	EventTypeRequestCompleted  EventType = "request.completed"
	EventTypeRequestFailed     EventType = "request.failed"
	EventTypeChapterReady      EventType = "story.chapter_ready"
)

// Event is the payload published on a story's channel.
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	StoryID   string         `json:"story_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Terminal reports whether no further events follow for the request.
func (e Event) Terminal() bool {
	return e.Type == EventTypeRequestCompleted || e.Type == EventTypeRequestFailed
}

// Broadcaster publishes turn lifecycle events to Redis Pub/Sub.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the pub/sub channel of one story.
func Channel(storyID uuid.UUID) string {
	return fmt.Sprintf("story-events:%s", storyID.String())
}

func (b *Broadcaster) PublishRequestQueued(ctx context.Context, storyID uuid.UUID, requestID string) error {
	return b.publish(ctx, storyID, Event{
		Type:      EventTypeRequestQueued,
		RequestID: requestID,
		Data:      map[string]any{"status": "queued"},
	})
}

func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, storyID uuid.UUID, requestID, input string) error {
	return b.publish(ctx, storyID, Event{
		Type:      EventTypeRequestProcessing,
		RequestID: requestID,
		Data:      map[string]any{"status": "processing", "input": input},
	})
}

func (b *Broadcaster) PublishRequestRequeued(ctx context.Context, storyID uuid.UUID, requestID string, attempts int) error {
	return b.publish(ctx, storyID, Event{
		Type:      EventTypeRequestRequeued,
		RequestID: requestID,
		Data:      map[string]any{"status": "requeued", "attempts": attempts},
	})
}

// PublishChapterReady announces a committed chapter before the request is
// marked complete.
func (b *Broadcaster) PublishChapterReady(ctx context.Context, storyID uuid.UUID, requestID string, chapter int, title string) error {
	return b.publish(ctx, storyID, Event{
		Type:      EventTypeChapterReady,
		RequestID: requestID,
		Data:      map[string]any{"chapter_number": chapter, "title": title},
	})
}

func (b *Broadcaster) PublishRequestCompleted(ctx context.Context, storyID uuid.UUID, requestID string, result map[string]any) error {
	return b.publish(ctx, storyID, Event{
		Type:      EventTypeRequestCompleted,
		RequestID: requestID,
		Data:      map[string]any{"status": "completed", "result": result},
	})
}

func (b *Broadcaster) PublishRequestFailed(ctx context.Context, storyID uuid.UUID, requestID, errorMsg string) error {
	return b.publish(ctx, storyID, Event{
		Type:      EventTypeRequestFailed,
		RequestID: requestID,
		Data:      map[string]any{"status": "failed", "error": errorMsg},
	})
}

func (b *Broadcaster) publish(ctx context.Context, storyID uuid.UUID, event Event) error {
	event.StoryID = storyID.String()
	channel := Channel(storyID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}

// Subscription delivers decoded events of one story.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

// Subscribe listens on a story's channel until Close or ctx ends. The
// subscription is confirmed before Subscribe returns, so no event published
// afterwards is missed.
func (b *Broadcaster) Subscribe(ctx context.Context, storyID uuid.UUID) (*Subscription, error) {
	ps := b.redisClient.Subscribe(ctx, Channel(storyID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s := &Subscription{pubsub: ps, events: make(chan Event)}
	go func() {
		defer close(s.events)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("Dropping malformed event", "error", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s, nil
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
