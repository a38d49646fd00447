package identity

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an entry in the identity event log.
type EventType string

const (
	EventDeltaApplied       EventType = "delta_applied"
	EventDrift              EventType = "drift"
	EventConfrontation      EventType = "confrontation"
	EventBreakthrough       EventType = "breakthrough"
	EventRogue              EventType = "rogue_event"
	EventRankUp             EventType = "rank_up"
	EventTransmutationReady EventType = "transmutation_ready"
	EventTransmuted         EventType = "transmuted"
	EventSignatureEvolved   EventType = "signature_evolved"
	EventSkillReward        EventType = "skill_reward"
	EventWeaponAwakened     EventType = "weapon_awakened"
	EventWeaponRecovered    EventType = "weapon_recovered"
	EventCombatBonus        EventType = "combat_bonus"
	EventCanonUnresolved    EventType = "canon_unresolved"
	EventOnboarded          EventType = "onboarded"
	EventReputation         EventType = "reputation_gained"
	EventSkillScar          EventType = "skill_scar"
	EventWeaponDormant      EventType = "weapon_dormant"
	EventSkillSealed        EventType = "skill_sealed"
	EventSkillUnsealed      EventType = "skill_unsealed"
)

// Event is an append-only identity log entry.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	PlayerID    uuid.UUID      `json:"player_id"`
	StoryID     uuid.UUID      `json:"story_id"`
	Chapter     int            `json:"chapter"`
	Type        EventType      `json:"event_type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewEvent builds a log entry stamped with the current time.
func NewEvent(playerID, storyID uuid.UUID, chapter int, typ EventType, description string, data map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		PlayerID:    playerID,
		StoryID:     storyID,
		Chapter:     chapter,
		Type:        typ,
		Description: description,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
}

// EventsForDelta lists the log entries a delta produces.
func EventsForDelta(playerID, storyID uuid.UUID, chapter int, d Delta) []Event {
	events := []Event{NewEvent(playerID, storyID, chapter, EventDeltaApplied, "identity delta applied", map[string]any{
		"identity_coherence": d.IdentityCoherence,
		"instability":        d.Instability,
		"breakthrough_meter": d.BreakthroughMeter,
		"fate_buffer":        d.FateBuffer,
		"pity_reset":         d.PityReset,
	})}
	if d.Drift != DriftNone {
		events = append(events, NewEvent(playerID, storyID, chapter, EventDrift, d.Drift+" drift from seed identity", nil))
	}
	if d.ConfrontationTriggered {
		events = append(events, NewEvent(playerID, storyID, chapter, EventConfrontation, "instability reached confrontation threshold", nil))
	}
	if d.BreakthroughTriggered {
		events = append(events, NewEvent(playerID, storyID, chapter, EventBreakthrough, "breakthrough turning point", nil))
	}
	if d.RogueEventTriggered {
		events = append(events, NewEvent(playerID, storyID, chapter, EventRogue, "rogue event", nil))
	}
	return events
}
