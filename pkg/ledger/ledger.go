// Package ledger keeps the per-story record of invented canon: the entities a
// story has introduced and the facts it has established. The ledger only
// grows; entities change status and facts get superseded, nothing is removed.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EntityType classifies an introduced entity.
type EntityType string

const (
	EntityNPC      EntityType = "npc"
	EntityLocation EntityType = "location"
	EntityObject   EntityType = "object"
	EntityGroup    EntityType = "group"
	EntityEvent    EntityType = "event"
)

// entityTypeOrder is the display order in the prompt block.
var entityTypeOrder = []EntityType{EntityNPC, EntityLocation, EntityObject, EntityGroup, EntityEvent}

func (t EntityType) Valid() bool {
	return slices.Contains(entityTypeOrder, t)
}

// Status is the current state of an entity.
type Status string

const (
	StatusActive    Status = "active"
	StatusDeparted  Status = "departed"
	StatusDestroyed Status = "destroyed"
	StatusUnknown   Status = "unknown"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDeparted, StatusDestroyed, StatusUnknown:
		return true
	}
	return false
}

// Entity is something the story introduced and must keep consistent.
type Entity struct {
	ID            string            `json:"id"`
	Type          EntityType        `json:"type"`
	Name          string            `json:"name"`
	FirstChapter  int               `json:"first_appeared_chapter"`
	Description   string            `json:"description"`
	Status        Status            `json:"status"`
	Relationships map[string]string `json:"relationships,omitempty"`
}

// Fact is an established statement about the world.
type Fact struct {
	ID         string   `json:"id"`
	Statement  string   `json:"statement"`
	Chapter    int      `json:"chapter_established"`
	Source     string   `json:"source,omitempty"`
	EntityIDs  []string `json:"involved_entity_ids,omitempty"`
	Superseded bool     `json:"superseded"`
}

// Ledger is the accumulated canon of one story.
type Ledger struct {
	StoryID   uuid.UUID `json:"story_id"`
	Entities  []Entity  `json:"entities"`
	Facts     []Fact    `json:"facts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty ledger for a story.
func New(storyID uuid.UUID) *Ledger {
	return &Ledger{StoryID: storyID}
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips Vietnamese diacritics and lowercases s.
func Fold(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "d").Replace(folded)
	return strings.ToLower(folded)
}

// Slugify derives the stable entity id from a display name.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range Fold(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Entity looks up an entity by slug.
func (l *Ledger) Entity(id string) (*Entity, bool) {
	for i := range l.Entities {
		if l.Entities[i].ID == id {
			return &l.Entities[i], true
		}
	}
	return nil, false
}

// EntityCount returns the number of stored entities.
func (l *Ledger) EntityCount() int {
	return len(l.Entities)
}

// AddEntity stores e unless an entity with the same slug exists.
// Missing ids are derived from the name. It reports whether e was added.
func (l *Ledger) AddEntity(e Entity) bool {
	if e.ID == "" {
		e.ID = Slugify(e.Name)
	}
	if e.ID == "" || strings.TrimSpace(e.Name) == "" {
		return false
	}
	if _, exists := l.Entity(e.ID); exists {
		return false
	}
	if !e.Type.Valid() {
		e.Type = EntityObject
	}
	if !e.Status.Valid() {
		e.Status = StatusActive
	}
	e.Description = oneLine(e.Description)
	l.Entities = append(l.Entities, e)
	return true
}

// SetStatus changes an entity's status.
func (l *Ledger) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid entity status %q", status)
	}
	e, ok := l.Entity(id)
	if !ok {
		return fmt.Errorf("entity %q not found", id)
	}
	e.Status = status
	return nil
}

// AddFact records a statement unless an equivalent active fact exists.
func (l *Ledger) AddFact(statement string, chapter int, source string, entityIDs []string) (Fact, bool) {
	statement = oneLine(statement)
	if statement == "" {
		return Fact{}, false
	}
	key := Fold(statement)
	for _, f := range l.Facts {
		if !f.Superseded && Fold(f.Statement) == key {
			return f, false
		}
	}
	f := Fact{
		ID:        fmt.Sprintf("f%d", len(l.Facts)+1),
		Statement: statement,
		Chapter:   chapter,
		Source:    source,
		EntityIDs: entityIDs,
	}
	l.Facts = append(l.Facts, f)
	return f, true
}

// Supersede marks a fact as replaced. It stays stored but leaves the prompt.
func (l *Ledger) Supersede(id string) error {
	for i := range l.Facts {
		if l.Facts[i].ID == id {
			l.Facts[i].Superseded = true
			return nil
		}
	}
	return fmt.Errorf("fact %q not found", id)
}

// ActiveFacts returns facts that have not been superseded.
func (l *Ledger) ActiveFacts() []Fact {
	var out []Fact
	for _, f := range l.Facts {
		if !f.Superseded {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{StoryID: l.StoryID, UpdatedAt: l.UpdatedAt}
	out.Entities = make([]Entity, len(l.Entities))
	for i, e := range l.Entities {
		if e.Relationships != nil {
			rel := make(map[string]string, len(e.Relationships))
			for k, v := range e.Relationships {
				rel[k] = v
			}
			e.Relationships = rel
		}
		out.Entities[i] = e
	}
	out.Facts = make([]Fact, len(l.Facts))
	for i, f := range l.Facts {
		f.EntityIDs = slices.Clone(f.EntityIDs)
		out.Facts[i] = f
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
