// Package pipeline runs one story turn: the agent chain Input-Parser,
// Planner, Simulator, Writer and Critic with a bounded rewrite loop, then the
// deterministic post-processing that turns the approved draft into a new
// player state, ledger and chapter.
package pipeline

import (
	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// Beat purposes.
const (
	PurposeSetup      = "setup"
	PurposeRising     = "rising"
	PurposeClimax     = "climax"
	PurposeFalling    = "falling"
	PurposeResolution = "resolution"
)

// Names of the deterministic beat injectors, recorded on injected beats.
const (
	InjectedSkillReward   = "skill_reward"
	InjectedRecovery      = "dormant_recovery"
	InjectedAwakening     = "awakening"
	InjectedTransmutation = "transmutation"
	InjectedBreakthrough  = "breakthrough"
	InjectedFallback      = "fallback"
)

// Beat is one planned narrative unit.
type Beat struct {
	Description    string            `json:"description"`
	Tension        int               `json:"tension"`
	Purpose        string            `json:"purpose"`
	EstimatedWords int               `json:"estimated_words"`
	SceneType      story.SceneType   `json:"scene_type"`
	Mood           string            `json:"mood"`
	SkillReward    *skill.RewardPlan `json:"skill_reward,omitempty"`
	IsTurningPoint bool              `json:"is_turning_point,omitempty"`
	// Injected names the injector that produced or modified the beat.
	Injected string `json:"injected,omitempty"`
}

// PlannerOutput is the chapter plan.
type PlannerOutput struct {
	Beats          []Beat   `json:"beats"`
	ChapterTension int      `json:"chapter_tension"`
	Pacing         string   `json:"pacing"`
	EmotionalArc   string   `json:"emotional_arc"`
	NewCharacters  []string `json:"new_characters"`
	WorldChanges   []string `json:"world_changes"`
	Fallback       bool     `json:"-"`
}

type Consequence struct {
	Description string `json:"description"`
	Severity    int    `json:"severity"`
	Affects     string `json:"affects"`
}

type RelationshipChange struct {
	Character string `json:"character"`
	Change    string `json:"change"`
}

type IdentityAlignment struct {
	Drift          string  `json:"drift"`
	AlignmentShift float64 `json:"alignment_shift"`
	Reason         string  `json:"reason"`
	// EmergingValue is a value the action shows the protagonist taking up.
	EmergingValue string `json:"emerging_value,omitempty"`
}

// NewEntity is an entity the simulator introduces into canon.
type NewEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// NewFact is a statement the simulator establishes as canon.
type NewFact struct {
	Statement   string   `json:"statement"`
	EntityNames []string `json:"entity_names"`
}

// SimulatorOutput projects the consequences of the chosen action.
type SimulatorOutput struct {
	Consequences        []Consequence        `json:"consequences"`
	RelationshipChanges []RelationshipChange `json:"relationship_changes"`
	WorldImpacts        []string             `json:"world_impacts"`
	IdentityAlignment   IdentityAlignment    `json:"identity_alignment"`
	Foreshadowing       []string             `json:"foreshadowing"`
	NewEntities         []NewEntity          `json:"new_entities"`
	NewFacts            []NewFact            `json:"new_facts"`
	Fallback            bool                 `json:"-"`
}

// WriterOutput is one draft.
type WriterOutput struct {
	Title   string         `json:"title"`
	Prose   string         `json:"prose"`
	Summary string         `json:"summary"`
	Choices []story.Choice `json:"choices"`
	Attempt int            `json:"-"`
}

// CriticOutput is the verdict on the latest draft.
type CriticOutput struct {
	Score               float64  `json:"score"`
	Approved            bool     `json:"approved"`
	Feedback            string   `json:"feedback"`
	Issues              []string `json:"issues"`
	RewriteInstructions string   `json:"rewrite_instructions"`

	// CanonCriticals lists the rule ids that short-circuited the critic.
	CanonCriticals []string `json:"-"`
	CanonWarnings  []string `json:"-"`
	ForceApproved  bool     `json:"-"`
	ParseFallback  bool     `json:"-"`
}

// Status is the terminal state of the writer/critic loop.
type Status string

const (
	StatusPending       Status = ""
	StatusApproved      Status = "approved"
	StatusForceApproved Status = "force_approved"
	// StatusExhausted means the cap was reached without approval; the last
	// draft is emitted anyway.
	StatusExhausted Status = "exhausted"
)

// NarrativeState is the envelope passed between agents. Steps never modify
// the state they receive; their updates are merged into a copy.
type NarrativeState struct {
	StoryID       uuid.UUID
	ChapterNumber int
	SceneNumber   int

	PreferenceTags  []string
	Backstory       string
	Tone            string
	Protagonist     string
	PreviousSummary string
	ChosenChoice    *story.Choice
	FreeInput       string

	Player *player.State
	Ledger *ledger.Ledger

	// Deterministic inputs computed before the planner.
	Event            crng.Event
	FateInstruction  string
	RewardPlan       skill.RewardPlan
	PendingEvolution []string

	Planner   *PlannerOutput
	Simulator *SimulatorOutput
	Writer    *WriterOutput
	Critic    *CriticOutput

	RewriteCount int
	Status       Status

	FinalProse   string
	FinalChoices []story.Choice
	Delta        identity.Delta
}

// Refused reports whether the player's free input was rejected.
func (s NarrativeState) Refused() bool {
	return s.ChosenChoice != nil && s.ChosenChoice.Refused
}

// riskLevel is the chosen action's risk, 1 on an opening chapter.
func (s NarrativeState) riskLevel() int {
	if s.ChosenChoice == nil {
		return 1
	}
	return story.ClampRisk(s.ChosenChoice.RiskLevel)
}

func (s NarrativeState) beats() []Beat {
	if s.Planner == nil {
		return nil
	}
	return s.Planner.Beats
}
