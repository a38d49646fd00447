package player

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/weapon"
)

// Archetype is one of the six origin personality archetypes assigned at onboarding.
type Archetype string

const (
	ArchetypeVanguard  Archetype = "vanguard"
	ArchetypeCatalyst  Archetype = "catalyst"
	ArchetypeSovereign Archetype = "sovereign"
	ArchetypeSeeker    Archetype = "seeker"
	ArchetypeTactician Archetype = "tactician"
	ArchetypeWanderer  Archetype = "wanderer"
)

// Archetypes lists the origin archetypes in their canonical order.
// Onboarding ties are broken by this order.
var Archetypes = []Archetype{
	ArchetypeVanguard,
	ArchetypeCatalyst,
	ArchetypeSovereign,
	ArchetypeSeeker,
	ArchetypeTactician,
	ArchetypeWanderer,
}

func (a Archetype) Valid() bool {
	for _, known := range Archetypes {
		if a == known {
			return true
		}
	}
	return false
}

// DNATag is a thematic affinity tag that biases CRNG rolls.
type DNATag string

const (
	DNAShadow    DNATag = "shadow"
	DNAOath      DNATag = "oath"
	DNABloodline DNATag = "bloodline"
	DNATech      DNATag = "tech"
	DNAChaos     DNATag = "chaos"
	DNAMind      DNATag = "mind"
	DNACharm     DNATag = "charm"
	DNARelic     DNATag = "relic"
)

// AllDNATags is the fixed tag universe in canonical order.
var AllDNATags = []DNATag{DNAShadow, DNAOath, DNABloodline, DNATech, DNAChaos, DNAMind, DNACharm, DNARelic}

// MaxDNATags is the number of affinity tags a player may carry.
const MaxDNATags = 3

// SeedIdentity is frozen at onboarding and never mutated afterwards.
type SeedIdentity struct {
	CoreValues        []string `json:"core_values"`
	PersonalityTraits []string `json:"personality_traits"`
	Motivation        string   `json:"motivation"`
	Fear              string   `json:"fear"`
}

// CurrentIdentity drifts chapter by chapter.
type CurrentIdentity struct {
	ActiveValues   []string `json:"active_values"`
	ActiveTraits   []string `json:"active_traits"`
	Motivation     string   `json:"motivation"`
	ReputationTags []string `json:"reputation_tags,omitempty"`
}

// LatentIdentity carries hidden drift bias the player never sees directly.
type LatentIdentity struct {
	DriftBias      map[string]float64 `json:"drift_bias,omitempty"`
	SuppressedFear string             `json:"suppressed_fear,omitempty"`
}

// SealState records a narrative seal placed on the player's unique skill.
type SealState struct {
	Sealed          bool   `json:"sealed"`
	Reason          string `json:"reason,omitempty"`
	SealedAtChapter int    `json:"sealed_at_chapter,omitempty"`
}

// ArchetypeEvolution tracks Origin -> Transmuted progress.
type ArchetypeEvolution struct {
	Stage                string `json:"stage"` // origin | transmuted
	TransmutedForm       string `json:"transmuted_form,omitempty"`
	TransmutedAtChapter  int    `json:"transmuted_at_chapter,omitempty"`
	PendingForm          string `json:"pending_form,omitempty"`
	TransmutationPending bool   `json:"transmutation_pending,omitempty"`
}

const (
	EvolutionStageOrigin     = "origin"
	EvolutionStageTransmuted = "transmuted"
)

// Progression is the narrative rank record; numbers are never shown to the player.
type Progression struct {
	Rank              int    `json:"rank"`
	RankTitle         string `json:"rank_title"`
	Floor             int    `json:"floor"`
	BreakthroughCount int    `json:"breakthrough_count"`
	LastRankUpChapter int    `json:"last_rank_up_chapter"`
}

// UniqueSkill is the narrative skill granted at onboarding.
type UniqueSkill struct {
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	Mechanic            string           `json:"mechanic"`
	ActivationCondition string           `json:"activation_condition"`
	Limitation          string           `json:"limitation"`
	Category            string           `json:"category"`
	Principle           string           `json:"principle,omitempty"`
	Growth              SkillGrowthState `json:"growth"`
}

// SkillGrowthState is the persisted growth record of the unique skill.
// The transition rules live in pkg/skill.
type SkillGrowthState struct {
	Stage          string        `json:"stage"`
	GrowthType     string        `json:"growth_type"`
	BloomPath      string        `json:"bloom_path,omitempty"`
	ScarLog        []ScarEntry   `json:"scar_log,omitempty"`
	AspectOptions  []string      `json:"aspect_options,omitempty"`
	ChosenAspect   string        `json:"chosen_aspect,omitempty"`
	UltimateForm   string        `json:"ultimate_form,omitempty"`
	SubSkills      []SubSkill    `json:"sub_skills,omitempty"`
	MutationCount  int           `json:"mutation_count"`
	MutationLocked bool          `json:"mutation_locked"`
	CombatBonus    float64       `json:"combat_bonus"`
	UsageCount     int           `json:"usage_count"`
	StageHistory   []StageChange `json:"stage_history,omitempty"`
}

type ScarEntry struct {
	Chapter int    `json:"chapter"`
	Trauma  string `json:"trauma"`
}

type SubSkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Chapter     int    `json:"chapter"`
}

type StageChange struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Chapter int    `json:"chapter"`
}

// State is the central mutable player record.
type State struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Seed      SeedIdentity    `json:"seed_identity"`
	Current   CurrentIdentity `json:"current_identity"`
	Latent    LatentIdentity  `json:"latent_identity"`
	Archetype Archetype       `json:"archetype"`
	DNA       []DNATag        `json:"dna_affinity,omitempty"`
	Skill     *UniqueSkill    `json:"unique_skill,omitempty"`

	IdentityCoherence    float64 `json:"identity_coherence"`
	Instability          float64 `json:"instability"`
	EchoTrace            float64 `json:"echo_trace"`
	DecisionQualityScore float64 `json:"decision_quality_score"`
	BreakthroughMeter    float64 `json:"breakthrough_meter"`
	Notoriety            float64 `json:"notoriety"`
	Alignment            float64 `json:"alignment"`
	FateBuffer           float64 `json:"fate_buffer"`

	PityCounter   int      `json:"pity_counter"`
	TotalChapters int      `json:"total_chapters"`
	TurnsToday    int      `json:"turns_today"`
	LastTurnDate  string   `json:"last_turn_date,omitempty"`
	Flags         []string `json:"flags,omitempty"`

	ArchetypeEvolution ArchetypeEvolution `json:"archetype_evolution"`
	Progression        Progression        `json:"progression"`
	Weapons            []weapon.Weapon    `json:"weapons,omitempty"`
	Seal               SealState          `json:"seal_state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds a freshly onboarded player with default scores.
func New(userID, name string, archetype Archetype, seed SeedIdentity, dna []DNATag) *State {
	now := time.Now().UTC()
	if len(dna) > MaxDNATags {
		dna = dna[:MaxDNATags]
	}
	return &State{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Seed:      seed,
		Archetype: archetype,
		DNA:       dna,
		Current: CurrentIdentity{
			ActiveValues: append([]string(nil), seed.CoreValues...),
			ActiveTraits: append([]string(nil), seed.PersonalityTraits...),
			Motivation:   seed.Motivation,
		},
		IdentityCoherence:    100,
		DecisionQualityScore: 50,
		FateBuffer:           100,
		ArchetypeEvolution:   ArchetypeEvolution{Stage: EvolutionStageOrigin},
		Progression:          Progression{Rank: 1, Floor: 1},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// HasFlag reports whether a narrative flag is set.
func (s *State) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag sets a flag once.
func (s *State) AddFlag(flag string) {
	if flag == "" || s.HasFlag(flag) {
		return
	}
	s.Flags = append(s.Flags, flag)
}

// Stage returns the unique skill's growth stage, or "" without a skill.
func (u *UniqueSkill) Stage() string {
	if u == nil {
		return ""
	}
	return u.Growth.Stage
}

// PrimaryWeapon returns the primary-slot weapon, or nil.
func (s *State) PrimaryWeapon() *weapon.Weapon {
	for i := range s.Weapons {
		if s.Weapons[i].Slot == weapon.SlotPrimary {
			return &s.Weapons[i]
		}
	}
	return nil
}

// SecondaryWeapon returns the off-hand weapon, or nil.
func (s *State) SecondaryWeapon() *weapon.Weapon {
	for i := range s.Weapons {
		if s.Weapons[i].Slot == weapon.SlotSecondary {
			return &s.Weapons[i]
		}
	}
	return nil
}

// DormantWeapon returns the first dormant weapon, or nil.
func (s *State) DormantWeapon() *weapon.Weapon {
	for i := range s.Weapons {
		if s.Weapons[i].Dormant {
			return &s.Weapons[i]
		}
	}
	return nil
}

// AwakeningWeapon returns the first weapon with a pending awakening, or nil.
func (s *State) AwakeningWeapon() *weapon.Weapon {
	for i := range s.Weapons {
		if s.Weapons[i].AwakeningPending {
			return &s.Weapons[i]
		}
	}
	return nil
}

// DeepCopy returns an independent copy of the state.
func (s *State) DeepCopy() (*State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player state: %w", err)
	}
	return &out, nil
}

// Clone is DeepCopy for callers that hold a structurally valid state.
// It panics only if the state cannot round-trip through JSON, which cannot
// happen for values built from this package's types.
func (s *State) Clone() *State {
	out, err := s.DeepCopy()
	if err != nil {
		panic(err)
	}
	return out
}

// ResetDailyTurns rolls turns_today over when the UTC day changed.
func (s *State) ResetDailyTurns(now time.Time) {
	today := now.UTC().Format("2006-01-02")
	if s.LastTurnDate != today {
		s.TurnsToday = 0
		s.LastTurnDate = today
	}
}
