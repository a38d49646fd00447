package weapon

import (
	"fmt"
	"slices"
)

// SignatureMove is a weapon-specific narrative attack that evolves v1 -> v2 -> v3.
type SignatureMove struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	EvolutionTier   int     `json:"evolution_tier"`
	MechanicalValue float64 `json:"mechanical_value"`
	SecondaryEffect string  `json:"secondary_effect,omitempty"`

	V1Name        string `json:"v1_name,omitempty"`
	V1Description string `json:"v1_description,omitempty"`
	V2Name        string `json:"v2_name,omitempty"`
	V2Description string `json:"v2_description,omitempty"`
}

// tierValues maps evolution tier to mechanical value.
var tierValues = map[int]float64{1: 0.05, 2: 0.07, 3: 0.10}

// MechanicalValueForTier returns the fixed value of a tier, 0 for unknown tiers.
func MechanicalValueForTier(tier int) float64 {
	return tierValues[tier]
}

// NewSignatureMove creates a tier-1 move.
func NewSignatureMove(name, description string) *SignatureMove {
	return &SignatureMove{
		Name:            name,
		Description:     description,
		EvolutionTier:   1,
		MechanicalValue: tierValues[1],
	}
}

// Action types recorded for a chapter. Only soul_choice matters for evolution.
const ActionSoulChoice = "soul_choice"

// MinBondForV2 is the bond required for the first evolution; it is above the
// pre-awakening cap, so only awakened weapons can reach it.
const MinBondForV2 = 101.0

// Skill stages that allow the second evolution.
var v3SkillStages = []string{"aspect", "manifestation", "transcendence", "ultimate"}

// Reason strings returned by the evolution checks.
const (
	ReasonOK            = "ok"
	ReasonNoMove        = "no_signature_move"
	ReasonWrongTier     = "wrong_tier"
	ReasonGradeTooLow   = "grade_below_awakened"
	ReasonBondTooLow    = "bond_below_threshold"
	ReasonNoCrystal     = "missing_crystal"
	ReasonNoSoulChoice  = "no_soul_choice_this_chapter"
	ReasonSkillStageLow = "skill_stage_too_low"
	ReasonNoClimax      = "no_climax_encounter"
	ReasonWeaponDormant = "weapon_dormant"
)

// CanEvolveV2 checks the v1 -> v2 requirements against this chapter's actions.
func (w *Weapon) CanEvolveV2(chapterActions []string) (bool, string) {
	switch {
	case w.SignatureMove == nil:
		return false, ReasonNoMove
	case w.SignatureMove.EvolutionTier != 1:
		return false, ReasonWrongTier
	case w.Dormant:
		return false, ReasonWeaponDormant
	case !w.Grade.AtLeast(GradeAwakened):
		return false, ReasonGradeTooLow
	case w.BondScore < MinBondForV2:
		return false, ReasonBondTooLow
	case !w.HasCrystal(CrystalTrue, CrystalSovereign):
		return false, ReasonNoCrystal
	case !slices.Contains(chapterActions, ActionSoulChoice):
		return false, ReasonNoSoulChoice
	}
	return true, ReasonOK
}

// ApplyEvolutionV2 evolves the move to tier 2, preserving the v1 form.
func (w *Weapon) ApplyEvolutionV2(name, description string) error {
	if ok, reason := w.CanEvolveV2([]string{ActionSoulChoice}); !ok {
		return fmt.Errorf("cannot evolve signature move to v2: %s", reason)
	}
	if _, ok := w.consumeCrystal(CrystalTrue, CrystalSovereign); !ok {
		return fmt.Errorf("cannot evolve signature move to v2: %s", ReasonNoCrystal)
	}
	m := w.SignatureMove
	m.V1Name, m.V1Description = m.Name, m.Description
	m.Name, m.Description = name, description
	m.EvolutionTier = 2
	m.MechanicalValue = tierValues[2]
	return nil
}

// CanEvolveV3 checks the v2 -> v3 requirements.
func (w *Weapon) CanEvolveV3(skillStage string) (bool, string) {
	switch {
	case w.SignatureMove == nil:
		return false, ReasonNoMove
	case w.SignatureMove.EvolutionTier != 2:
		return false, ReasonWrongTier
	case w.Dormant:
		return false, ReasonWeaponDormant
	case !slices.Contains(v3SkillStages, skillStage):
		return false, ReasonSkillStageLow
	case !w.HasCrystal(CrystalSovereign):
		return false, ReasonNoCrystal
	case w.ClimaxEncounterCount < 1:
		return false, ReasonNoClimax
	}
	return true, ReasonOK
}

// ApplyEvolutionV3 evolves the move to tier 3, preserving the v2 form.
func (w *Weapon) ApplyEvolutionV3(skillStage, name, description string) error {
	if ok, reason := w.CanEvolveV3(skillStage); !ok {
		return fmt.Errorf("cannot evolve signature move to v3: %s", reason)
	}
	if _, ok := w.consumeCrystal(CrystalSovereign); !ok {
		return fmt.Errorf("cannot evolve signature move to v3: %s", ReasonNoCrystal)
	}
	m := w.SignatureMove
	m.V2Name, m.V2Description = m.Name, m.Description
	m.Name, m.Description = name, description
	m.EvolutionTier = 3
	m.MechanicalValue = tierValues[3]
	return nil
}

// EvolvedName derives a deterministic name for the next tier when no
// generated name is available.
func EvolvedName(current string, tier int) string {
	switch tier {
	case 2:
		return current + " · Thức Tỉnh"
	case 3:
		return current + " · Tối Thượng"
	}
	return current
}
