package combat

import (
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/weapon"
)

const (
	// MaxCombatBonus caps the sum of every combat bonus source.
	MaxCombatBonus = 0.20

	PrincipleSynergyBonus = 0.03
	PrincipleCounterBonus = 0.02
	ResonanceBurstBonus   = 0.03
)

// Principles are the six weapon/skill principles.
var Principles = []string{"order", "entropy", "matter", "flux", "energy", "void"}

// opposing principles counter each other.
var opposing = map[string]string{
	"order":   "entropy",
	"entropy": "order",
	"matter":  "void",
	"void":    "matter",
	"flux":    "energy",
	"energy":  "flux",
}

var gradeBonus = map[weapon.Grade]float64{
	weapon.GradeMundane:        0,
	weapon.GradeResonant:       0.05,
	weapon.GradeSoulLinked:     0.08,
	weapon.GradeAwakened:       0.12,
	weapon.GradeArchonFragment: 0.15,
}

// GradeBonus returns the base bonus of a weapon grade.
func GradeBonus(g weapon.Grade) float64 {
	return gradeBonus[g]
}

// slot multipliers: primary, secondary
func slotMultipliers(a player.Archetype) (float64, float64) {
	if a == player.ArchetypeVanguard {
		return 0.70, 0.50
	}
	return 1.0, 0.25
}

// BuildFit computes how well the equipped weapons and unique skill fit together.
// enemyPrinciple may be empty.
func BuildFit(p *player.State, enemyPrinciple string) float64 {
	primaryMul, secondaryMul := slotMultipliers(p.Archetype)

	var bonus float64
	var equipped []*weapon.Weapon
	if w := p.PrimaryWeapon(); w != nil && w.Usable() {
		bonus += GradeBonus(w.Grade) * primaryMul
		equipped = append(equipped, w)
	}
	if w := p.SecondaryWeapon(); w != nil && w.Usable() {
		bonus += GradeBonus(w.Grade) * secondaryMul
		equipped = append(equipped, w)
	}

	if p.Skill != nil && p.Skill.Principle != "" {
		for _, w := range equipped {
			if w.HasPrinciple(p.Skill.Principle) {
				bonus += PrincipleSynergyBonus
				break
			}
		}
	}

	if enemyPrinciple != "" {
		for _, w := range equipped {
			if opposing[w.PrimaryPrinciple()] == enemyPrinciple {
				bonus += PrincipleCounterBonus
				break
			}
		}
	}
	return min(bonus, MaxCombatBonus)
}

// ResonanceBurst is granted when a v3 signature move and the unique skill
// were both used in the same chapter.
func ResonanceBurst(w *weapon.Weapon, usedUniqueSkill bool) float64 {
	if w == nil || w.SignatureMove == nil || !usedUniqueSkill || !w.Usable() {
		return 0
	}
	if w.SignatureMove.EvolutionTier == 3 {
		return ResonanceBurstBonus
	}
	return 0
}

// Encounter describes the opposition faced in a combat climax.
type Encounter struct {
	EnemyPrinciple  string
	EnemySkills     []EnemySkill
	UsedUniqueSkill bool
}

// Breakdown itemises a total combat bonus.
type Breakdown struct {
	BuildFit       float64 `json:"build_fit"`
	Domain         float64 `json:"domain"`
	ResonanceBurst float64 `json:"resonance_burst"`
	Total          float64 `json:"total"`
}

// TotalBonus adds build fit, domain and resonance burst and caps the sum.
func TotalBonus(p *player.State, enc Encounter) Breakdown {
	b := Breakdown{BuildFit: BuildFit(p, enc.EnemyPrinciple)}
	if p.Skill != nil {
		b.Domain = ApplyDomainBonus(Category(p.Skill.Category), enc.EnemySkills, p.Skill.Stage())
	}
	b.ResonanceBurst = ResonanceBurst(p.PrimaryWeapon(), enc.UsedUniqueSkill)
	b.Total = min(b.BuildFit+b.Domain+b.ResonanceBurst, MaxCombatBonus)
	return b
}
