package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/weapon"
)

func TestApplyDomainBonus(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		enemy    []EnemySkill
		stage    string
		want     float64
	}{
		{"same category within cap", CategoryPerception, []EnemySkill{{Category: CategoryPerception, Tier: 3}}, "seed", 0.03},
		{"same category above cap", CategoryPerception, []EnemySkill{{Category: CategoryPerception, Tier: 4}}, "aspect", 0},
		{"ultimate ignores high tiers", CategoryPerception, []EnemySkill{{Category: CategoryPerception, Tier: 40}}, "ultimate", 0.03},
		{"different category", CategoryContract, []EnemySkill{{Category: CategoryObfuscation, Tier: 1}}, "bloom", 0},
		{"no enemy skills", CategoryContract, nil, "bloom", 0},
		{"unknown category", Category("time"), []EnemySkill{{Category: "time", Tier: 1}}, "seed", 0},
		{"any match counts", CategoryManipulation, []EnemySkill{
			{Category: CategoryPerception, Tier: 1},
			{Category: CategoryManipulation, Tier: 2},
		}, "bloom", 0.03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDomainBonus(tt.category, tt.enemy, tt.stage)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, []float64{0, 0.03}, got)
		})
	}
}

func TestTierCap(t *testing.T) {
	assert.Equal(t, 3, TierCap("seed"))
	assert.Equal(t, 3, TierCap("bloom"))
	assert.Equal(t, 3, TierCap("aspect"))
	assert.Equal(t, 99, TierCap("ultimate"))
}

func dualWieldVanguard() *player.State {
	p := player.New("u", "Khải", player.ArchetypeVanguard, player.SeedIdentity{}, nil)
	p.Skill = &player.UniqueSkill{Name: "Luật Thép", Category: string(CategoryManifestation), Principle: "order", Growth: player.SkillGrowthState{Stage: "seed"}}
	p.Weapons = []weapon.Weapon{
		{ID: "a", Grade: weapon.GradeResonant, Principles: []string{"order"}, Slot: weapon.SlotPrimary},
		{ID: "b", Grade: weapon.GradeResonant, Principles: []string{"entropy"}, Slot: weapon.SlotSecondary},
	}
	return p
}

func TestBuildFit_DualWieldVanguard(t *testing.T) {
	p := dualWieldVanguard()
	assert.InDelta(t, 0.090, BuildFit(p, ""), 1e-9)
}

func TestBuildFit_OtherArchetypes(t *testing.T) {
	p := dualWieldVanguard()
	p.Archetype = player.ArchetypeSeeker
	// 0.05*1.0 + 0.05*0.25 + 0.03
	assert.InDelta(t, 0.0925, BuildFit(p, ""), 1e-9)
}

func TestBuildFit_DormantAndCounter(t *testing.T) {
	p := dualWieldVanguard()
	p.Weapons[0].Dormant = true
	// only the secondary counts and it carries no "order" principle
	assert.InDelta(t, 0.025, BuildFit(p, ""), 1e-9)

	p.Weapons[0].Dormant = false
	assert.InDelta(t, 0.110, BuildFit(p, "entropy"), 1e-9)
}

func TestBuildFit_Capped(t *testing.T) {
	p := dualWieldVanguard()
	p.Archetype = player.ArchetypeCatalyst
	p.Weapons[0].Grade = weapon.GradeArchonFragment
	p.Weapons[1].Grade = weapon.GradeArchonFragment
	assert.Equal(t, MaxCombatBonus, BuildFit(p, "entropy"))
}

func TestResonanceBurst(t *testing.T) {
	w := &weapon.Weapon{Slot: weapon.SlotPrimary, SignatureMove: weapon.NewSignatureMove("x", "y")}
	assert.Zero(t, ResonanceBurst(w, true))

	w.SignatureMove.EvolutionTier = 3
	assert.Equal(t, ResonanceBurstBonus, ResonanceBurst(w, true))
	assert.Zero(t, ResonanceBurst(w, false))
	assert.Zero(t, ResonanceBurst(nil, true))
}

func TestTotalBonus_AdditiveAndCapped(t *testing.T) {
	p := dualWieldVanguard()
	enc := Encounter{EnemySkills: []EnemySkill{{Category: CategoryManifestation, Tier: 2}}}

	b := TotalBonus(p, enc)
	assert.InDelta(t, 0.090, b.BuildFit, 1e-9)
	assert.Equal(t, 0.03, b.Domain)
	assert.InDelta(t, 0.120, b.Total, 1e-9)

	p.Weapons[0].SignatureMove = weapon.NewSignatureMove("x", "y")
	p.Weapons[0].SignatureMove.EvolutionTier = 3
	p.Weapons[0].Grade = weapon.GradeArchonFragment
	enc.UsedUniqueSkill = true
	b = TotalBonus(p, enc)
	assert.Equal(t, ResonanceBurstBonus, b.ResonanceBurst)
	assert.Equal(t, MaxCombatBonus, b.Total)
}
