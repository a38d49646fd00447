package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/archetype"
	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
	"github.com/jwebster45206/isekai-engine/pkg/weapon"
)

const (
	calmPlan = `{"beats":[` +
		`{"description":"Sương tan dần","tension":3,"purpose":"setup","scene_type":"exploration","mood":"quiet"},` +
		`{"description":"Nghỉ chân bên suối","tension":4,"purpose":"resolution","scene_type":"rest","mood":"calm"}],"chapter_tension":3}`
	combatPlan = `{"beats":[` +
		`{"description":"Kẻ địch chặn đường","tension":6,"purpose":"rising","scene_type":"combat","mood":"tense"},` +
		`{"description":"Trận quyết chiến","tension":10,"purpose":"climax","scene_type":"combat","mood":"fierce"},` +
		`{"description":"Tàn cuộc","tension":4,"purpose":"resolution","scene_type":"rest","mood":"weary"}],"chapter_tension":9}`

	calmSimulation   = `{"consequences":[{"description":"Gió đổi chiều","severity":1,"affects":"world"}],"identity_alignment":{"drift":"","alignment_shift":0}}`
	severeSimulation = `{"consequences":[{"description":"Mất đi người bạn đồng hành","severity":5,"affects":"relationship"}],"identity_alignment":{"drift":"","alignment_shift":0}}`
	majorDrift       = `{"consequences":[],"identity_alignment":{"drift":"major","alignment_shift":-4,"reason":"phản bội lời hứa","emerging_value":"quyền lực"}}`
)

func skilledPlayer() *player.State {
	p := testPlayer()
	p.Skill = &player.UniqueSkill{Name: "Mắt Sương", Category: "perception", Growth: skill.NewGrowthState()}
	return p
}

// playTurns runs n chapters, feeding each outcome's player into the next.
func playTurns(t *testing.T, o *Orchestrator, p *player.State, n int) []*Outcome {
	t.Helper()
	s := newState(p, "")
	var outs []*Outcome
	for i := range n {
		s.ChapterNumber = i + 1
		out, err := o.Run(context.Background(), s)
		require.NoError(t, err)
		outs = append(outs, out)
		s.Player = out.Player
		s.Ledger = out.Ledger
	}
	return outs
}

func hasEvent(out *Outcome, typ identity.EventType) bool {
	for _, e := range out.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestRun_SkillGrowsSeedToUltimate(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentSimulator, calmSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := skilledPlayer()
	p.Skill.Growth.UsageCount = skill.BloomMinUsage
	p.EchoTrace = 40
	p.Progression.Rank = skill.UltimateMinRank

	outs := playTurns(t, o, p, 3)

	assert.Contains(t, outs[0].Evolutions, "skill_bloom")
	assert.Equal(t, skill.StageBloom, outs[0].Player.Skill.Stage())

	g := outs[1].Player.Skill.Growth
	assert.Contains(t, outs[1].Evolutions, "skill_aspect")
	assert.Equal(t, skill.StageAspect, g.Stage)
	assert.True(t, g.MutationLocked)
	options := skill.AspectOptions(*p.Skill)
	assert.Equal(t, options, g.AspectOptions)
	assert.Equal(t, options[0], g.ChosenAspect, "echo bloom resonates")

	g = outs[2].Player.Skill.Growth
	assert.Contains(t, outs[2].Evolutions, "skill_ultimate")
	assert.Equal(t, skill.StageUltimate, g.Stage)
	assert.Equal(t, options[0]+" · Tối Thượng", g.UltimateForm)
	assert.Equal(t, 0.06, g.CombatBonus)
	require.Len(t, g.StageHistory, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{g.StageHistory[0].Chapter, g.StageHistory[1].Chapter, g.StageHistory[2].Chapter})

	assert.Equal(t, skill.StageSeed, p.Skill.Stage(), "input player must not be mutated")
}

func TestRun_SevereConsequencesBloomScarPath(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentSimulator, severeSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := skilledPlayer()
	p.Skill.Growth.UsageCount = skill.BloomMinUsage

	outs := playTurns(t, o, p, 2)

	assert.True(t, hasEvent(outs[0], identity.EventSkillScar))
	assert.Equal(t, skill.StageSeed, outs[0].Player.Skill.Stage(), "one scar is not enough")

	g := outs[1].Player.Skill.Growth
	assert.Equal(t, skill.StageBloom, g.Stage)
	assert.Equal(t, skill.GrowthScar, g.BloomPath)
	require.Len(t, g.ScarLog, 2)
	assert.Equal(t, "Mất đi người bạn đồng hành", g.ScarLog[0].Trauma)
	assert.GreaterOrEqual(t, g.MutationCount, 2)
}

func TestRun_ForgedAspectUnlocksSignatureV3(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentSimulator, calmSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := skilledPlayer()
	p.Skill.Growth.Stage = skill.StageBloom
	p.Skill.Growth.BloomPath = skill.GrowthEcho
	p.Progression.Rank = skill.AspectMinRank
	p.TotalChapters = 100
	w := testWeapon()
	w.Grade = weapon.GradeAwakened
	w.BondScore = weapon.BondCapAwakened
	w.Crystals = []weapon.Crystal{weapon.CrystalSovereign}
	w.ClimaxEncounterCount = 1
	w.SignatureMove = &weapon.SignatureMove{Name: "Trảm Sương · Thức Tỉnh", EvolutionTier: 2, MechanicalValue: 0.07}
	p.Weapons = []weapon.Weapon{w}

	out := playTurns(t, o, p, 1)[0]

	assert.Equal(t, skill.StageAspect, out.Player.Skill.Stage())
	assert.Contains(t, out.Evolutions, "signature_v3")
	move := out.Player.PrimaryWeapon().SignatureMove
	assert.Equal(t, 3, move.EvolutionTier)
	assert.Equal(t, "Trảm Sương · Thức Tỉnh", move.V2Name)
	assert.Empty(t, out.Player.PrimaryWeapon().Crystals)
}

func TestRun_MajorDriftLeadsToDivergedForm(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentSimulator, majorDrift)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := testPlayer()
	p.Progression.Rank = 3
	p.TotalChapters = 25
	p.DecisionQualityScore = 90
	p.EchoTrace = 40

	outs := playTurns(t, o, p, 2)

	first := outs[0]
	assert.Equal(t, []string{"quyền lực"}, first.Player.Current.ActiveValues)
	assert.Equal(t, 0.0, archetype.ValueOverlap(first.Player.Seed, first.Player.Current))
	assert.Equal(t, -1.0, first.Player.Latent.DriftBias["tự do"])
	assert.True(t, hasEvent(first, identity.EventDrift))

	diverged := archetype.Forms[player.ArchetypeSeeker][archetype.PathDiverged]
	require.True(t, hasEvent(first, identity.EventTransmutationReady))
	assert.Equal(t, diverged.ID, first.Player.ArchetypeEvolution.PendingForm)

	second := outs[1]
	assert.True(t, hasInjected(second.State.Planner.Beats, InjectedTransmutation))
	assert.Contains(t, second.Evolutions, "transmuted")
	assert.Equal(t, player.EvolutionStageTransmuted, second.Player.ArchetypeEvolution.Stage)
	assert.Equal(t, diverged.ID, second.Player.ArchetypeEvolution.TransmutedForm)
	assert.Equal(t, []string{"tự do"}, second.Player.Seed.CoreValues, "seed identity is frozen")
}

func TestRun_NotorietyEarnsReputationForm(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentSimulator, calmSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := testPlayer()
	p.Progression.Rank = 3
	p.TotalChapters = 25
	p.DecisionQualityScore = 90
	p.EchoTrace = 40
	p.Notoriety = 48
	p.Current.ReputationTags = []string{"có tiếng", "kẻ lạ mặt"}

	s := newState(p, "")
	s.ChosenChoice = &story.Choice{ID: "ch0_c3", Text: "Lao thẳng vào rặng trúc", RiskLevel: 5, ActionType: "combat"}
	out, err := o.Run(context.Background(), s)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, out.Player.Notoriety, 50.0)
	assert.Contains(t, out.Player.Current.ReputationTags, "lừng danh")
	assert.True(t, hasEvent(out, identity.EventReputation))
	reputation := archetype.Forms[player.ArchetypeSeeker][archetype.PathReputation]
	assert.Equal(t, reputation.ID, out.Player.ArchetypeEvolution.PendingForm)
}

func TestRun_CrushingClimaxLeavesWeaponDormantUntilRecovery(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentPlanner, combatPlan, calmPlan)
	llm.SetAgentResponses(services.AgentSimulator, severeSimulation, calmSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := testPlayer()
	p.FateBuffer = 0
	p.Weapons = []weapon.Weapon{testWeapon()}

	outs := playTurns(t, o, p, 2)

	first := outs[0]
	require.NotNil(t, first.Combat)
	w := first.Player.PrimaryWeapon()
	assert.True(t, w.Dormant)
	assert.Equal(t, 1, w.DormantSinceChapter)
	assert.False(t, w.Usable())
	assert.True(t, hasEvent(first, identity.EventWeaponDormant))

	second := outs[1]
	assert.True(t, hasInjected(second.State.Planner.Beats, InjectedRecovery))
	assert.False(t, second.Player.PrimaryWeapon().Dormant)
	assert.True(t, hasEvent(second, identity.EventWeaponRecovered))
}

func TestRun_ProtectedClimaxKeepsWeapon(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentPlanner, combatPlan)
	llm.SetAgentResponses(services.AgentSimulator, severeSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := testPlayer()
	p.Weapons = []weapon.Weapon{testWeapon()}

	out := playTurns(t, o, p, 1)[0]
	assert.False(t, out.Player.PrimaryWeapon().Dormant, "fate still shields a full buffer")
}

func TestRun_ConfrontationSealsSkill(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetAgentResponses(services.AgentSimulator, majorDrift, calmSimulation)
	o, _ := newTestOrchestrator(t, llm, nil)

	p := skilledPlayer()
	p.Instability = 75

	s := newState(p, "")
	out, err := o.Run(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, out.State.Delta.ConfrontationTriggered)
	assert.True(t, out.Player.Seal.Sealed)
	assert.Equal(t, 1, out.Player.Seal.SealedAtChapter)
	assert.True(t, hasEvent(out, identity.EventSkillSealed))
	assert.False(t, skill.PlanReward(out.Player, 5).ShouldReward, "a sealed skill earns nothing")

	settled := out.Player
	settled.Instability = SealReleaseInstability - 5
	s.Player, s.ChapterNumber = settled, 2
	out, err = o.Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, out.Player.Seal.Sealed)
	assert.True(t, hasEvent(out, identity.EventSkillUnsealed))
}
