package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/isekai-engine/pkg/archetype"
	"github.com/jwebster45206/isekai-engine/pkg/combat"
	"github.com/jwebster45206/isekai-engine/pkg/fate"
	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/ledger"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/progression"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
	"github.com/jwebster45206/isekai-engine/pkg/weapon"
)

// SoulChoiceBond is the bond a soul choice adds to the primary weapon.
const SoulChoiceBond = 5.0

const (
	// DormancySeverity is the consequence severity that breaks the primary
	// weapon in an unprotected combat climax.
	DormancySeverity = 5
	// SealReleaseInstability lifts a confrontation seal once instability
	// falls below it.
	SealReleaseInstability = 50.0
)

// Outcome is everything a finished turn produces. The caller persists it.
type Outcome struct {
	State   NarrativeState
	Player  *player.State
	Ledger  *ledger.Ledger
	Chapter *story.Chapter
	Scene   *story.Scene
	Events  []identity.Event

	WorldChanges  []string
	Foreshadowing []string

	RankUp *progression.RankUp
	Combat *combat.Breakdown
	// Evolutions names the evolution steps that fired, e.g. "signature_v2".
	Evolutions []string
}

// finalize applies the turn to a copy of the player and builds the records.
func (o *Orchestrator) finalize(s NarrativeState) *Outcome {
	chapter := s.ChapterNumber
	prev := s.Player
	risk := s.riskLevel()

	in := identity.Input{
		Chapter:   chapter,
		Beats:     deltaBeats(s.beats()),
		RiskLevel: risk,
		Refused:   s.Refused(),
		Event:     s.Event.EventType,
		FateDecay: o.fate.CalculateDecay(prev.TotalChapters, risk),
	}
	if s.Simulator != nil {
		in.Drift = s.Simulator.IdentityAlignment.Drift
		in.AlignmentShift = s.Simulator.IdentityAlignment.AlignmentShift
	}
	s.Delta = identity.Compute(prev, in)
	next := identity.Apply(prev, s.Delta)

	out := &Outcome{
		Player: next,
		Ledger: updateLedger(s.Ledger, s.Simulator, chapter),
		Events: identity.EventsForDelta(next.ID, s.StoryID, chapter, s.Delta),
	}
	if s.Planner != nil {
		out.WorldChanges = append(out.WorldChanges, s.Planner.WorldChanges...)
	}
	if s.Simulator != nil {
		out.WorldChanges = append(out.WorldChanges, s.Simulator.WorldImpacts...)
		out.Foreshadowing = append(out.Foreshadowing, s.Simulator.Foreshadowing...)
	}

	// A refused turn moved nothing, so nothing can progress from it.
	if !s.Refused() {
		o.advance(s, next, out)
	}

	if s.Status == StatusExhausted && s.Critic != nil && len(s.Critic.CanonCriticals) > 0 {
		o.logger.Warn("Storing chapter with unresolved canon violations",
			"story_id", s.StoryID.String(),
			"chapter", chapter,
			"rules", s.Critic.CanonCriticals)
		out.event(next, s, identity.EventCanonUnresolved, "canon violations unresolved after rewrite cap",
			map[string]any{"rules": s.Critic.CanonCriticals})
	}

	next.ResetDailyTurns(o.now())
	next.TurnsToday++

	out.Chapter, out.Scene = o.records(s)
	out.State = s
	return out
}

// advance runs the identity, rank-up, skill, weapon, combat and archetype
// steps on next.
func (o *Orchestrator) advance(s NarrativeState, next *player.State, out *Outcome) {
	chapter := s.ChapterNumber
	beats := s.beats()

	o.shiftIdentity(s, next, out)
	o.updateSeal(s, next, out)

	if up, ok := progression.Check(next, s.Delta.BreakthroughTriggered); ok {
		progression.Apply(next, up, chapter, s.Delta.BreakthroughTriggered)
		out.RankUp = &up
		out.event(next, s, identity.EventRankUp, fmt.Sprintf("rank %d -> %d (%s)", up.From, up.To, up.Title),
			map[string]any{"from": up.From, "to": up.To, "reason": up.Reason})
	}

	usedSkill := next.Skill != nil && next.Skill.Name != "" &&
		strings.Contains(strings.ToLower(s.FinalProse), strings.ToLower(next.Skill.Name))
	if next.Skill != nil {
		g := &next.Skill.Growth
		if usedSkill {
			skill.RecordUsage(g)
		}
		if s.Delta.RogueEventTriggered {
			_ = skill.Mutate(g) // locked after the Forge
		}
		if trauma := scarFrom(s); trauma != "" {
			skill.AddScar(g, chapter, trauma)
			out.event(next, s, identity.EventSkillScar, "unique skill scarred: "+trauma,
				map[string]any{"scars": len(g.ScarLog)})
		}
		o.growSkill(s, next, out)
		if s.RewardPlan.ShouldReward {
			sub := player.SubSkill{Name: s.RewardPlan.Name, Description: s.RewardPlan.Description, Chapter: chapter}
			if skill.AddSubSkill(g, sub) {
				out.event(next, s, identity.EventSkillReward, "sub-skill awarded: "+sub.Name,
					map[string]any{"sub_skill": sub.Name})
			}
		}
	}

	primary := next.PrimaryWeapon()
	if primary != nil && s.ChosenChoice != nil && s.ChosenChoice.ActionType == weapon.ActionSoulChoice {
		primary.AddBond(SoulChoiceBond, chapter, weapon.ActionSoulChoice)
	}
	if hasInjected(beats, InjectedRecovery) {
		if w := next.DormantWeapon(); w != nil && w.Recover() {
			out.event(next, s, identity.EventWeaponRecovered, w.Name+" recovered from dormancy", nil)
		}
	}
	if hasInjected(beats, InjectedAwakening) {
		if w := next.AwakeningWeapon(); w != nil && w.Awaken() {
			out.Evolutions = append(out.Evolutions, "weapon_awakened")
			out.event(next, s, identity.EventWeaponAwakened, w.Name+" awakened", nil)
		}
	}

	climax := combatClimax(beats)
	if climax {
		enc := combat.Encounter{UsedUniqueSkill: usedSkill}
		if boss, ok := o.library.Guardian(max(next.Progression.Floor, 1)); ok {
			enc.EnemyPrinciple = boss.Principle
			enc.EnemySkills = boss.Skills
		}
		b := combat.TotalBonus(next, enc)
		out.Combat = &b
		if primary != nil {
			primary.ClimaxEncounterCount++
		}
		next.AddFlag(fmt.Sprintf("combat_bonus_ch%d", chapter))
		out.event(next, s, identity.EventCombatBonus, fmt.Sprintf("combat climax bonus %.3f", b.Total),
			map[string]any{"build_fit": b.BuildFit, "domain": b.Domain, "resonance_burst": b.ResonanceBurst, "total": b.Total})
	}

	if primary != nil && primary.SignatureMove != nil {
		o.evolveSignature(s, next, primary, out)
	}

	// Without fate's protection a crushing climax breaks the weapon's spirit
	// until a recovery beat lands.
	if climax && primary != nil && !primary.Dormant &&
		o.fate.StatusOf(next.FateBuffer) == fate.StatusNone && maxSeverity(s.Simulator) >= DormancySeverity {
		primary.MarkDormant(chapter)
		out.event(next, s, identity.EventWeaponDormant, primary.Name+" fell dormant", nil)
	}

	if hasInjected(beats, InjectedTransmutation) && next.ArchetypeEvolution.TransmutationPending {
		form, err := archetype.Apply(next, chapter)
		if err != nil {
			o.logger.Error("Transmutation failed", "error", err, "player_id", next.ID.String())
		} else {
			out.Evolutions = append(out.Evolutions, "transmuted")
			out.event(next, s, identity.EventTransmuted, "transmuted into "+form.Name, map[string]any{"form": form.ID})
		}
	} else if ev := archetype.Check(next, o.cfg.Archetype); ev.Ready {
		archetype.MarkPending(next, ev)
		out.event(next, s, identity.EventTransmutationReady, "transmutation ready: "+ev.Form.Name,
			map[string]any{"form": ev.Form.ID, "reason": ev.Reason})
	}
}

// growSkill moves the unique skill at most one stage per chapter.
func (o *Orchestrator) growSkill(s NarrativeState, next *player.State, out *Outcome) {
	g := &next.Skill.Growth
	chapter := s.ChapterNumber
	rank := next.Progression.Rank

	path := skill.BloomPath(*g, next.EchoTrace)
	switch {
	case path != "":
		if err := skill.Bloom(g, path, chapter); err == nil {
			out.Evolutions = append(out.Evolutions, "skill_bloom")
			out.event(next, s, identity.EventSkillReward, "unique skill bloomed along the "+path+" path",
				map[string]any{"stage": g.Stage, "path": path})
		}
	case skill.CanForgeAspect(*g, rank):
		options := skill.AspectOptions(*next.Skill)
		chosen := skill.ChooseAspect(options, *g, next.Alignment)
		if err := skill.ForgeAspect(g, options, chosen, chapter); err != nil {
			o.logger.Error("Aspect Forge failed", "error", err, "player_id", next.ID.String())
			return
		}
		out.Evolutions = append(out.Evolutions, "skill_aspect")
		out.event(next, s, identity.EventSkillReward, "aspect forged: "+chosen,
			map[string]any{"stage": g.Stage, "aspect": chosen, "options": options})
	case skill.CanReachUltimate(*g, rank):
		form := skill.UltimateFormName(*g)
		if err := skill.ReachUltimate(g, form, chapter); err != nil {
			o.logger.Error("Ultimate transition failed", "error", err, "player_id", next.ID.String())
			return
		}
		out.Evolutions = append(out.Evolutions, "skill_ultimate")
		out.event(next, s, identity.EventSkillReward, "unique skill reached its ultimate form: "+form,
			map[string]any{"stage": g.Stage, "form": form})
	}
}

// shiftIdentity lets drift move the current values and notoriety earn
// reputation tags.
func (o *Orchestrator) shiftIdentity(s NarrativeState, next *player.State, out *Outcome) {
	var emerging string
	if s.Simulator != nil {
		emerging = s.Simulator.IdentityAlignment.EmergingValue
	}
	sh := identity.ApplyDrift(next, s.Delta.Drift, emerging)
	sh.Reputation = identity.UpdateReputation(next, s.Player.Notoriety, s.Delta.RogueEventTriggered, s.Event.Affinity)

	if len(sh.Abandoned) > 0 || len(sh.Adopted) > 0 {
		out.event(next, s, identity.EventDrift, "active values shifted",
			map[string]any{"abandoned": sh.Abandoned, "adopted": sh.Adopted, "active_values": next.Current.ActiveValues})
	}
	for _, tag := range sh.Reputation {
		out.event(next, s, identity.EventReputation, "known as "+tag, map[string]any{"tag": tag})
	}
}

// updateSeal seals the unique skill when a confrontation fires and lifts
// the seal once instability has settled.
func (o *Orchestrator) updateSeal(s NarrativeState, next *player.State, out *Outcome) {
	if next.Skill == nil {
		return
	}
	switch {
	case s.Delta.ConfrontationTriggered && !next.Seal.Sealed:
		next.Seal = player.SealState{Sealed: true, Reason: "identity confrontation", SealedAtChapter: s.ChapterNumber}
		out.event(next, s, identity.EventSkillSealed, "unique skill sealed by identity confrontation", nil)
	case next.Seal.Sealed && next.Instability < SealReleaseInstability:
		next.Seal = player.SealState{}
		out.event(next, s, identity.EventSkillUnsealed, "unique skill seal lifted", nil)
	}
}

// evolveSignature advances the primary weapon's signature move at most one tier.
func (o *Orchestrator) evolveSignature(s NarrativeState, next *player.State, w *weapon.Weapon, out *Outcome) {
	move := w.SignatureMove
	var actions []string
	if s.ChosenChoice != nil && s.ChosenChoice.ActionType != "" {
		actions = append(actions, s.ChosenChoice.ActionType)
	}

	if ok, _ := w.CanEvolveV2(actions); ok {
		name := weapon.EvolvedName(move.Name, 2)
		if err := w.ApplyEvolutionV2(name, move.Description+" Nay đã thức tỉnh cùng linh hồn vũ khí."); err == nil {
			out.Evolutions = append(out.Evolutions, "signature_v2")
			out.event(next, s, identity.EventSignatureEvolved, "signature move evolved to "+name,
				map[string]any{"tier": 2, "weapon": w.Name})
		}
		return
	}
	if ok, _ := w.CanEvolveV3(next.Skill.Stage()); ok {
		name := weapon.EvolvedName(move.Name, 3)
		if err := w.ApplyEvolutionV3(next.Skill.Stage(), name, move.Description+" Tuyệt kỹ đạt tới hình thái tối thượng."); err == nil {
			out.Evolutions = append(out.Evolutions, "signature_v3")
			out.event(next, s, identity.EventSignatureEvolved, "signature move evolved to "+name,
				map[string]any{"tier": 3, "weapon": w.Name})
		}
	}
}

// records builds the append-only chapter and its wrapping scene.
func (o *Orchestrator) records(s NarrativeState) (*story.Chapter, *story.Scene) {
	delta, err := json.Marshal(s.Delta)
	if err != nil {
		o.logger.Error("Failed to encode identity delta", "error", err)
	}
	ch := &story.Chapter{
		ID:            uuid.New(),
		StoryID:       s.StoryID,
		ChapterNumber: s.ChapterNumber,
		Title:         s.Writer.Title,
		Prose:         s.FinalProse,
		Summary:       s.Writer.Summary,
		Choices:       s.FinalChoices,
		ChosenChoice:  s.ChosenChoice,
		FreeInput:     s.FreeInput,
		IdentityDelta: string(delta),
		TotalScenes:   1,
		CriticScore:   s.Critic.Score,
		RewriteCount:  s.RewriteCount,
		CreatedAt:     o.now().UTC(),
	}

	sceneType, tension, mood := story.SceneExploration, 5, ""
	if s.Planner != nil {
		tension = s.Planner.ChapterTension
		peak := -1
		for _, b := range s.Planner.Beats {
			if b.Tension > peak {
				peak, sceneType = b.Tension, b.SceneType
			}
		}
		if n := len(s.Planner.Beats); n > 0 {
			mood = s.Planner.Beats[n-1].Mood
		}
	}
	return ch, story.WrapChapter(ch, sceneType, tension, mood)
}

func (out *Outcome) event(p *player.State, s NarrativeState, typ identity.EventType, desc string, data map[string]any) {
	out.Events = append(out.Events, identity.NewEvent(p.ID, s.StoryID, s.ChapterNumber, typ, desc, data))
}

// updateLedger returns a copy of base with the simulator's new canon.
func updateLedger(base *ledger.Ledger, sim *SimulatorOutput, chapter int) *ledger.Ledger {
	l := base.Clone()
	if sim == nil {
		return l
	}
	for _, e := range sim.NewEntities {
		l.AddEntity(ledger.Entity{
			Type:         ledger.EntityType(strings.ToLower(strings.TrimSpace(e.Type))),
			Name:         strings.TrimSpace(e.Name),
			FirstChapter: chapter,
			Description:  e.Description,
		})
	}
	for _, f := range sim.NewFacts {
		var ids []string
		for _, name := range f.EntityNames {
			if id := ledger.Slugify(name); id != "" {
				if _, ok := l.Entity(id); ok {
					ids = append(ids, id)
				}
			}
		}
		l.AddFact(f.Statement, chapter, "simulator", ids)
	}
	return l
}

func deltaBeats(beats []Beat) []identity.Beat {
	out := make([]identity.Beat, 0, len(beats))
	for _, b := range beats {
		out = append(out, identity.Beat{Tension: b.Tension, IsTurningPoint: b.IsTurningPoint})
	}
	return out
}

func hasInjected(beats []Beat, injector string) bool {
	for _, b := range beats {
		if b.Injected == injector {
			return true
		}
	}
	return false
}

// scarFrom returns the trauma a chapter leaves on the skill, or "".
func scarFrom(s NarrativeState) string {
	sim := s.Simulator
	if sim == nil || sim.Fallback {
		return ""
	}
	for _, c := range sim.Consequences {
		if c.Severity >= skill.ScarSeverity {
			return c.Description
		}
	}
	if s.Delta.Drift == identity.DriftMajor {
		if r := strings.TrimSpace(sim.IdentityAlignment.Reason); r != "" {
			return r
		}
		return "major drift from seed identity"
	}
	return ""
}

func maxSeverity(sim *SimulatorOutput) int {
	if sim == nil {
		return 0
	}
	top := 0
	for _, c := range sim.Consequences {
		top = max(top, c.Severity)
	}
	return top
}

// combatClimax reports whether the plan peaks in a fight.
func combatClimax(beats []Beat) bool {
	for _, b := range beats {
		if b.Purpose == PurposeClimax && b.SceneType == story.SceneCombat {
			return true
		}
	}
	return false
}
