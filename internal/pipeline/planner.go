package pipeline

import (
	"context"
	"slices"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/content"
	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/archetype"
	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

// plannerInput is the planner's projection of the state.
type plannerInput struct {
	Player           *player.State
	Tags             []string
	Tone             string
	Backstory        string
	PreviousSummary  string
	Choice           *story.Choice
	LedgerBlock      string
	Event            crng.Event
	FateInstruction  string
	RewardPlan       skill.RewardPlan
	PendingEvolution []string
	Guardian         string
}

type plannerUpdate struct {
	out PlannerOutput
}

func (u plannerUpdate) merge(s *NarrativeState) {
	out := u.out
	s.Planner = &out
}

type planner struct {
	caller
	model       string
	library     *content.Library
	ledgerChars int
}

func (p *planner) agent() services.Agent { return services.AgentPlanner }

func (p *planner) run(ctx context.Context, s NarrativeState) update {
	in := plannerInput{
		Player:           s.Player,
		Tags:             s.PreferenceTags,
		Tone:             s.Tone,
		Backstory:        s.Backstory,
		PreviousSummary:  s.PreviousSummary,
		Choice:           s.ChosenChoice,
		Event:            s.Event,
		FateInstruction:  s.FateInstruction,
		RewardPlan:       s.RewardPlan,
		PendingEvolution: s.PendingEvolution,
	}
	if s.Ledger != nil {
		in.LedgerBlock = s.Ledger.ToPromptString(p.ledgerChars)
	}
	if boss, ok := p.library.Guardian(max(s.Player.Progression.Floor, 1)); ok {
		in.Guardian = boss.PromptBlock()
	}

	out := p.plan(ctx, in)
	return plannerUpdate{out: injectBeats(out, s)}
}

func (p *planner) plan(ctx context.Context, in plannerInput) PlannerOutput {
	user, err := prompts.New().
		WithPlayer(in.Player).
		WithStory(in.Tags, in.Tone, in.Backstory).
		WithPreviousSummary(in.PreviousSummary).
		WithChoice(in.Choice).
		WithLedger(in.LedgerBlock).
		WithEvent(in.Event).
		WithFate(in.FateInstruction).
		WithSkillReward(in.RewardPlan).
		WithList("DIỄN BIẾN ĐANG CHỜ", in.PendingEvolution).
		WithSection("HỘ VỆ TẦNG HIỆN TẠI", in.Guardian).
		Build()
	if err != nil {
		p.logger.Error("Failed to build planner prompt", "error", err)
		return fallbackPlan()
	}

	raw, err := p.generate(ctx, services.GenerateRequest{
		Agent:       services.AgentPlanner,
		Model:       p.model,
		System:      prompts.PlannerSystemPrompt,
		User:        user,
		MaxTokens:   2048,
		Temperature: 0.6,
		JSON:        true,
	})
	if err != nil {
		logParseFailure(p.logger, services.AgentPlanner, raw, err)
		return fallbackPlan()
	}

	var out PlannerOutput
	if err := decodeJSON(raw, &out); err != nil || len(out.Beats) == 0 {
		if err == nil {
			err = errNoBeats
		}
		logParseFailure(p.logger, services.AgentPlanner, raw, err)
		return fallbackPlan()
	}
	normalizeBeats(out.Beats)
	out.ChapterTension = clampTension(out.ChapterTension)
	return out
}

func fallbackPlan() PlannerOutput {
	return PlannerOutput{
		Beats: []Beat{{
			Description:    "Câu chuyện tiếp diễn từ lựa chọn của nhân vật",
			Tension:        5,
			Purpose:        PurposeRising,
			EstimatedWords: 400,
			SceneType:      story.SceneExploration,
			Mood:           "uncertain",
			Injected:       InjectedFallback,
		}},
		ChapterTension: 5,
		Pacing:         "medium",
		Fallback:       true,
	}
}

var validPurposes = []string{PurposeSetup, PurposeRising, PurposeClimax, PurposeFalling, PurposeResolution}

func normalizeBeats(beats []Beat) {
	for i := range beats {
		b := &beats[i]
		b.Tension = clampTension(b.Tension)
		b.Purpose = strings.ToLower(strings.TrimSpace(b.Purpose))
		if !slices.Contains(validPurposes, b.Purpose) {
			b.Purpose = PurposeRising
		}
		if b.SceneType == "" {
			b.SceneType = story.SceneExploration
		}
		if b.EstimatedWords <= 0 {
			b.EstimatedWords = 300
		}
	}
}

func clampTension(t int) int {
	if t == 0 {
		return 5
	}
	return min(max(t, 1), 10)
}

// injectBeats runs the deterministic injectors over a parsed or fallback
// plan. The input plan is not modified.
func injectBeats(out PlannerOutput, s NarrativeState) PlannerOutput {
	out.Beats = slices.Clone(out.Beats)

	if s.RewardPlan.ShouldReward {
		out.Beats = injectSkillReward(out.Beats, s.RewardPlan)
	}
	if s.Event.EventType == crng.EventBreakthrough {
		out.Beats = insertBeforeResolution(out.Beats, Beat{
			Description:    "Bức tường vô hình trong tâm cảnh vỡ tan; nhân vật chạm tới cảnh giới mới",
			Tension:        10,
			Purpose:        PurposeClimax,
			EstimatedWords: 500,
			SceneType:      story.SceneClimax,
			Mood:           "transcendent",
			IsTurningPoint: true,
			Injected:       InjectedBreakthrough,
		})
	}
	if w := s.Player.DormantWeapon(); w != nil {
		out.Beats = insertBeforeResolution(out.Beats, Beat{
			Description:    "Nhân vật ngồi bên " + w.Name + " đang ngủ yên, nhớ lại những trận chiến đã qua; vũ khí khẽ đáp lời",
			Tension:        7,
			Purpose:        PurposeFalling,
			EstimatedWords: 350,
			SceneType:      story.SceneRest,
			Mood:           "melancholy",
			Injected:       InjectedRecovery,
		})
	}
	if w := s.Player.AwakeningWeapon(); w != nil {
		out.Beats = insertBeforeResolution(out.Beats, Beat{
			Description:    w.Name + " thức tỉnh, linh hồn vũ khí và chủ nhân hòa làm một",
			Tension:        9,
			Purpose:        PurposeClimax,
			EstimatedWords: 450,
			SceneType:      story.SceneClimax,
			Mood:           "wonder",
			IsTurningPoint: true,
			Injected:       InjectedAwakening,
		})
	}
	if s.Player.ArchetypeEvolution.TransmutationPending {
		form := s.Player.ArchetypeEvolution.PendingForm
		if f, ok := archetype.FormByID(form); ok {
			form = f.Name
		}
		out.Beats = injectTransmutation(out.Beats, form)
	}
	return out
}

// injectSkillReward attaches the plan to the first discovery beat, or adds a
// discovery beat just before the last beat.
func injectSkillReward(beats []Beat, plan skill.RewardPlan) []Beat {
	for i := range beats {
		if beats[i].SceneType == story.SceneDiscovery {
			beats[i].SkillReward = &plan
			beats[i].Injected = InjectedSkillReward
			return beats
		}
	}
	b := Beat{
		Description:    "Nhân vật lĩnh ngộ " + plan.Name,
		Tension:        6,
		Purpose:        PurposeRising,
		EstimatedWords: 300,
		SceneType:      story.SceneDiscovery,
		Mood:           "wonder",
		SkillReward:    &plan,
		Injected:       InjectedSkillReward,
	}
	at := max(len(beats)-1, 0)
	return slices.Insert(beats, at, b)
}

// transmutationScenes is the fixed three-scene transmutation sequence.
var transmutationScenes = []Beat{
	{
		Description:    "Sóng Ngầm: những rạn nứt giữa con người cũ và mới trồi lên",
		Tension:        6,
		Purpose:        PurposeRising,
		EstimatedWords: 350,
		SceneType:      story.SceneSocial,
		Mood:           "uneasy",
	},
	{
		Description:    "Lò Biến Đổi: nhân vật đối diện chính mình và bước qua ngưỡng biến đổi",
		Tension:        9,
		Purpose:        PurposeClimax,
		EstimatedWords: 500,
		SceneType:      story.SceneClimax,
		Mood:           "transcendent",
		IsTurningPoint: true,
	},
	{
		Description:    "Danh Xưng Mới: thế giới gọi nhân vật bằng một cái tên khác",
		Tension:        5,
		Purpose:        PurposeFalling,
		EstimatedWords: 300,
		SceneType:      story.SceneSocial,
		Mood:           "resolute",
	},
}

func injectTransmutation(beats []Beat, form string) []Beat {
	for _, tpl := range transmutationScenes {
		b := tpl
		if form != "" {
			b.Description += " (" + form + ")"
		}
		b.Injected = InjectedTransmutation
		beats = insertBeforeResolution(beats, b)
	}
	return beats
}

// insertBeforeResolution places b before the last resolution beat, or at
// the end when the plan has none.
func insertBeforeResolution(beats []Beat, b Beat) []Beat {
	at := len(beats)
	for i := len(beats) - 1; i >= 0; i-- {
		if beats[i].Purpose == PurposeResolution {
			at = i
			break
		}
	}
	return slices.Insert(beats, at, b)
}
