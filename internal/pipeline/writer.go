package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/story"
	"github.com/jwebster45206/isekai-engine/pkg/textfilter"
)

// placeholderProse is used when the writer cannot be reached at all.
const placeholderProse = "Gió lặng đi một nhịp. Con đường phía trước vẫn còn đó, chờ nhân vật bước tiếp."

const summaryFallbackRunes = 200

// fallbackChoices pad a draft that offers fewer than three choices.
var fallbackChoices = []story.Choice{
	{Text: "Thận trọng tiến về phía trước", RiskLevel: 2, ConsequenceHint: "Chậm mà chắc", ActionType: "explore"},
	{Text: "Dừng lại quan sát xung quanh", RiskLevel: 1, ConsequenceHint: "An toàn nhưng có thể bỏ lỡ cơ hội", ActionType: "rest"},
	{Text: "Liều lĩnh lao vào điều chưa biết", RiskLevel: 5, ConsequenceHint: "Nguy hiểm thực sự", ActionType: "combat"},
}

type writerInput struct {
	ChapterNumber   int
	Player          *player.State
	Tags            []string
	Tone            string
	Backstory       string
	PreviousSummary string
	Choice          *story.Choice
	LedgerBlock     string
	FateInstruction string
	Beats           []Beat
	Simulation      *SimulatorOutput
	Rewrite         string
	Attempt         int
}

type writerUpdate struct {
	out WriterOutput
}

func (u writerUpdate) merge(s *NarrativeState) {
	out := u.out
	s.Writer = &out
	// a new draft invalidates the previous verdict
	s.Critic = nil
}

type writer struct {
	caller
	model        string
	worldContext string
	maxTokens    int
	temperature  float64
	ledgerChars  int
}

func (w *writer) agent() services.Agent { return services.AgentWriter }

func (w *writer) run(ctx context.Context, s NarrativeState) update {
	in := writerInput{
		ChapterNumber:   s.ChapterNumber,
		Player:          s.Player,
		Tags:            s.PreferenceTags,
		Tone:            s.Tone,
		Backstory:       s.Backstory,
		PreviousSummary: s.PreviousSummary,
		Choice:          s.ChosenChoice,
		FateInstruction: s.FateInstruction,
		Beats:           s.beats(),
		Simulation:      s.Simulator,
		Attempt:         s.RewriteCount + 1,
	}
	if s.Ledger != nil {
		in.LedgerBlock = s.Ledger.ToPromptString(w.ledgerChars)
	}
	if s.Critic != nil && !s.Critic.Approved {
		in.Rewrite = rewriteInstructions(s.Critic)
	}
	return writerUpdate{out: w.write(ctx, in)}
}

func (w *writer) write(ctx context.Context, in writerInput) WriterOutput {
	b := prompts.New().
		WithPlayer(in.Player).
		WithStory(in.Tags, in.Tone, in.Backstory).
		WithPreviousSummary(in.PreviousSummary).
		WithChoice(in.Choice).
		WithLedger(in.LedgerBlock).
		WithFate(in.FateInstruction).
		WithList("DÀN Ý", beatLines(in.Beats))
	if in.Simulation != nil {
		b = b.WithList("HỆ QUẢ", consequenceLines(in.Simulation)).
			WithList("ĐIỀM BÁO", in.Simulation.Foreshadowing)
	}
	if in.Choice != nil && in.Choice.Refused {
		b = b.WithSection("LƯU Ý", "Người chơi chưa đưa ra hành động hợp lệ. Viết một chương ngắn nhân vật chần chừ, quan sát và suy ngẫm; không có biến cố lớn.")
	}
	if in.Rewrite != "" {
		b = b.WithSection(prompts.RewritePrefix, in.Rewrite)
	}
	user, err := b.Build()
	if err != nil {
		w.logger.Error("Failed to build writer prompt", "error", err)
		return finishDraft(WriterOutput{Prose: placeholderProse}, in)
	}

	raw, err := w.generate(ctx, services.GenerateRequest{
		Agent:       services.AgentWriter,
		Model:       w.model,
		System:      prompts.WriterSystem(w.worldContext),
		User:        user,
		MaxTokens:   w.maxTokens,
		Temperature: w.temperature,
		JSON:        true,
	})
	if err != nil {
		logParseFailure(w.logger, services.AgentWriter, raw, err)
		return finishDraft(WriterOutput{Prose: placeholderProse}, in)
	}

	var out WriterOutput
	if err := decodeJSON(raw, &out); err != nil {
		// plain prose is still a usable draft
		logParseFailure(w.logger, services.AgentWriter, raw, err)
		out = WriterOutput{Prose: stripFence(raw)}
	}
	if strings.TrimSpace(out.Prose) == "" {
		out.Prose = placeholderProse
	}
	return finishDraft(out, in)
}

// finishDraft fills defaults and normalises the choice list to exactly
// three options with ids ch{n}_c{i}.
func finishDraft(out WriterOutput, in writerInput) WriterOutput {
	out.Attempt = in.Attempt
	out.Prose = strings.TrimSpace(out.Prose)
	if strings.TrimSpace(out.Title) == "" {
		out.Title = fmt.Sprintf("Chương %d", in.ChapterNumber)
	}
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = textfilter.Preview(out.Prose, summaryFallbackRunes)
	}
	out.Choices = normalizeChoices(out.Choices, in.ChapterNumber)
	return out
}

func normalizeChoices(in []story.Choice, chapter int) []story.Choice {
	out := make([]story.Choice, 0, story.MaxChoices)
	seen := map[string]bool{}
	add := func(c story.Choice) {
		text := strings.TrimSpace(c.Text)
		if text == "" || seen[strings.ToLower(text)] || len(out) == story.MaxChoices {
			return
		}
		seen[strings.ToLower(text)] = true
		c.Text = text
		c.RiskLevel = story.ClampRisk(c.RiskLevel)
		c.Refused = false
		out = append(out, c)
	}
	for _, c := range in {
		add(c)
	}
	for _, c := range fallbackChoices {
		add(c)
	}
	for i := range out {
		out[i].ID = fmt.Sprintf("ch%d_c%d", chapter, i+1)
	}
	return out
}

func consequenceLines(sim *SimulatorOutput) []string {
	lines := make([]string, 0, len(sim.Consequences)+len(sim.RelationshipChanges)+len(sim.WorldImpacts))
	for _, c := range sim.Consequences {
		lines = append(lines, c.Description)
	}
	for _, r := range sim.RelationshipChanges {
		lines = append(lines, r.Character+": "+r.Change)
	}
	lines = append(lines, sim.WorldImpacts...)
	return lines
}

// rewriteInstructions turns a rejection into guidance for the next draft.
func rewriteInstructions(c *CriticOutput) string {
	if strings.TrimSpace(c.RewriteInstructions) != "" {
		return c.RewriteInstructions
	}
	var parts []string
	if c.Feedback != "" {
		parts = append(parts, c.Feedback)
	}
	for _, is := range c.Issues {
		parts = append(parts, "- "+is)
	}
	return strings.Join(parts, "\n")
}
