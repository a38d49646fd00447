package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/identity"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

type simulatorInput struct {
	Player      *player.State
	Choice      *story.Choice
	Beats       []Beat
	LedgerBlock string
}

type simulatorUpdate struct {
	out SimulatorOutput
}

func (u simulatorUpdate) merge(s *NarrativeState) {
	out := u.out
	s.Simulator = &out
}

type simulator struct {
	caller
	model       string
	ledgerChars int
}

func (sm *simulator) agent() services.Agent { return services.AgentSimulator }

func (sm *simulator) run(ctx context.Context, s NarrativeState) update {
	in := simulatorInput{Player: s.Player, Choice: s.ChosenChoice, Beats: s.beats()}
	if s.Ledger != nil {
		in.LedgerBlock = s.Ledger.ToPromptString(sm.ledgerChars)
	}
	return simulatorUpdate{out: sm.simulate(ctx, in)}
}

func (sm *simulator) simulate(ctx context.Context, in simulatorInput) SimulatorOutput {
	user, err := prompts.New().
		WithPlayer(in.Player).
		WithChoice(in.Choice).
		WithList("DÀN Ý", beatLines(in.Beats)).
		WithLedger(in.LedgerBlock).
		Build()
	if err != nil {
		sm.logger.Error("Failed to build simulator prompt", "error", err)
		return fallbackSimulation()
	}

	raw, err := sm.generate(ctx, services.GenerateRequest{
		Agent:       services.AgentSimulator,
		Model:       sm.model,
		System:      prompts.SimulatorSystemPrompt,
		User:        user,
		MaxTokens:   1024,
		Temperature: 0.4,
		JSON:        true,
	})
	if err != nil {
		logParseFailure(sm.logger, services.AgentSimulator, raw, err)
		return fallbackSimulation()
	}

	var out SimulatorOutput
	if err := decodeJSON(raw, &out); err != nil {
		logParseFailure(sm.logger, services.AgentSimulator, raw, err)
		return fallbackSimulation()
	}
	switch d := strings.ToLower(strings.TrimSpace(out.IdentityAlignment.Drift)); d {
	case identity.DriftMinor, identity.DriftMajor:
		out.IdentityAlignment.Drift = d
	default:
		out.IdentityAlignment.Drift = identity.DriftNone
	}
	return out
}

func fallbackSimulation() SimulatorOutput {
	return SimulatorOutput{
		Consequences: []Consequence{{Description: "Hành động tạo ra thay đổi", Severity: 1, Affects: "world"}},
		Fallback:     true,
	}
}

func beatLines(beats []Beat) []string {
	lines := make([]string, 0, len(beats))
	for i, b := range beats {
		line := b.Description
		if b.Mood != "" {
			line += " [" + b.Mood + "]"
		}
		lines = append(lines, fmt.Sprintf("%d. %s (căng %d/10): %s", i+1, b.Purpose, b.Tension, line))
	}
	return lines
}
