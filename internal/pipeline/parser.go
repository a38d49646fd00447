package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/story"
	"github.com/jwebster45206/isekai-engine/pkg/textfilter"
)

// FreeInputChoiceID identifies a choice derived from free text.
const FreeInputChoiceID = "free_input"

// RefusalChoiceText stands in for rejected input; the chapter plays the
// protagonist hesitating.
const RefusalChoiceText = "Nhân vật chần chừ, lặng lẽ quan sát thay vì hành động"

// parserInput is the parser's projection of the state.
type parserInput struct {
	FreeInput       string
	PreviousSummary string
	Protagonist     string
	LedgerBlock     string
}

type parserReply struct {
	Text                 string `json:"text"`
	RiskLevel            int    `json:"risk_level"`
	ConsequenceHint      string `json:"consequence_hint"`
	ActionType           string `json:"action_type"`
	Feasibility          string `json:"feasibility"`
	RequiresModification string `json:"requires_modification"`
}

type parserUpdate struct {
	choice story.Choice
}

func (u parserUpdate) merge(s *NarrativeState) {
	c := u.choice
	s.ChosenChoice = &c
}

type inputParser struct {
	caller
	model       string
	guard       *textfilter.PromptGuard
	ledgerChars int
}

func (p *inputParser) agent() services.Agent { return services.AgentParser }

func (p *inputParser) run(ctx context.Context, s NarrativeState) update {
	in := parserInput{
		FreeInput:       s.FreeInput,
		PreviousSummary: s.PreviousSummary,
		Protagonist:     s.Protagonist,
	}
	if s.Ledger != nil {
		in.LedgerBlock = s.Ledger.ToPromptString(p.ledgerChars)
	}
	return parserUpdate{choice: p.parse(ctx, in)}
}

// parse turns free text into a structured choice. Rejected input never
// reaches the LLM.
func (p *inputParser) parse(ctx context.Context, in parserInput) story.Choice {
	clean, err := p.guard.Sanitize(in.FreeInput)
	if err != nil {
		var gerr *textfilter.GuardError
		if errors.As(err, &gerr) {
			p.logger.Info("Free input refused", "pattern", gerr.Label)
		}
		return RefusalChoice()
	}

	user, err := prompts.New().
		WithSection("NHÂN VẬT", in.Protagonist).
		WithPreviousSummary(in.PreviousSummary).
		WithLedger(in.LedgerBlock).
		WithSection("HÀNH ĐỘNG TỰ DO", clean).
		Build()
	if err != nil {
		p.logger.Error("Failed to build parser prompt", "error", err)
		return rawChoice(clean)
	}

	raw, err := p.generate(ctx, services.GenerateRequest{
		Agent:       services.AgentParser,
		Model:       p.model,
		System:      prompts.ParserSystemPrompt,
		User:        user,
		MaxTokens:   512,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		logParseFailure(p.logger, services.AgentParser, raw, err)
		return rawChoice(clean)
	}

	var reply parserReply
	if err := decodeJSON(raw, &reply); err != nil || strings.TrimSpace(reply.Text) == "" {
		if err == nil {
			err = fmt.Errorf("missing text")
		}
		logParseFailure(p.logger, services.AgentParser, raw, err)
		return rawChoice(clean)
	}

	text := strings.TrimSpace(reply.Text)
	if reply.Feasibility == "impossible" && strings.TrimSpace(reply.RequiresModification) != "" {
		text = fmt.Sprintf("%s (%s)", text, strings.TrimSpace(reply.RequiresModification))
	}
	return story.Choice{
		ID:              FreeInputChoiceID,
		Text:            text,
		RiskLevel:       story.ClampRisk(reply.RiskLevel),
		ConsequenceHint: reply.ConsequenceHint,
		ActionType:      reply.ActionType,
	}
}

// RefusalChoice is the fixed choice used when free input is rejected.
func RefusalChoice() story.Choice {
	return story.Choice{
		ID:              FreeInputChoiceID,
		Text:            RefusalChoiceText,
		RiskLevel:       1,
		ConsequenceHint: textfilter.RefusalMessage,
		ActionType:      "rest",
		Refused:         true,
	}
}

func rawChoice(text string) story.Choice {
	return story.Choice{
		ID:        FreeInputChoiceID,
		Text:      text,
		RiskLevel: 3,
	}
}
