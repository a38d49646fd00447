package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/textfilter"
)

// parsePreviewRunes bounds the response excerpt logged on parse failures.
const parsePreviewRunes = 200

var errNoBeats = errors.New("plan has no beats")

// step is one agent of the pipeline. The set is closed: inputParser,
// planner, simulator, writer and critic. Each projects the fields it needs
// from the state and returns an update that is merged into a copy.
type step interface {
	agent() services.Agent
	run(ctx context.Context, s NarrativeState) update
}

// update is the partial result of a step.
type update interface {
	merge(s *NarrativeState)
}

// caller wraps the LLM for one agent.
type caller struct {
	llm    services.LLMService
	logger *slog.Logger
}

func (c caller) generate(ctx context.Context, req services.GenerateRequest) (string, error) {
	out, err := c.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", req.Agent, err)
	}
	return out, nil
}

// decodeJSON parses an agent reply, tolerating a leading markdown fence.
func decodeJSON(raw string, v any) error {
	body := stripFence(raw)
	if body == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// logParseFailure records why an agent fell back.
func logParseFailure(logger *slog.Logger, agent services.Agent, raw string, err error) {
	logger.Warn("Agent response unusable, using fallback",
		"agent", agent,
		"error", err,
		"preview", textfilter.Preview(raw, parsePreviewRunes))
}
