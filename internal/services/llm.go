package services

import (
	"context"
)

// Agent names the pipeline step an LLM call belongs to.
type Agent string

const (
	AgentParser     Agent = "parser"
	AgentPlanner    Agent = "planner"
	AgentSimulator  Agent = "simulator"
	AgentWriter     Agent = "writer"
	AgentCritic     Agent = "critic"
	AgentOnboarding Agent = "onboarding"
)

// GenerateRequest is one single-turn completion.
type GenerateRequest struct {
	Agent       Agent
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// LLMService defines the interface for interacting with an LLM provider
type LLMService interface {
	// InitModel prepares the provider on startup
	InitModel(ctx context.Context, modelName string) error

	// Generate returns the model's text response
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

func (r GenerateRequest) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

func (r GenerateRequest) temperature() float64 {
	if r.Temperature > 0 {
		return r.Temperature
	}
	return DefaultTemperature
}
