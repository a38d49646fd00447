package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

func TestMockLLM_DefaultsAreValidJSON(t *testing.T) {
	mock := NewMockLLM()

	for _, agent := range []Agent{AgentParser, AgentPlanner, AgentSimulator, AgentWriter, AgentCritic, AgentOnboarding} {
		out, err := mock.Generate(context.Background(), GenerateRequest{Agent: agent})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", agent, err)
		}
		var v map[string]any
		if err := json.Unmarshal([]byte(out), &v); err != nil {
			t.Errorf("%s: default reply is not JSON: %v", agent, err)
		}
	}

	_, calls := mock.GetCalls()
	if len(calls) != 6 {
		t.Errorf("Expected 6 calls, got %d", len(calls))
	}
}

func TestMockLLM_ScriptedResponses(t *testing.T) {
	mock := NewMockLLM()
	mock.SetAgentResponses(AgentCritic, "first", "second")

	ctx := context.Background()
	for _, want := range []string{"first", "second", "second"} {
		got, _ := mock.Generate(ctx, GenerateRequest{Agent: AgentCritic})
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
	if n := len(mock.CallsFor(AgentCritic)); n != 3 {
		t.Errorf("Expected 3 critic calls, got %d", n)
	}
	if n := len(mock.CallsFor(AgentWriter)); n != 0 {
		t.Errorf("Expected 0 writer calls, got %d", n)
	}
}

func TestMockLLM_ErrorHandling(t *testing.T) {
	mock := NewMockLLM()
	expectedErr := fmt.Errorf("initialization failed")
	mock.SetInitModelError(expectedErr)

	if err := mock.InitModel(context.Background(), "test-model"); err != expectedErr {
		t.Errorf("Expected error '%v', got '%v'", expectedErr, err)
	}
	if len(mock.InitModelCalls) != 1 || mock.InitModelCalls[0] != "test-model" {
		t.Errorf("InitModel call not tracked: %v", mock.InitModelCalls)
	}

	mock.SetAgentError(AgentWriter, expectedErr)
	if _, err := mock.Generate(context.Background(), GenerateRequest{Agent: AgentWriter}); err != expectedErr {
		t.Errorf("Expected agent error, got %v", err)
	}

	mock.Reset()
	inits, gens := mock.GetCalls()
	if len(inits) != 0 || len(gens) != 0 {
		t.Error("Expected Reset to clear call tracking")
	}
}
