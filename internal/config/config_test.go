package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 3, cfg.Engine.MaxRewriteAttempts)
	assert.Equal(t, 7.0, cfg.Engine.CriticMinScore)
	assert.Equal(t, 6.5, cfg.Engine.CriticForceApproveFloor)
	assert.Equal(t, 4096, cfg.Engine.WriterMaxTokens)
	assert.Equal(t, 0.85, cfg.Engine.WriterTemperature)
	assert.Equal(t, 60*time.Second, cfg.Engine.AgentTimeout)
	assert.Equal(t, 4, cfg.Engine.EmbeddingWorkers)
	assert.Equal(t, 500, cfg.Engine.PromptGuard.MaxLength)
	assert.Equal(t, 0.05, cfg.Engine.CRNG.PityBaseChance)
	assert.Equal(t, 15, cfg.Engine.Fate.StartDecayChapter)
	assert.Equal(t, 3, cfg.Engine.Archetype.MinRank)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("MODEL_WRITER", "gpt-4.1")
	t.Setenv("ENGINE_MAX_REWRITE_ATTEMPTS", "5")
	t.Setenv("ENGINE_AGENT_TIMEOUT", "15s")
	t.Setenv("ENGINE_PROMPT_GUARD_MAX_LENGTH", "300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4.1", cfg.Models.Writer)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Planner)
	assert.Equal(t, 5, cfg.Engine.MaxRewriteAttempts)
	assert.Equal(t, 15*time.Second, cfg.Engine.AgentTimeout)
	assert.Equal(t, 300, cfg.Engine.PromptGuard.MaxLength)
}

func TestLoad_TunablesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  critic: gemini-2.5-flash
engine:
  critic_min_score: 8
  agent_timeout: 30s
  crng:
    pity_increment: 0.03
  fate:
    start_decay_chapter: 20
`), 0o600))
	t.Setenv("ENGINE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", cfg.Models.Critic)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Writer, "untouched keys keep their value")
	assert.Equal(t, 8.0, cfg.Engine.CriticMinScore)
	assert.Equal(t, 30*time.Second, cfg.Engine.AgentTimeout)
	assert.Equal(t, 0.03, cfg.Engine.CRNG.PityIncrement)
	assert.Equal(t, 0.05, cfg.Engine.CRNG.PityBaseChance)
	assert.Equal(t, 20, cfg.Engine.Fate.StartDecayChapter)
	assert.Equal(t, 70.0, cfg.Engine.Fate.FullThreshold)
}

func TestLoad_BadTunablesFile(t *testing.T) {
	t.Setenv("ENGINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.LLMProvider = "venice" }, "unknown LLM provider"},
		{"missing key in production", func(c *Config) { c.Environment = "production" }, "ANTHROPIC_API_KEY"},
		{"mock in production", func(c *Config) {
			c.Environment = "production"
			c.LLMProvider = ProviderMock
		}, "mock provider"},
		{"rewrite attempts", func(c *Config) { c.Engine.MaxRewriteAttempts = 0 }, "max_rewrite_attempts"},
		{"force floor above min", func(c *Config) { c.Engine.CriticForceApproveFloor = 7.5 }, "critic_force_approve_floor"},
		{"fate order", func(c *Config) { c.Engine.Fate.PartialThreshold = 80 }, "strictly descending"},
		{"embedding provider", func(c *Config) { c.EmbeddingProvider = "cohere" }, "embedding provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", "")
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Environment = "production"
	cfg.AnthropicAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}
