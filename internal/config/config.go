package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/isekai-engine/pkg/archetype"
	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/fate"
)

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

type Config struct {
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level

	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`

	// EmbeddingProvider is "gemini" or "hash".
	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"gemini"`

	RedisURL     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"./data/engine.db"`
	ContentDir   string `env:"CONTENT_DIR" envDefault:"./data/content"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TunablesFile string `env:"ENGINE_CONFIG"`
	WorkerID     string `env:"WORKER_ID"`

	Models Models `envPrefix:"MODEL_"`
	Engine Engine `envPrefix:"ENGINE_"`
}

// Models names the model used by each agent.
type Models struct {
	Parser     string `env:"PARSER" envDefault:"claude-haiku-4-5" yaml:"parser"`
	Planner    string `env:"PLANNER" envDefault:"claude-sonnet-4-5" yaml:"planner"`
	Simulator  string `env:"SIMULATOR" envDefault:"claude-haiku-4-5" yaml:"simulator"`
	Writer     string `env:"WRITER" envDefault:"claude-sonnet-4-5" yaml:"writer"`
	Critic     string `env:"CRITIC" envDefault:"claude-haiku-4-5" yaml:"critic"`
	Onboarding string `env:"ONBOARDING" envDefault:"claude-sonnet-4-5" yaml:"onboarding"`
	Embedding  string `env:"EMBEDDING" envDefault:"text-embedding-004" yaml:"embedding"`
}

// Engine holds the pipeline tunables. Nested engine configs take their
// defaults from their packages and are overridden by the tunables file.
type Engine struct {
	MaxRewriteAttempts      int           `env:"MAX_REWRITE_ATTEMPTS" envDefault:"3" yaml:"max_rewrite_attempts"`
	CriticMinScore          float64       `env:"CRITIC_MIN_SCORE" envDefault:"7.0" yaml:"critic_min_score"`
	CriticForceApproveFloor float64       `env:"CRITIC_FORCE_APPROVE_FLOOR" envDefault:"6.5" yaml:"critic_force_approve_floor"`
	WriterMaxTokens         int           `env:"WRITER_MAX_TOKENS" envDefault:"4096" yaml:"writer_max_tokens"`
	WriterTemperature       float64       `env:"WRITER_TEMPERATURE" envDefault:"0.85" yaml:"writer_temperature"`
	AgentTimeout            time.Duration `env:"AGENT_TIMEOUT" envDefault:"60s" yaml:"agent_timeout"`
	EmbeddingWorkers        int           `env:"EMBEDDING_WORKERS" envDefault:"4" yaml:"embedding_workers"`
	LedgerPromptChars       int           `env:"LEDGER_PROMPT_CHARS" envDefault:"1500" yaml:"ledger_prompt_chars"`
	MaxTurnsPerDay          int           `env:"MAX_TURNS_PER_DAY" envDefault:"0" yaml:"max_turns_per_day"`

	PromptGuard PromptGuard          `yaml:"prompt_guard"`
	CRNG        crng.Config          `yaml:"crng"`
	Fate        fate.Config          `yaml:"fate"`
	Archetype   archetype.Thresholds `yaml:"archetype"`
}

type PromptGuard struct {
	MaxLength int `env:"PROMPT_GUARD_MAX_LENGTH" envDefault:"500" yaml:"max_length"`
}

// Default returns a config with every engine default filled in. The scalar
// defaults mirror the envDefault tags so code that skips Load sees the same values.
func Default() *Config {
	return &Config{
		LLMProvider:       ProviderMock,
		EmbeddingProvider: "hash",
		Engine: Engine{
			MaxRewriteAttempts:      3,
			CriticMinScore:          7.0,
			CriticForceApproveFloor: 6.5,
			WriterMaxTokens:         4096,
			WriterTemperature:       0.85,
			AgentTimeout:            60 * time.Second,
			EmbeddingWorkers:        4,
			LedgerPromptChars:       1500,
			PromptGuard:             PromptGuard{MaxLength: 500},
			CRNG:                    crng.DefaultConfig(),
			Fate:                    fate.DefaultConfig(),
			Archetype:               archetype.DefaultThresholds(),
		},
	}
}

// Load reads the environment, then overlays the optional tunables file.
func Load() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TunablesFile != "" {
		if err := cfg.LoadTunables(cfg.TunablesFile); err != nil {
			return nil, err
		}
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	return cfg, nil
}

// tunables is the shape of the YAML overlay file.
type tunables struct {
	Models *Models `yaml:"models"`
	Engine *Engine `yaml:"engine"`
}

// LoadTunables overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadTunables(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tunables file: %w", err)
	}
	overlay := tunables{Models: &c.Models, Engine: &c.Engine}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse tunables file %s: %w", path, err)
	}
	return nil
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks the configuration. Any error is fatal at startup.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LLMProvider) {
	case ProviderAnthropic:
		if c.IsProduction() && c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	case ProviderOpenAI:
		if c.IsProduction() && c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderGemini:
		if c.IsProduction() && c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderMock:
		if c.IsProduction() {
			errs = append(errs, errors.New("the mock provider cannot run in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM provider %q", c.LLMProvider))
	}

	switch c.EmbeddingProvider {
	case "gemini", "hash":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.EmbeddingProvider))
	}

	e := c.Engine
	if e.MaxRewriteAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_rewrite_attempts must be at least 1, got %d", e.MaxRewriteAttempts))
	}
	if e.CriticForceApproveFloor > e.CriticMinScore {
		errs = append(errs, fmt.Errorf("critic_force_approve_floor (%.1f) exceeds critic_min_score (%.1f)",
			e.CriticForceApproveFloor, e.CriticMinScore))
	}
	if e.AgentTimeout <= 0 {
		errs = append(errs, errors.New("agent_timeout must be positive"))
	}
	if e.EmbeddingWorkers < 1 {
		errs = append(errs, errors.New("embedding_workers must be at least 1"))
	}
	if e.PromptGuard.MaxLength < 1 {
		errs = append(errs, errors.New("prompt_guard.max_length must be positive"))
	}
	f := e.Fate
	if !(f.FullThreshold > f.PartialThreshold && f.PartialThreshold > f.MinimalThreshold) {
		errs = append(errs, fmt.Errorf("fate thresholds must be strictly descending, got %.0f/%.0f/%.0f",
			f.FullThreshold, f.PartialThreshold, f.MinimalThreshold))
	}
	return errors.Join(errs...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
