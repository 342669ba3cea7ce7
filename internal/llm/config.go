package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds LLM provider configuration for coaching notes.
type Config struct {
	// Provider selects the backend. Empty disables LLM coaching.
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Retry      RetryConfig      `yaml:"retry"`

	// Timeout bounds one Generate call including retries.
	Timeout time.Duration `yaml:"timeout"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // any OpenAI-compatible endpoint
}

type GeminiConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns a Config with no provider selected and the default
// model of every backend filled in.
func DefaultConfig() Config {
	return Config{
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-001"},
		Retry:      RetryConfig{Attempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second},
		Timeout:    20 * time.Second,
	}
}

// ApplyEnv overrides cfg from ADAPTEST_* variables. With no provider
// selected, the first vendor key variable found picks one.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Provider, "ADAPTEST_LLM_PROVIDER")
	set(&cfg.Anthropic.APIKey, "ADAPTEST_ANTHROPIC_API_KEY")
	set(&cfg.Anthropic.Model, "ADAPTEST_ANTHROPIC_MODEL")
	set(&cfg.OpenAI.APIKey, "ADAPTEST_OPENAI_API_KEY")
	set(&cfg.OpenAI.Model, "ADAPTEST_OPENAI_MODEL")
	set(&cfg.OpenAI.BaseURL, "ADAPTEST_OPENAI_BASE_URL")
	set(&cfg.Gemini.APIKey, "ADAPTEST_GEMINI_API_KEY")
	set(&cfg.Gemini.Model, "ADAPTEST_GEMINI_MODEL")
	set(&cfg.OpenRouter.APIKey, "ADAPTEST_OPENROUTER_API_KEY")
	set(&cfg.OpenRouter.Model, "ADAPTEST_OPENROUTER_MODEL")

	if cfg.Provider == "" {
		discover(cfg)
	}
}

// discover picks the first backend whose vendor key variable is set, in
// the order Gemini, OpenAI, Anthropic, OpenRouter.
func discover(cfg *Config) {
	switch {
	case os.Getenv("GEMINI_API_KEY") != "":
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	case os.Getenv("OPENAI_API_KEY") != "":
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case os.Getenv("OPENROUTER_API_KEY") != "":
		cfg.Provider = ProviderOpenRouter
		cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
}

// Enabled reports whether a provider is selected.
func (c Config) Enabled() bool { return c.Provider != "" }

// Validate checks that the selected provider has its API key.
func (c Config) Validate() error {
	missing := func(env string) error {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	switch c.Provider {
	case "", ProviderMock:
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return missing("ADAPTEST_ANTHROPIC_API_KEY")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("ADAPTEST_OPENAI_API_KEY")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return missing("ADAPTEST_GEMINI_API_KEY")
		}
	case ProviderOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return missing("ADAPTEST_OPENROUTER_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
