package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/rpgai/pkg/log"
)

const (
	BackendOllama     = "ollama"
	BackendOpenRouter = "openrouter"
	BackendOpenAI     = "openai"
	BackendAnthropic  = "anthropic"
)

// BackendOrder is the registration order; the first configured entry is
// the fallback target.
var BackendOrder = []string{BackendOllama, BackendOpenRouter, BackendOpenAI, BackendAnthropic}

type OllamaConfig struct {
	URL     string        `env:"URL" envDefault:"http://localhost:11434"`
	Model   string        `env:"MODEL" envDefault:"llama3.1"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// Disabled drops the local backend even though it needs no credentials.
	Disabled bool `env:"DISABLED"`
}

type OpenRouterConfig struct {
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL" envDefault:"meta-llama/llama-3.1-8b-instruct:free"`
	BaseURL string        `env:"BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Referer string        `env:"REFERER" envDefault:"https://github.com/sandevgo/rpgai"`
	Title   string        `env:"TITLE" envDefault:"rpgai"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type OpenAIConfig struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL"`
	Model   string        `env:"MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type AnthropicConfig struct {
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL" envDefault:"claude-3-5-haiku-latest"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type BackendsConfig struct {
	Default    string           `env:"RPGAI_DEFAULT_BACKEND" envDefault:"ollama"`
	Ollama     OllamaConfig     `envPrefix:"RPGAI_OLLAMA_"`
	OpenRouter OpenRouterConfig `envPrefix:"RPGAI_OPENROUTER_"`
	OpenAI     OpenAIConfig     `envPrefix:"RPGAI_OPENAI_"`
	Anthropic  AnthropicConfig  `envPrefix:"RPGAI_ANTHROPIC_"`
}

func NewBackendsConfig(ctx context.Context) *BackendsConfig {
	c := &BackendsConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Backends config")
	}
	if err := c.Validate(); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("invalid Backends config")
	}
	return c
}

func (c *BackendsConfig) Validate() error {
	known := false
	for _, name := range BackendOrder {
		if name == c.Default {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown default backend %q", c.Default)
	}

	timeouts := map[string]time.Duration{
		BackendOllama:     c.Ollama.Timeout,
		BackendOpenRouter: c.OpenRouter.Timeout,
		BackendOpenAI:     c.OpenAI.Timeout,
		BackendAnthropic:  c.Anthropic.Timeout,
	}
	for name, t := range timeouts {
		if t <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %s", name, t)
		}
	}
	return nil
}

// Configured reports whether a backend has what it needs to be registered.
func (c *BackendsConfig) Configured(name string) bool {
	switch name {
	case BackendOllama:
		return !c.Ollama.Disabled && c.Ollama.URL != ""
	case BackendOpenRouter:
		return c.OpenRouter.APIKey != ""
	case BackendOpenAI:
		return c.OpenAI.APIKey != ""
	case BackendAnthropic:
		return c.Anthropic.APIKey != ""
	default:
		return false
	}
}
