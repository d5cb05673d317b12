package llm

import (
	"github.com/sandevgo/rpgai/internal/config"
)

func NewOpenRouter(cfg config.OpenRouterConfig) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		Name:    config.BackendOpenRouter,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		ExtraHeaders: map[string]string{
			"HTTP-Referer": cfg.Referer,
			"X-Title":      cfg.Title,
		},
	})
}

func NewOpenAI(cfg config.OpenAIConfig) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		Name:    config.BackendOpenAI,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
}
