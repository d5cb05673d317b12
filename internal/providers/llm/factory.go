package llm

import (
	"context"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
)

// NewRouterFromConfig registers every backend that has its credentials or
// URL configured. Missing ones are skipped, not errors.
func NewRouterFromConfig(ctx context.Context, cfg *config.BackendsConfig, maxTokens int) *Router {
	var backends []core.Backend
	for _, name := range config.BackendOrder {
		if !cfg.Configured(name) {
			log.FromCtx(ctx).Debug().Str("backend", name).Msg("backend not configured")
			continue
		}

		switch name {
		case config.BackendOllama:
			backends = append(backends, NewOllama(cfg.Ollama))
		case config.BackendOpenRouter:
			backends = append(backends, NewOpenRouter(cfg.OpenRouter))
		case config.BackendOpenAI:
			backends = append(backends, NewOpenAI(cfg.OpenAI))
		case config.BackendAnthropic:
			backends = append(backends, NewAnthropic(cfg.Anthropic))
		}
	}

	r := NewRouter(cfg.Default, maxTokens, backends...)
	log.FromCtx(ctx).Info().
		Strs("backends", r.Names()).
		Str("default", cfg.Default).
		Msg("backend router ready")
	return r
}
