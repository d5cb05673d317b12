package installer

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/rpgai/internal/config"
	rpgenv "github.com/sandevgo/rpgai/pkg/env"
)

// InstallState collects the answers as the config structs the app parses,
// so the rendered .env round-trips through the same tags.
type InstallState struct {
	Backends config.BackendsConfig
	Memory   config.MemoryConfig
	Voice    config.VoiceConfig
	Telegram config.TelegramConfig
}

func NewInstallState() (*InstallState, error) {
	s := &InstallState{}
	defaults := env.Options{Environment: map[string]string{}}
	for _, c := range []any{&s.Backends, &s.Memory, &s.Voice} {
		if err := env.ParseWithOptions(c, defaults); err != nil {
			return nil, fmt.Errorf("failed to load config defaults: %w", err)
		}
	}
	return s, nil
}

// SetModel stores model on the config of the default backend.
func (s *InstallState) SetModel(model string) {
	switch s.Backends.Default {
	case config.BackendOllama:
		s.Backends.Ollama.Model = model
	case config.BackendOpenRouter:
		s.Backends.OpenRouter.Model = model
	case config.BackendOpenAI:
		s.Backends.OpenAI.Model = model
	case config.BackendAnthropic:
		s.Backends.Anthropic.Model = model
	}
}

func (s *InstallState) SetAPIKey(key string) {
	switch s.Backends.Default {
	case config.BackendOpenRouter:
		s.Backends.OpenRouter.APIKey = key
	case config.BackendOpenAI:
		s.Backends.OpenAI.APIKey = key
	case config.BackendAnthropic:
		s.Backends.Anthropic.APIKey = key
	}
}

// Render returns the .env content. Telegram settings are written only when
// a token was given.
func (s *InstallState) Render() (string, error) {
	configs := []any{&s.Backends, &s.Memory, &s.Voice}
	if s.Telegram.Token != "" {
		configs = append(configs, &s.Telegram)
	}
	return rpgenv.MarshalEnv(configs...)
}
