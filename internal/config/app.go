package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/rpgai/pkg/log"
)

type AppConfig struct {
	// Conversation window and prompt bounds
	HistoryLimit      int `env:"RPGAI_HISTORY_LIMIT" envDefault:"5"`
	DocumentCharLimit int `env:"RPGAI_DOCUMENT_CHAR_LIMIT" envDefault:"2000"`
	MaxTokens         int `env:"RPGAI_MAX_TOKENS" envDefault:"500"`

	PersonaCacheTTL time.Duration `env:"RPGAI_PERSONA_CACHE_TTL" envDefault:"5m"`
	DefaultOwnerID  string        `env:"RPGAI_OWNER_ID" envDefault:"local"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return GetRuntimePath()
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(GetRuntimePath(), "rpgai.db")
}

func (c AppConfig) GetVectorPath() string {
	return filepath.Join(GetRuntimePath(), "vectors")
}

func (c AppConfig) GetAudioCachePath() string {
	return filepath.Join(GetRuntimePath(), "audio_cache")
}
