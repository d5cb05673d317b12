package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/rpgai/pkg/log"
)

type VoiceConfig struct {
	Enabled       bool          `env:"RPGAI_VOICE_ENABLED" envDefault:"false"`
	PiperAddr     string        `env:"RPGAI_PIPER_ADDR" envDefault:"tcp://localhost:10200"`
	WhisperAddr   string        `env:"RPGAI_WHISPER_ADDR" envDefault:"tcp://localhost:10300"`
	DefaultVoice  string        `env:"RPGAI_PIPER_VOICE" envDefault:"en_US-lessac-medium"`
	Language      string        `env:"RPGAI_WHISPER_LANGUAGE"`
	CacheDir      string        `env:"RPGAI_AUDIO_CACHE_DIR"`
	Timeout       time.Duration `env:"RPGAI_VOICE_TIMEOUT" envDefault:"30s"`
	HealthTimeout time.Duration `env:"RPGAI_VOICE_HEALTH_TIMEOUT" envDefault:"5s"`
	FFmpegPath    string        `env:"RPGAI_FFMPEG_PATH" envDefault:"ffmpeg"`
	// Detached synthesizes after the reply is returned instead of inline.
	Detached bool `env:"RPGAI_VOICE_DETACHED" envDefault:"false"`
}

func NewVoiceConfig(ctx context.Context) *VoiceConfig {
	c := &VoiceConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Voice config")
	}
	return c
}
