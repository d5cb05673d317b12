package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/rpgai/pkg/log"
)

type MemoryConfig struct {
	Enabled        bool          `env:"RPGAI_MEMORY_ENABLED" envDefault:"true"`
	CharacterLimit int           `env:"RPGAI_MEMORY_CHARACTER_LIMIT" envDefault:"5"`
	GlobalLimit    int           `env:"RPGAI_MEMORY_GLOBAL_LIMIT" envDefault:"3"`
	EmbeddingModel string        `env:"RPGAI_MEMORY_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	ExtractBackend string        `env:"RPGAI_MEMORY_EXTRACT_BACKEND"`
	ExtractModel   string        `env:"RPGAI_MEMORY_EXTRACT_MODEL"`
	Workers        int           `env:"RPGAI_MEMORY_WORKERS" envDefault:"2"`
	QueueSize      int           `env:"RPGAI_MEMORY_QUEUE_SIZE" envDefault:"64"`
	ExtractTimeout time.Duration `env:"RPGAI_MEMORY_EXTRACT_TIMEOUT" envDefault:"30s"`
	RetryAttempts  int           `env:"RPGAI_MEMORY_RETRY_ATTEMPTS" envDefault:"2"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}
