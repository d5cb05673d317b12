package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/llm"
	"github.com/sandevgo/rpgai/internal/providers/memstore"
	"github.com/sandevgo/rpgai/internal/service/command"
	"github.com/sandevgo/rpgai/internal/service/health"
	"github.com/sandevgo/rpgai/internal/service/memory"
	"github.com/sandevgo/rpgai/internal/service/persona"
	"github.com/sandevgo/rpgai/internal/service/prompt"
	"github.com/sandevgo/rpgai/internal/service/state"
	"github.com/sandevgo/rpgai/internal/service/turn"
	"github.com/sandevgo/rpgai/internal/service/voice"
	"github.com/sandevgo/rpgai/internal/storage/cache"
	"github.com/sandevgo/rpgai/internal/storage/sqlite"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/sandevgo/rpgai/pkg/srv"
)

// App holds every wired component. Optional parts (synthesizer,
// transcriber) are nil when disabled.
type App struct {
	Cfg      *config.AppConfig
	Backends *config.BackendsConfig
	Memory   *config.MemoryConfig
	Voice    *config.VoiceConfig

	Router        *llm.Router
	Personas      *persona.Service
	Conversations *sqlite.ConversationsRepo
	Gateway       *memory.Gateway
	Synthesizer   *voice.Synthesizer
	Transcriber   *voice.Transcriber
	Health        *health.Checker
	Pool          *srv.Pool
	Turns         *turn.Orchestrator

	cleanups []func() error
}

func NewApp(ctx context.Context) (*App, error) {
	logger := log.FromCtx(ctx)

	// 1. Configuration
	a := &App{
		Cfg:      config.NewAppConfig(ctx),
		Backends: config.NewBackendsConfig(ctx),
		Memory:   config.NewMemoryConfig(ctx),
		Voice:    config.NewVoiceConfig(ctx),
	}

	if err := os.MkdirAll(a.Cfg.GetRuntimePath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	// 2. Storage
	db, err := sqlite.NewDB(ctx, a.Cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.onClose(db.Close)

	personasCache, err := cache.NewPersonas(sqlite.NewPersonasRepo(db), sqlite.NewDocumentsRepo(db), a.Cfg.PersonaCacheTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize persona cache: %w", err)
	}
	a.onClose(func() error { personasCache.Close(); return nil })
	a.Conversations = sqlite.NewConversationsRepo(db)

	// 3. Backends
	a.Router = llm.NewRouterFromConfig(ctx, a.Backends, a.Cfg.MaxTokens)
	a.onClose(a.Router.Close)

	// 4. Memory
	engine, err := a.initMemoryEngine(ctx, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gateway = memory.NewGateway(a.Memory, engine)

	// 5. Audio
	if err := a.initVoice(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// 6. Services
	a.Personas = persona.NewService(personasCache, personasCache, a.Router, a.Cfg.DefaultOwnerID)
	a.Pool = srv.NewPool(a.Memory.Workers, a.Memory.QueueSize)

	var synth core.Synthesizer
	audio := map[string]health.Prober{}
	if a.Synthesizer != nil {
		synth = a.Synthesizer
		audio["piper"] = a.Synthesizer
	}
	if a.Transcriber != nil {
		audio["whisper"] = a.Transcriber
	}
	a.Health = health.NewChecker(a.Router, audio)

	a.Turns = turn.NewOrchestrator(turn.Deps{
		Personas:      personasCache,
		Documents:     personasCache,
		Conversations: a.Conversations,
		Memory:        a.Gateway,
		Generator:     a.Router,
		Assembler:     prompt.NewAssembler(a.Cfg.DocumentCharLimit, a.Cfg.HistoryLimit),
		Synthesizer:   synth,
		Jobs:          a.Pool,
	}, turn.NewOptions(a.Cfg, a.Memory, a.Voice))

	logger.Debug().
		Bool("memory", a.Gateway.Enabled()).
		Bool("voice", a.Synthesizer != nil).
		Msg("application wired")
	return a, nil
}

// initMemoryEngine returns a nil engine when memory is disabled, which
// turns the gateway into a no-op.
func (a *App) initMemoryEngine(ctx context.Context, db *sql.DB) (core.MemoryEngine, error) {
	if !a.Memory.Enabled {
		log.FromCtx(ctx).Info().Msg("memory disabled")
		return nil, nil
	}

	vectors, err := chromem.NewPersistentDB(a.Cfg.GetVectorPath(), true)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embed := memstore.NewOllamaEmbedder(a.Backends.Ollama.URL, a.Memory.EmbeddingModel)
	return memstore.NewEngine(vectors, embed, sqlite.NewMemoriesRepo(db), a.Router, memstore.Options{
		ExtractBackend: a.Memory.ExtractBackend,
		ExtractModel:   a.Memory.ExtractModel,
	}), nil
}

func (a *App) initVoice(ctx context.Context) error {
	if !a.Voice.Enabled {
		return nil
	}

	dir := a.Voice.CacheDir
	if dir == "" {
		dir = a.Cfg.GetAudioCachePath()
	}
	audioCache, err := voice.NewCache(dir)
	if err != nil {
		return fmt.Errorf("failed to initialize audio cache: %w", err)
	}

	a.Synthesizer = voice.NewSynthesizer(voice.SynthesizerConfig{
		Addr:          a.Voice.PiperAddr,
		DefaultVoice:  a.Voice.DefaultVoice,
		Timeout:       a.Voice.Timeout,
		HealthTimeout: a.Voice.HealthTimeout,
	}, audioCache)
	a.Transcriber = voice.NewTranscriber(voice.TranscriberConfig{
		Addr:          a.Voice.WhisperAddr,
		Language:      a.Voice.Language,
		Timeout:       a.Voice.Timeout,
		HealthTimeout: a.Voice.HealthTimeout,
	}, voice.FFmpeg{Path: a.Voice.FFmpegPath})

	log.FromCtx(ctx).Info().
		Str("piper", a.Voice.PiperAddr).
		Str("whisper", a.Voice.WhisperAddr).
		Str("cache", dir).
		Msg("audio pipeline enabled")
	return nil
}

// Commands builds the slash command router over sessions.
func (a *App) Commands(sessions *state.Sessions) *command.Router {
	return command.NewRouter(command.Deps{
		Sessions:       sessions,
		Personas:       a.Personas,
		Memory:         a.Gateway,
		History:        a.Conversations,
		Health:         a.Health,
		Models:         a.Router,
		OwnerID:        a.Cfg.DefaultOwnerID,
		VoiceAvailable: a.Synthesizer != nil,
	})
}

func (a *App) onClose(fn func() error) {
	a.cleanups = append(a.cleanups, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil && first == nil {
			first = err
		}
	}
	a.cleanups = nil
	return first
}

// mustApp wires the application or exits; CLI commands share it.
func mustApp(ctx context.Context) *App {
	a, err := NewApp(ctx)
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to initialize rpgai")
	}
	return a
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
