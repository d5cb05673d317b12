package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/prompt"
	"github.com/sandevgo/rpgai/pkg/conv"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/sandevgo/rpgai/pkg/srv"
	"github.com/sandevgo/rpgai/pkg/tokens"
)

var ErrEmptyMessage = errors.New("empty message")

type State string

const (
	StateIdle           State = "idle"
	StateMemoryLookup   State = "memory_lookup"
	StateContextBuild   State = "context_build"
	StateGenerating     State = "generating"
	StateCommitted      State = "committed"
	StateAudioSynthesis State = "audio_synthesis"
	StateMemoryExtract  State = "memory_extract"
)

// Observer receives every state a turn passes through.
type Observer func(ctx context.Context, s State)

// Scheduler runs work off the response path.
type Scheduler interface {
	Submit(ctx context.Context, name string, timeout time.Duration, fn srv.Job) error
}

type Options struct {
	HistoryLimit   int
	CharacterLimit int
	GlobalLimit    int
	MaxTokens      int
	AudioTimeout   time.Duration
	DetachedAudio  bool
	ExtractTimeout time.Duration
}

func NewOptions(app *config.AppConfig, mem *config.MemoryConfig, voice *config.VoiceConfig) Options {
	return Options{
		HistoryLimit:   app.HistoryLimit,
		CharacterLimit: mem.CharacterLimit,
		GlobalLimit:    mem.GlobalLimit,
		MaxTokens:      app.MaxTokens,
		AudioTimeout:   voice.Timeout,
		DetachedAudio:  voice.Detached,
		ExtractTimeout: mem.ExtractTimeout,
	}
}

type Deps struct {
	Personas      core.PersonaRepository
	Documents     core.DocumentRepository
	Conversations core.ConversationRepository
	Memory        core.MemoryGateway
	Generator     core.Generator
	Assembler     *prompt.Assembler
	// Synthesizer is nil when voice is disabled.
	Synthesizer core.Synthesizer
	Jobs        Scheduler
}

type Orchestrator struct {
	Deps
	opts     Options
	observer Observer
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	return &Orchestrator{
		Deps: deps,
		opts: opts,
	}
}

// SetObserver installs a hook called on every state transition.
func (o *Orchestrator) SetObserver(fn Observer) {
	o.observer = fn
}

func (o *Orchestrator) enter(ctx context.Context, s State) {
	log.FromCtx(ctx).Trace().Str("state", string(s)).Msg("turn state")
	if o.observer != nil {
		o.observer(ctx, s)
	}
}

// SendTurn runs one exchange. Only persona lookup, generation and the
// commit can fail it; memory and audio problems degrade the reply.
func (o *Orchestrator) SendTurn(ctx context.Context, req core.TurnRequest) (*core.TurnResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	ctx = log.WithFields(ctx, "persona", req.PersonaID, "user", req.UserID)
	logger := log.FromCtx(ctx)
	start := time.Now()
	defer o.enter(ctx, StateIdle)

	persona, err := o.Personas.GetPersona(ctx, req.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load persona: %w", err)
	}

	docs, err := o.Documents.GetDocuments(ctx, persona.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("documents unavailable, continuing without")
		docs = nil
	}

	// Another persona speaking is remembered as its own subject.
	subject := req.UserID
	var senderName string
	if req.SenderPersonaID != "" {
		if sender, err := o.Personas.GetPersona(ctx, req.SenderPersonaID); err == nil {
			subject = "persona_" + req.SenderPersonaID
			senderName = sender.Name
		} else {
			logger.Warn().Err(err).Str("sender", req.SenderPersonaID).Msg("sender persona not found")
		}
	}

	conversation, err := o.Conversations.GetOrCreateConversation(ctx, persona.ID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	history, err := o.Conversations.RecentMessages(ctx, conversation.ID, o.opts.HistoryLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("history unavailable, continuing without")
		history = nil
	}

	o.enter(ctx, StateMemoryLookup)
	charScope := core.CharacterScope(persona.ID, subject)
	charMems, globalMems := o.recall(ctx, charScope, core.UserScope(subject), text)

	o.enter(ctx, StateContextBuild)
	messages := o.Assembler.Build(prompt.Input{
		SystemPrompt:      persona.SystemPrompt,
		Documents:         docs,
		CharacterMemories: charMems,
		GlobalMemories:    globalMems,
		Situation:         req.Situation,
		History:           history,
		SenderName:        senderName,
		UserText:          text,
	})
	if ev := logger.Debug(); ev.Enabled() {
		ev.Int("character_memories", len(charMems)).
			Int("global_memories", len(globalMems)).
			Int("history", len(history)).
			Int("prompt_tokens", promptTokens(messages)).
			Msg("context assembled")
	}

	o.enter(ctx, StateGenerating)
	res, err := o.Generator.Generate(ctx, core.GenerateRequest{
		Messages:    messages,
		Backend:     persona.Backend,
		Model:       persona.Model,
		Temperature: persona.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := core.StoredMessage{Role: core.RoleUser, Content: text, CreatedAt: now}
	assistantMsg := core.StoredMessage{Role: core.RoleAssistant, Content: res.Content, CreatedAt: now}
	if err := o.Conversations.CommitTurn(ctx, conversation.ID, userMsg, assistantMsg, now); err != nil {
		if !errors.Is(err, core.ErrCommitFailed) {
			err = fmt.Errorf("%w: %w", core.ErrCommitFailed, err)
		}
		logger.Error().Err(err).Msg("turn commit failed")
		return nil, err
	}
	o.enter(ctx, StateCommitted)

	result := &core.TurnResult{
		ConversationID: conversation.ID,
		Reply:          res.Content,
		Backend:        res.Backend,
		Model:          res.Model,
		Usage:          res.Usage,
	}

	if req.Voice && o.Synthesizer != nil {
		o.synthesize(ctx, persona.Voice, res.Content, result)
	}

	o.enter(ctx, StateMemoryExtract)
	o.scheduleExtraction(ctx, charScope, []core.Message{
		core.UserMessage(text),
		core.AssistantMessage(res.Content),
	}, map[string]string{
		"conversation_id": conversation.ID,
		"persona_id":      persona.ID,
	})

	logger.Info().
		Str("backend", res.Backend).
		Str("model", res.Model).
		Int("completion_tokens", res.Usage.CompletionTokens).
		Dur("took", time.Since(start)).
		Msg("turn completed")
	return result, nil
}

// recall queries both scopes concurrently; results are kept by scope,
// never by arrival order.
func (o *Orchestrator) recall(ctx context.Context, charScope, userScope core.Scope, query string) (charMems, globalMems []core.MemoryRecord) {
	if !o.memoryEnabled() {
		return nil, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		charMems = o.Memory.Recall(ctx, charScope, query, o.opts.CharacterLimit)
	}()
	go func() {
		defer wg.Done()
		globalMems = o.Memory.Recall(ctx, userScope, query, o.opts.GlobalLimit)
	}()
	wg.Wait()
	return charMems, globalMems
}

func (o *Orchestrator) synthesize(ctx context.Context, voice, reply string, result *core.TurnResult) {
	logger := log.FromCtx(ctx)

	speech := conv.MarkdownToSpeech(reply)
	if speech == "" {
		return
	}

	if o.opts.DetachedAudio && o.Jobs != nil {
		err := o.Jobs.Submit(ctx, "synthesize", o.opts.AudioTimeout, func(ctx context.Context) error {
			_, err := o.Synthesizer.Synthesize(ctx, speech, voice, true)
			return err
		})
		if err != nil {
			logger.Warn().Err(err).Msg("audio job not scheduled")
			return
		}
		result.AudioPath = o.Synthesizer.CachePath(speech, voice)
		result.AudioPending = true
		return
	}

	o.enter(ctx, StateAudioSynthesis)
	actx := ctx
	if o.opts.AudioTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.opts.AudioTimeout)
		defer cancel()
	}

	artifact, err := o.Synthesizer.Synthesize(actx, speech, voice, true)
	if err != nil {
		logger.Warn().Err(err).Msg("reply sent without audio")
		return
	}
	result.AudioPath = artifact.Path
}

func (o *Orchestrator) scheduleExtraction(ctx context.Context, scope core.Scope, exchange []core.Message, metadata map[string]string) {
	if !o.memoryEnabled() || o.Jobs == nil {
		return
	}

	err := o.Jobs.Submit(ctx, "memory-extract", o.opts.ExtractTimeout, func(ctx context.Context) error {
		return o.Memory.Remember(ctx, scope, exchange, metadata)
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("memory extraction not scheduled")
	}
}

// memoryEnabled is false for a missing gateway or one switched off by config.
func (o *Orchestrator) memoryEnabled() bool {
	if o.Memory == nil {
		return false
	}
	if g, ok := o.Memory.(interface{ Enabled() bool }); ok {
		return g.Enabled()
	}
	return true
}

func promptTokens(messages []core.Message) int {
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	return tokens.CountChat(contents...)
}
