package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/turn"
	"github.com/sandevgo/rpgai/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const (
	baseContextKey = "base_context"
	maxVoiceBytes  = 10 << 20
)

type sessionStore interface {
	core.SessionStore
	SetUser(sessionID, userID string)
}

type Bot struct {
	bot         *tele.Bot
	sender      *sender
	turns       core.TurnSender
	commands    core.CmdRouter
	sessions    sessionStore
	transcriber core.Transcriber
	ownerID     int64
}

// NewBot wires the telegram long poller. transcriber may be nil, voice
// notes are then refused.
func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	turns core.TurnSender,
	commands core.CmdRouter,
	sessions sessionStore,
	transcriber core.Transcriber,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:         b,
		sender:      newSender(b),
		turns:       turns,
		commands:    commands,
		sessions:    sessions,
		transcriber: transcriber,
		ownerID:     cfg.OwnerID,
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != bot.ownerID {
				return nil
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleText)
	b.Handle(tele.OnVoice, bot.handleVoice)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) session(c tele.Context) string {
	id := sessionID(c.Chat().ID)
	b.sessions.SetUser(id, fmt.Sprintf("telegram-%d", c.Sender().ID))
	return id
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("telegram-chat-%d", chatID)
}

func (b *Bot) handleText(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	sid := b.session(c)

	if out, ok := b.commands.Execute(ctx, sid, c.Text()); ok {
		return b.sender.sendMarkdown(ctx, c.Chat(), out, false)
	}
	return b.respond(ctx, c, sid, c.Text())
}

func (b *Bot) handleVoice(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)
	sid := b.session(c)

	if b.transcriber == nil {
		return c.Send("Voice notes are disabled.")
	}

	voice := c.Message().Voice
	if voice.FileSize > maxVoiceBytes {
		return c.Send("Voice note is too long.")
	}

	_ = c.Notify(tele.RecordingAudio)
	audio, err := b.download(&voice.File)
	if err != nil {
		logger.Error().Err(err).Msg("failed to download voice note")
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	text, err := b.transcriber.Transcribe(ctx, audio, "ogg")
	if err != nil {
		logger.Warn().Err(err).Msg("transcription failed")
		return c.Send("Sorry, I could not understand that voice note.")
	}
	if strings.TrimSpace(text) == "" {
		return c.Send("Sorry, I could not hear anything in that voice note.")
	}

	if err := b.sender.sendMarkdown(ctx, c.Chat(), "🎙 _"+text+"_", true); err != nil {
		logger.Warn().Err(err).Msg("failed to echo transcript")
	}
	return b.respond(ctx, c, sid, text)
}

func (b *Bot) download(f *tele.File) ([]byte, error) {
	rc, err := b.bot.File(f)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxVoiceBytes))
}

func (b *Bot) respond(ctx context.Context, c tele.Context, sid, text string) error {
	logger := log.FromCtx(ctx)
	sess := b.sessions.Get(sid)
	if sess.PersonaID == "" {
		return c.Send("No persona selected, pick one with /personas and /persona <id>.")
	}

	_ = c.Notify(tele.Typing)

	res, err := b.turns.SendTurn(ctx, core.TurnRequest{
		PersonaID: sess.PersonaID,
		UserID:    sess.UserID,
		Text:      text,
		Voice:     sess.Voice,
	})
	if err != nil {
		if errors.Is(err, turn.ErrEmptyMessage) {
			return nil
		}
		logger.Error().Err(err).Msg("turn failed")
		return c.Send(userError(err))
	}

	if err := b.sender.sendMarkdown(ctx, c.Chat(), res.Reply, false); err != nil {
		return err
	}

	if res.AudioPath != "" && !res.AudioPending {
		_ = c.Notify(tele.UploadingAudio)
		if err := b.sender.sendAudio(ctx, c.Chat(), res.AudioPath); err != nil {
			logger.Warn().Err(err).Msg("failed to send audio reply")
		}
	}
	return nil
}

func userError(err error) string {
	switch {
	case errors.Is(err, core.ErrPersonaNotFound):
		return "That persona no longer exists, pick another with /personas."
	case errors.Is(err, core.ErrNoBackendsAvailable), errors.Is(err, core.ErrGenerationFailed):
		return "No language model answered, try again in a moment."
	default:
		return fmt.Sprintf("error: %v", err)
	}
}
