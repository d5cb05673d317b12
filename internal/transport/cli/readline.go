package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/turn"
	"github.com/sandevgo/rpgai/pkg/log"
)

const defaultSessionID = "cli-local"

type ReadLine struct {
	turns    core.TurnSender
	commands core.CmdRouter
	sessions core.SessionStore
	rl       *readline.Instance
}

// NewReadLine opens an interactive prompt. personaID, when set, overrides
// the session's default persona.
func NewReadLine(cfg *config.AppConfig, turns core.TurnSender, commands core.CmdRouter, sessions core.SessionStore, personaID string) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.GetRuntimePath(), "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	if personaID != "" {
		sessions.SetPersona(defaultSessionID, personaID)
	}

	return &ReadLine{
		turns:    turns,
		commands: commands,
		sessions: sessions,
		rl:       rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("ReadLine chat started. Type /help for commands, 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if out, ok := r.commands.Execute(ctx, defaultSessionID, line); ok {
			fmt.Fprintln(r.rl.Stdout(), strings.TrimSpace(out))
			continue
		}

		r.say(ctx, line)
	}
}

func (r *ReadLine) say(ctx context.Context, line string) {
	out := r.rl.Stdout()
	sess := r.sessions.Get(defaultSessionID)
	if sess.PersonaID == "" {
		fmt.Fprintln(out, "[System] No persona selected. Use /personas and /persona <id>.")
		return
	}

	res, err := r.turns.SendTurn(ctx, core.TurnRequest{
		PersonaID: sess.PersonaID,
		UserID:    sess.UserID,
		Text:      line,
		Voice:     sess.Voice,
	})
	if err != nil {
		if errors.Is(err, turn.ErrEmptyMessage) {
			return
		}
		log.FromCtx(ctx).Error().Err(err).Msg("turn failed")
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(out, "%s\n", res.Reply)
	fmt.Fprintf(out, "\033[38;5;240m[%s/%s, %d tokens]\033[0m\n", res.Backend, res.Model, res.Usage.TotalTokens)
	switch {
	case res.AudioPending:
		fmt.Fprintf(out, "\033[38;5;240m[Audio] rendering to %s\033[0m\n", res.AudioPath)
	case res.AudioPath != "":
		fmt.Fprintf(out, "\033[38;5;240m[Audio] %s\033[0m\n", res.AudioPath)
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
