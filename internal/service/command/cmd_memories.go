package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sandevgo/rpgai/internal/core"
)

type MemoriesCommand struct {
	sessions  core.SessionStore
	memory    memorySummarizer
	formatter *ResponseFormatter
}

func NewMemoriesCommand(sessions core.SessionStore, memory memorySummarizer) *MemoriesCommand {
	return &MemoriesCommand{
		sessions:  sessions,
		memory:    memory,
		formatter: NewResponseFormatter(),
	}
}

func (c *MemoriesCommand) Name() string {
	return "memories"
}

func (c *MemoriesCommand) Description() string {
	return "Show what the persona remembers about you"
}

func (c *MemoriesCommand) Execute(ctx context.Context, sessionID string, _ []string) (string, error) {
	sess := c.sessions.Get(sessionID)
	if sess.PersonaID == "" {
		return "", errors.New("no persona selected")
	}

	recs, err := c.memory.Summary(ctx, core.CharacterScope(sess.PersonaID, sess.UserID))
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return c.formatter.Info("No memories yet"), nil
	}

	items := make([]string, 0, len(recs))
	for _, r := range recs {
		item := r.Text
		if r.Category != "" {
			item += " _(" + r.Category + ")_"
		}
		items = append(items, item)
	}
	return c.formatter.Combine(
		c.formatter.Info(fmt.Sprintf("Memories (%d)", len(recs))),
		c.formatter.List(items),
	), nil
}

type HistoryCommand struct {
	sessions  core.SessionStore
	history   historySource
	formatter *ResponseFormatter
}

const defaultHistoryLines = 10

func NewHistoryCommand(sessions core.SessionStore, history historySource) *HistoryCommand {
	return &HistoryCommand{
		sessions:  sessions,
		history:   history,
		formatter: NewResponseFormatter(),
	}
}

func (c *HistoryCommand) Name() string {
	return "history"
}

func (c *HistoryCommand) Description() string {
	return "Show recent messages with the active persona"
}

func (c *HistoryCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	sess := c.sessions.Get(sessionID)
	if sess.PersonaID == "" {
		return "", errors.New("no persona selected")
	}

	limit := defaultHistoryLines
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return c.formatter.Usage("/history [count]"), nil
		}
		limit = n
	}

	msgs, err := c.history.History(ctx, sess.PersonaID, sess.UserID, limit)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}
	if len(msgs) == 0 {
		return c.formatter.Info("No messages yet"), nil
	}

	items := make([]string, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, fmt.Sprintf("**%s** %s: %s", m.CreatedAt.Format("01-02 15:04"), m.Role, m.Content))
	}
	return c.formatter.Combine(
		c.formatter.Info("History"),
		c.formatter.List(items),
	), nil
}
