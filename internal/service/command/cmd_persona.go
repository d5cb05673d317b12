package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/rpgai/internal/core"
)

type PersonaCommand struct {
	sessions  core.SessionStore
	personas  personaSource
	formatter *ResponseFormatter
}

func NewPersonaCommand(sessions core.SessionStore, personas personaSource) *PersonaCommand {
	return &PersonaCommand{
		sessions:  sessions,
		personas:  personas,
		formatter: NewResponseFormatter(),
	}
}

func (c *PersonaCommand) Name() string {
	return "persona"
}

func (c *PersonaCommand) Description() string {
	return "Show or switch the active persona"
}

func (c *PersonaCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	if len(args) == 0 {
		current := c.sessions.Get(sessionID).PersonaID
		if current == "" {
			return c.formatter.Combine(
				c.formatter.Info("No persona selected"),
				c.formatter.Usage("/persona [id]"),
				c.formatter.Tip("List personas with /personas"),
			), nil
		}

		p, err := c.personas.Get(ctx, current)
		if err != nil {
			return "", fmt.Errorf("failed to load persona: %w", err)
		}
		return c.describe(p), nil
	}

	p, err := c.personas.Get(ctx, args[0])
	if errors.Is(err, core.ErrPersonaNotFound) {
		return "", fmt.Errorf("persona %q not found", args[0])
	}
	if err != nil {
		return "", err
	}

	c.sessions.SetPersona(sessionID, p.ID)
	return c.formatter.Success(fmt.Sprintf("Now talking to %s", p.Name)), nil
}

func (c *PersonaCommand) describe(p *core.Persona) string {
	backend := p.Backend
	if backend == "" {
		backend = "default"
	}
	if p.Model != "" {
		backend += "/" + p.Model
	}

	sections := []string{
		c.formatter.Info(p.Name),
		c.formatter.Label("ID", p.ID),
		c.formatter.Label("Backend", backend),
		c.formatter.Label("Temperature", fmt.Sprintf("%.2f", p.Temperature)),
	}
	if p.Voice != "" {
		sections = append(sections, c.formatter.Label("Voice", p.Voice))
	}
	if p.Summary != "" {
		sections = append(sections, p.Summary)
	}
	return c.formatter.Combine(sections...)
}

type PersonasCommand struct {
	sessions  core.SessionStore
	personas  personaSource
	ownerID   string
	formatter *ResponseFormatter
}

func NewPersonasCommand(sessions core.SessionStore, personas personaSource, ownerID string) *PersonasCommand {
	return &PersonasCommand{
		sessions:  sessions,
		personas:  personas,
		ownerID:   ownerID,
		formatter: NewResponseFormatter(),
	}
}

func (c *PersonasCommand) Name() string {
	return "personas"
}

func (c *PersonasCommand) Description() string {
	return "List available personas"
}

func (c *PersonasCommand) Execute(ctx context.Context, sessionID string, _ []string) (string, error) {
	list, err := c.personas.List(ctx, c.ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to list personas: %w", err)
	}
	if len(list) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("No personas yet"),
			c.formatter.Tip("Create one with `rpgai persona create`"),
		), nil
	}

	current := c.sessions.Get(sessionID).PersonaID
	items := make([]string, 0, len(list))
	for _, p := range list {
		item := fmt.Sprintf("%s `%s`", p.Name, p.ID)
		if p.ID == current {
			item += " (active)"
		}
		items = append(items, item)
	}

	return c.formatter.Combine(
		c.formatter.Info("Personas"),
		c.formatter.List(items),
		c.formatter.Usage("/persona [id]"),
	), nil
}
