package command

import (
	"context"
	"errors"

	"github.com/sandevgo/rpgai/internal/core"
)

type VoiceCommand struct {
	sessions  core.SessionStore
	available bool
	formatter *ResponseFormatter
}

func NewVoiceCommand(sessions core.SessionStore, available bool) *VoiceCommand {
	return &VoiceCommand{
		sessions:  sessions,
		available: available,
		formatter: NewResponseFormatter(),
	}
}

func (c *VoiceCommand) Name() string {
	return "voice"
}

func (c *VoiceCommand) Description() string {
	return "Turn spoken replies on or off"
}

func (c *VoiceCommand) Execute(_ context.Context, sessionID string, args []string) (string, error) {
	if len(args) == 0 {
		state := "off"
		if c.sessions.Get(sessionID).Voice {
			state = "on"
		}
		return c.formatter.Combine(
			c.formatter.Label("Voice", state),
			c.formatter.Usage("/voice on|off"),
		), nil
	}

	switch args[0] {
	case "on":
		if !c.available {
			return "", errors.New("voice is disabled, set RPGAI_VOICE_ENABLED=true")
		}
		c.sessions.SetVoice(sessionID, true)
		return c.formatter.Success("Spoken replies on"), nil
	case "off":
		c.sessions.SetVoice(sessionID, false)
		return c.formatter.Success("Spoken replies off"), nil
	default:
		return c.formatter.Usage("/voice on|off"), nil
	}
}
