package core

import "context"

type CmdRouter interface {
	Execute(ctx context.Context, sessionID, input string) (string, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, sessionID string, args []string) (string, error)
}

// Session is per-chat state shared by transports and commands.
type Session struct {
	ID        string
	UserID    string
	PersonaID string
	Voice     bool
}

type SessionStore interface {
	Get(sessionID string) Session
	SetPersona(sessionID, personaID string)
	SetVoice(sessionID string, on bool)
}

// TurnSender is the conversational entry point transports talk to.
type TurnSender interface {
	SendTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}
