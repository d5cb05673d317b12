package command

import (
	"context"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/health"
)

type personaSource interface {
	Get(ctx context.Context, id string) (*core.Persona, error)
	List(ctx context.Context, ownerID string) ([]core.Persona, error)
}

type memorySummarizer interface {
	Summary(ctx context.Context, scope core.Scope) ([]core.MemoryRecord, error)
}

type historySource interface {
	History(ctx context.Context, personaID, userID string, limit int) ([]core.StoredMessage, error)
}

type healthChecker interface {
	Check(ctx context.Context) health.Report
}

type modelLister interface {
	ListModels(ctx context.Context) map[string][]string
}

type Deps struct {
	Sessions core.SessionStore
	Personas personaSource
	Memory   memorySummarizer
	History  historySource
	Health   healthChecker
	Models   modelLister
	// OwnerID scopes /personas.
	OwnerID string
	// VoiceAvailable is false when the audio pipeline is disabled.
	VoiceAvailable bool
}

// NewRouter builds the chat command set shared by all transports.
func NewRouter(d Deps) *Router {
	r := New([]core.Command{
		NewPersonaCommand(d.Sessions, d.Personas),
		NewPersonasCommand(d.Sessions, d.Personas, d.OwnerID),
		NewVoiceCommand(d.Sessions, d.VoiceAvailable),
		NewMemoriesCommand(d.Sessions, d.Memory),
		NewHistoryCommand(d.Sessions, d.History),
		NewHealthCommand(d.Health),
		NewModelsCommand(d.Models),
	})
	r.Register(NewHelpCommand(r))
	return r
}
