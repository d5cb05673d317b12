package persona

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/retry"
)

const DefaultTemperature = 0.7

// Service manages personas and their reference documents.
type Service struct {
	personas     core.PersonaRepository
	documents    core.DocumentRepository
	gen          core.Generator
	client       *http.Client
	retrier      *retry.Retrier
	defaultOwner string
}

func NewService(personas core.PersonaRepository, documents core.DocumentRepository, gen core.Generator, defaultOwner string) *Service {
	return &Service{
		personas:     personas,
		documents:    documents,
		gen:          gen,
		client:       &http.Client{Timeout: 30 * time.Second},
		retrier:      retry.NewDefaultRetrier(),
		defaultOwner: defaultOwner,
	}
}

func (s *Service) owner(id string) string {
	if id == "" {
		return s.defaultOwner
	}
	return id
}

func (s *Service) Get(ctx context.Context, id string) (*core.Persona, error) {
	return s.personas.GetPersona(ctx, id)
}

func (s *Service) List(ctx context.Context, ownerID string) ([]core.Persona, error) {
	return s.personas.ListPersonas(ctx, ownerID)
}

// Delete deactivates the persona; its conversations and memories stay.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.personas.DeactivatePersona(ctx, id); err != nil {
		return fmt.Errorf("failed to delete persona: %w", err)
	}
	return nil
}
