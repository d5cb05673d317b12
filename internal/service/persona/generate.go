package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
)

const generationPrompt = `You are a character profile generator for an AI-driven RPG.

Given a user's character concept, generate a character profile in exactly this format:

**Character Name:** [an appropriate name]

**Personality Summary:** [2-3 sentences on the character's core personality, role and purpose]

**System Prompt:**
[A detailed system prompt in second person ("You are...") covering background, personality and manner of speech, knowledge and expertise, and goals when talking to users. It must be complete enough for a model to roleplay the character convincingly.]

---

User's Character Concept: %s

Generate the character profile now:`

const (
	fallbackName         = "Generated Character"
	fallbackPromptPrefix = "You are a character in a VR world. "
)

type GenerateRequest struct {
	OwnerID string
	Concept string
	Backend string
	Model   string
	Voice   string
}

// Generate asks a backend to design a persona from a free-text concept and
// stores it.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*core.Persona, error) {
	concept := strings.TrimSpace(req.Concept)
	if concept == "" {
		return nil, fmt.Errorf("concept is empty")
	}

	res, err := s.gen.Generate(ctx, core.GenerateRequest{
		Messages:    []core.Message{core.UserMessage(fmt.Sprintf(generationPrompt, concept))},
		Backend:     req.Backend,
		Model:       req.Model,
		Temperature: 0.8,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate persona: %w", err)
	}

	p := parseProfile(res.Content, concept)
	p.OwnerID = s.owner(req.OwnerID)
	p.CreationPrompt = concept
	p.Backend = req.Backend
	p.Model = req.Model
	p.Voice = req.Voice
	p.Temperature = DefaultTemperature

	if err := s.personas.CreatePersona(ctx, p); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Info().Str("persona", p.ID).Str("name", p.Name).Msg("persona generated")
	return p, nil
}

func parseProfile(text, concept string) *core.Persona {
	p := &core.Persona{
		Name:         extractField(text, "Character Name"),
		Summary:      extractField(text, "Personality Summary"),
		SystemPrompt: extractField(text, "System Prompt"),
	}
	if p.Name == "" {
		p.Name = fallbackName
	}
	if p.Summary == "" {
		p.Summary = concept
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = fallbackPromptPrefix + concept
	}
	return p
}

// extractField returns the text after **field:** up to the next bold marker.
func extractField(text, field string) string {
	marker := "**" + field + ":**"
	_, rest, found := strings.Cut(text, marker)
	if !found {
		return ""
	}
	if end := strings.Index(rest, "**"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
