package persona

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
)

type personaFile struct {
	Name         string         `yaml:"name"`
	Summary      string         `yaml:"summary"`
	SystemPrompt string         `yaml:"system_prompt"`
	Voice        string         `yaml:"voice"`
	Backend      string         `yaml:"backend"`
	Model        string         `yaml:"model"`
	Temperature  *float64       `yaml:"temperature"`
	Documents    []documentFile `yaml:"documents"`
}

type documentFile struct {
	Filename string `yaml:"filename"`
	Content  string `yaml:"content"`
}

func (f *personaFile) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(f.SystemPrompt) == "" {
		return errors.New("system_prompt is required")
	}
	if f.Temperature != nil && (*f.Temperature < 0 || *f.Temperature > 2) {
		return fmt.Errorf("temperature %.2f out of range [0,2]", *f.Temperature)
	}
	for i, d := range f.Documents {
		if d.Filename == "" {
			return fmt.Errorf("document %d: filename is required", i)
		}
	}
	return nil
}

// Import reads one or more YAML documents, each describing a persona with
// optional inline reference documents. Every entry is validated before any
// is stored.
func (s *Service) Import(ctx context.Context, ownerID string, r io.Reader) ([]core.Persona, error) {
	var files []personaFile
	dec := yaml.NewDecoder(r)
	for {
		var f personaFile
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse persona file: %w", err)
		}
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("persona %d: %w", len(files)+1, err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, errors.New("no personas in file")
	}

	created := make([]core.Persona, 0, len(files))
	for _, f := range files {
		p := &core.Persona{
			OwnerID:      s.owner(ownerID),
			Name:         strings.TrimSpace(f.Name),
			Summary:      strings.TrimSpace(f.Summary),
			SystemPrompt: strings.TrimSpace(f.SystemPrompt),
			Voice:        f.Voice,
			Backend:      f.Backend,
			Model:        f.Model,
			Temperature:  DefaultTemperature,
		}
		if f.Temperature != nil {
			p.Temperature = *f.Temperature
		}
		if err := s.personas.CreatePersona(ctx, p); err != nil {
			return created, err
		}

		for _, d := range f.Documents {
			if _, err := s.AddDocument(ctx, p.ID, d.Filename, []byte(d.Content)); err != nil {
				return created, err
			}
		}

		log.FromCtx(ctx).Info().Str("persona", p.ID).Str("name", p.Name).Int("documents", len(f.Documents)).Msg("persona imported")
		created = append(created, *p)
	}
	return created, nil
}
