package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/sandevgo/rpgai/internal/core"
)

// Personas caches persona and document reads in front of the store. Writes
// go through to the store and evict the affected entries.
type Personas struct {
	personas  core.PersonaRepository
	documents core.DocumentRepository
	cache     *ristretto.Cache
	ttl       time.Duration
}

func NewPersonas(personas core.PersonaRepository, documents core.DocumentRepository, ttl time.Duration) (*Personas, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Personas{
		personas:  personas,
		documents: documents,
		cache:     c,
		ttl:       ttl,
	}, nil
}

func personaKey(id string) string   { return "persona:" + id }
func documentsKey(id string) string { return "docs:" + id }

func (p *Personas) GetPersona(ctx context.Context, id string) (*core.Persona, error) {
	if v, ok := p.cache.Get(personaKey(id)); ok {
		cp := *v.(*core.Persona)
		return &cp, nil
	}

	persona, err := p.personas.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *persona
	p.set(personaKey(id), &cp, int64(len(cp.SystemPrompt)+len(cp.Summary)+256))
	return persona, nil
}

func (p *Personas) ListPersonas(ctx context.Context, ownerID string) ([]core.Persona, error) {
	return p.personas.ListPersonas(ctx, ownerID)
}

func (p *Personas) CreatePersona(ctx context.Context, persona *core.Persona) error {
	return p.personas.CreatePersona(ctx, persona)
}

func (p *Personas) DeactivatePersona(ctx context.Context, id string) error {
	err := p.personas.DeactivatePersona(ctx, id)
	p.cache.Del(personaKey(id))
	p.cache.Del(documentsKey(id))
	return err
}

func (p *Personas) GetDocuments(ctx context.Context, personaID string) ([]core.Document, error) {
	if v, ok := p.cache.Get(documentsKey(personaID)); ok {
		return append([]core.Document(nil), v.([]core.Document)...), nil
	}

	docs, err := p.documents.GetDocuments(ctx, personaID)
	if err != nil {
		return nil, err
	}
	var cost int64 = 64
	for _, d := range docs {
		cost += int64(len(d.Content) + len(d.Filename))
	}
	p.set(documentsKey(personaID), append([]core.Document(nil), docs...), cost)
	return docs, nil
}

func (p *Personas) AddDocument(ctx context.Context, d *core.Document) error {
	err := p.documents.AddDocument(ctx, d)
	p.cache.Del(documentsKey(d.PersonaID))
	return err
}

func (p *Personas) DeleteDocument(ctx context.Context, personaID, documentID string) error {
	err := p.documents.DeleteDocument(ctx, personaID, documentID)
	p.cache.Del(documentsKey(personaID))
	return err
}

func (p *Personas) set(key string, v any, cost int64) {
	if p.ttl <= 0 {
		return
	}
	p.cache.SetWithTTL(key, v, cost, p.ttl)
	// make the entry visible to the next Get
	p.cache.Wait()
}

func (p *Personas) Close() {
	p.cache.Close()
}
