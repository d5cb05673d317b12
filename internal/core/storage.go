package core

import (
	"context"
	"time"
)

type PersonaRepository interface {
	// GetPersona returns ErrPersonaNotFound for unknown or inactive personas.
	GetPersona(ctx context.Context, id string) (*Persona, error)
	ListPersonas(ctx context.Context, ownerID string) ([]Persona, error)
	CreatePersona(ctx context.Context, p *Persona) error
	DeactivatePersona(ctx context.Context, id string) error
}

type DocumentRepository interface {
	GetDocuments(ctx context.Context, personaID string) ([]Document, error)
	AddDocument(ctx context.Context, d *Document) error
	DeleteDocument(ctx context.Context, personaID, documentID string) error
}

type ConversationRepository interface {
	// GetOrCreateConversation returns the most recently active conversation
	// between persona and user, creating one when none exists.
	GetOrCreateConversation(ctx context.Context, personaID, userID string) (*Conversation, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// CommitTurn appends both messages and bumps last activity atomically.
	CommitTurn(ctx context.Context, conversationID string, user, assistant StoredMessage, at time.Time) error
	History(ctx context.Context, personaID, userID string, limit int) ([]StoredMessage, error)
}

// MemoryLog is the durable, recency ordered record of extracted memories.
type MemoryLog interface {
	SaveMemory(ctx context.Context, rec MemoryRecord, hash string) (bool, error)
	ListMemories(ctx context.Context, scope Scope, limit int) ([]MemoryRecord, error)
}
