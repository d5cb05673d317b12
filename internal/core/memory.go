package core

import (
	"context"
	"time"
)

type ScopeKind string

const (
	// ScopeCharacter is what one persona remembers about one user.
	ScopeCharacter ScopeKind = "character"
	// ScopeUser spans every persona the user talked to.
	ScopeUser ScopeKind = "user"
)

type Scope struct {
	Kind      ScopeKind
	UserID    string
	PersonaID string
}

func CharacterScope(personaID, userID string) Scope {
	return Scope{Kind: ScopeCharacter, UserID: userID, PersonaID: personaID}
}

func UserScope(userID string) Scope {
	return Scope{Kind: ScopeUser, UserID: userID}
}

// AgentID is the engine-side subject of a character scope.
func (s Scope) AgentID() string {
	if s.Kind != ScopeCharacter || s.PersonaID == "" {
		return ""
	}
	return "character_" + s.PersonaID
}

type MemoryRecord struct {
	ID        string    `json:"id,omitempty"`
	Scope     Scope     `json:"-"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	Score     float32   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryEngine is the semantic memory store consumed by the gateway.
type MemoryEngine interface {
	Add(ctx context.Context, scope Scope, messages []Message, metadata map[string]string) ([]MemoryRecord, error)
	Search(ctx context.Context, scope Scope, query string, limit int) ([]MemoryRecord, error)
	GetAll(ctx context.Context, scope Scope, limit int) ([]MemoryRecord, error)
}

type MemoryGateway interface {
	Recall(ctx context.Context, scope Scope, query string, limit int) []MemoryRecord
	Remember(ctx context.Context, scope Scope, exchange []Message, metadata map[string]string) error
}
