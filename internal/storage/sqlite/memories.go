package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/sqlite"
)

type MemoriesRepo struct {
	db *sql.DB
}

func NewMemoriesRepo(db *sql.DB) *MemoriesRepo {
	return &MemoriesRepo{db: db}
}

// SaveMemory reports false when a memory with the same hash already exists.
func (r *MemoriesRepo) SaveMemory(ctx context.Context, rec core.MemoryRecord, hash string) (bool, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memories (id, scope, user_id, agent_id, fact, category, fact_hash, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Scope.Kind), rec.Scope.UserID, rec.Scope.AgentID(), rec.Text, rec.Category, hash, rec.CreatedAt,
	)
	if sqlite.IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert memory: %w", err)
	}
	return true, nil
}

// ListMemories returns the newest memories first. A user scope includes
// the memories every persona holds about the user.
func (r *MemoriesRepo) ListMemories(ctx context.Context, scope core.Scope, limit int) ([]core.MemoryRecord, error) {
	query := `SELECT id, scope, user_id, agent_id, fact, category, created_at FROM memories WHERE user_id = ?`
	args := []any{scope.UserID}
	if scope.Kind == core.ScopeCharacter {
		query += ` AND agent_id = ?`
		args = append(args, scope.AgentID())
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var recs []core.MemoryRecord
	for rows.Next() {
		var (
			rec     core.MemoryRecord
			kind    string
			agentID string
		)
		if err := rows.Scan(&rec.ID, &kind, &rec.Scope.UserID, &agentID, &rec.Text, &rec.Category, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		rec.Scope.Kind = core.ScopeKind(kind)
		if rec.Scope.Kind == core.ScopeCharacter {
			rec.Scope.PersonaID = strings.TrimPrefix(agentID, "character_")
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
