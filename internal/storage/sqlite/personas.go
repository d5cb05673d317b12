package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/rpgai/internal/core"
)

type PersonasRepo struct {
	db *sql.DB
}

func NewPersonasRepo(db *sql.DB) *PersonasRepo {
	return &PersonasRepo{db: db}
}

const personaColumns = `id, owner_id, name, creation_prompt, summary, system_prompt, voice, backend, model, temperature, active, created_at`

func scanPersona(row interface{ Scan(...any) error }) (*core.Persona, error) {
	var p core.Persona
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.CreationPrompt, &p.Summary, &p.SystemPrompt,
		&p.Voice, &p.Backend, &p.Model, &p.Temperature, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PersonasRepo) GetPersona(ctx context.Context, id string) (*core.Persona, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE id = ? AND active = 1`, id)

	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrPersonaNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load persona: %w", err)
	}
	return p, nil
}

// ListPersonas returns active personas, oldest first. An empty ownerID lists all.
func (r *PersonasRepo) ListPersonas(ctx context.Context, ownerID string) ([]core.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas WHERE active = 1`
	var args []any
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query personas: %w", err)
	}
	defer rows.Close()

	var personas []core.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		personas = append(personas, *p)
	}
	return personas, rows.Err()
}

// CreatePersona assigns an id and creation time when they are unset.
func (r *PersonasRepo) CreatePersona(ctx context.Context, p *core.Persona) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Active = true

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO personas (`+personaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.CreationPrompt, p.Summary, p.SystemPrompt,
		p.Voice, p.Backend, p.Model, p.Temperature, p.Active, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert persona: %w", err)
	}
	return nil
}

func (r *PersonasRepo) DeactivatePersona(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE personas SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate persona: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrPersonaNotFound, id)
	}
	return nil
}
