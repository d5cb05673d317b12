package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/rpgai/internal/core"
)

type DocumentsRepo struct {
	db *sql.DB
}

func NewDocumentsRepo(db *sql.DB) *DocumentsRepo {
	return &DocumentsRepo{db: db}
}

// GetDocuments returns full document bodies in upload order.
func (r *DocumentsRepo) GetDocuments(ctx context.Context, personaID string) ([]core.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, persona_id, filename, content, content_type, created_at
		 FROM documents WHERE persona_id = ? ORDER BY created_at, rowid`, personaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var d core.Document
		if err := rows.Scan(&d.ID, &d.PersonaID, &d.Filename, &d.Content, &d.ContentType, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentsRepo) AddDocument(ctx context.Context, d *core.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.ContentType == "" {
		d.ContentType = "text/plain"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, persona_id, filename, content, content_type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.PersonaID, d.Filename, d.Content, d.ContentType, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *DocumentsRepo) DeleteDocument(ctx context.Context, personaID, documentID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ? AND persona_id = ?`, documentID, personaID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, documentID)
	}
	return nil
}
