package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
)

type ConversationsRepo struct {
	db *sql.DB
}

func NewConversationsRepo(db *sql.DB) *ConversationsRepo {
	return &ConversationsRepo{db: db}
}

func (r *ConversationsRepo) GetOrCreateConversation(ctx context.Context, personaID, userID string) (*core.Conversation, error) {
	var c core.Conversation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, persona_id, user_id, title, created_at, last_message_at
		 FROM conversations WHERE persona_id = ? AND user_id = ?
		 ORDER BY last_message_at DESC LIMIT 1`, personaID, userID,
	).Scan(&c.ID, &c.PersonaID, &c.UserID, &c.Title, &c.CreatedAt, &c.LastMessageAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	now := time.Now().UTC()
	c = core.Conversation{
		ID:            uuid.NewString(),
		PersonaID:     personaID,
		UserID:        userID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, persona_id, user_id, title, created_at, last_message_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.PersonaID, c.UserID, c.Title, c.CreatedAt, c.LastMessageAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	log.FromCtx(ctx).Debug().Str("conversation", c.ID).Msg("conversation created")
	return &c, nil
}

func (r *ConversationsRepo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Fetch the LAST 'limit' messages by ordering DESC
	rows, err := r.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var msg core.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest first from the query; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded history messages")
	return messages, nil
}

func (r *ConversationsRepo) CommitTurn(ctx context.Context, conversationID string, user, assistant core.StoredMessage, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrCommitFailed, err)
	}
	defer tx.Rollback()

	for _, m := range []core.StoredMessage{user, assistant} {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = at
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.ID, conversationID, m.Role, m.Content, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: insert %s message: %w", core.ErrCommitFailed, m.Role, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`, at, conversationID)
	if err != nil {
		return fmt.Errorf("%w: touch conversation: %w", core.ErrCommitFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %w: %s", core.ErrCommitFailed, core.ErrConversationNotFound, conversationID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrCommitFailed, err)
	}
	return nil
}

// History returns up to limit messages of the latest conversation between
// persona and user, oldest first.
func (r *ConversationsRepo) History(ctx context.Context, personaID, userID string, limit int) ([]core.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.conversation_id, m.role, m.content, m.created_at
		 FROM messages m
		 WHERE m.conversation_id = (
		     SELECT id FROM conversations WHERE persona_id = ? AND user_id = ?
		     ORDER BY last_message_at DESC LIMIT 1
		 )
		 ORDER BY m.seq DESC LIMIT ?`, personaID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []core.StoredMessage
	for rows.Next() {
		var m core.StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
