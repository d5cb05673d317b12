package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/core"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "nested", "rpgai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createPersona(t *testing.T, db *sql.DB, name string) *core.Persona {
	t.Helper()
	p := &core.Persona{OwnerID: "owner", Name: name, SystemPrompt: "You are " + name, Temperature: 0.8}
	require.NoError(t, NewPersonasRepo(db).CreatePersona(context.Background(), p))
	return p
}

func TestNewDB_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpgai.db")
	db, err := NewDB(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM personas`).Scan(&n))
	assert.Zero(t, n)
}

func TestPersonasRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPersonasRepo(db)

	brom := createPersona(t, db, "Brom")
	assert.NotEmpty(t, brom.ID)
	assert.True(t, brom.Active)

	other := &core.Persona{OwnerID: "someone", Name: "Elara", SystemPrompt: "elf"}
	require.NoError(t, repo.CreatePersona(ctx, other))

	got, err := repo.GetPersona(ctx, brom.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brom", got.Name)
	assert.Equal(t, 0.8, got.Temperature)
	assert.WithinDuration(t, brom.CreatedAt, got.CreatedAt, time.Second)

	mine, err := repo.ListPersonas(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	all, err := repo.ListPersonas(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.DeactivatePersona(ctx, brom.ID))
	_, err = repo.GetPersona(ctx, brom.ID)
	assert.ErrorIs(t, err, core.ErrPersonaNotFound)

	err = repo.DeactivatePersona(ctx, brom.ID)
	assert.ErrorIs(t, err, core.ErrPersonaNotFound)

	_, err = repo.GetPersona(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrPersonaNotFound)
}

func TestDocumentsRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewDocumentsRepo(db)
	p := createPersona(t, db, "Brom")

	first := &core.Document{PersonaID: p.ID, Filename: "a.txt", Content: "alpha"}
	second := &core.Document{PersonaID: p.ID, Filename: "b.txt", Content: "beta"}
	require.NoError(t, repo.AddDocument(ctx, first))
	require.NoError(t, repo.AddDocument(ctx, second))
	assert.Equal(t, "text/plain", first.ContentType)

	docs, err := repo.GetDocuments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Filename)

	err = repo.AddDocument(ctx, &core.Document{PersonaID: "ghost", Filename: "x", Content: "y"})
	assert.Error(t, err, "foreign key must reject unknown persona")

	require.NoError(t, repo.DeleteDocument(ctx, p.ID, first.ID))
	assert.ErrorIs(t, repo.DeleteDocument(ctx, p.ID, first.ID), core.ErrDocumentNotFound)

	docs, err = repo.GetDocuments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestConversationsRepo_CommitAndRecent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConversationsRepo(db)
	p := createPersona(t, db, "Brom")

	conv, err := repo.GetOrCreateConversation(ctx, p.ID, "u1")
	require.NoError(t, err)

	again, err := repo.GetOrCreateConversation(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		err := repo.CommitTurn(ctx, conv.ID,
			core.StoredMessage{Role: core.RoleUser, Content: fmt.Sprintf("q%d", i)},
			core.StoredMessage{Role: core.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
			at)
		require.NoError(t, err)
	}

	recent, err := repo.RecentMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []core.Message{
		core.AssistantMessage("a2"),
		core.UserMessage("q3"),
		core.AssistantMessage("a3"),
	}, recent)

	history, err := repo.History(ctx, p.ID, "u1", 50)
	require.NoError(t, err)
	require.Len(t, history, 8)
	assert.Equal(t, "q0", history[0].Content)
	assert.Equal(t, conv.ID, history[0].ConversationID)

	var last time.Time
	require.NoError(t, db.QueryRow(`SELECT last_message_at FROM conversations WHERE id = ?`, conv.ID).Scan(&last))
	assert.WithinDuration(t, base.Add(3*time.Second), last, time.Millisecond)
}

func TestConversationsRepo_CommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConversationsRepo(db)
	p := createPersona(t, db, "Brom")

	conv, err := repo.GetOrCreateConversation(ctx, p.ID, "u1")
	require.NoError(t, err)

	dup := "fixed-id"
	err = repo.CommitTurn(ctx, conv.ID,
		core.StoredMessage{ID: dup, Role: core.RoleUser, Content: "q"},
		core.StoredMessage{ID: dup, Role: core.RoleAssistant, Content: "a"},
		time.Now())
	assert.ErrorIs(t, err, core.ErrCommitFailed)

	msgs, err := repo.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "failed commit must leave no partial turn")

	err = repo.CommitTurn(ctx, "missing",
		core.StoredMessage{Role: core.RoleUser, Content: "q"},
		core.StoredMessage{Role: core.RoleAssistant, Content: "a"},
		time.Now())
	assert.ErrorIs(t, err, core.ErrCommitFailed)
}

func TestConversationsRepo_LatestConversationWins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewConversationsRepo(db)
	p := createPersona(t, db, "Brom")

	old := time.Now().UTC().Add(-time.Hour)
	_, err := db.Exec(`INSERT INTO conversations (id, persona_id, user_id, created_at, last_message_at) VALUES ('old', ?, 'u1', ?, ?)`, p.ID, old, old)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO conversations (id, persona_id, user_id, created_at, last_message_at) VALUES ('new', ?, 'u1', ?, ?)`, p.ID, old, time.Now().UTC())
	require.NoError(t, err)

	conv, err := repo.GetOrCreateConversation(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", conv.ID)
}

func TestMemoriesRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoriesRepo(newTestDB(t))

	charScope := core.CharacterScope("p1", "u1")
	recs := []core.MemoryRecord{
		{ID: "m1", Scope: charScope, Text: "User likes tea", Category: "preference"},
		{ID: "m2", Scope: core.CharacterScope("p2", "u1"), Text: "User is a bard"},
		{ID: "m3", Scope: charScope, Text: "User has a dog"},
	}
	for _, r := range recs {
		r.CreatedAt = time.Now().UTC()
		ok, err := repo.SaveMemory(ctx, r, "hash-"+r.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := repo.SaveMemory(ctx, recs[0], "hash-m1")
	require.NoError(t, err)
	assert.False(t, ok, "duplicate hash is skipped")

	got, err := repo.ListMemories(ctx, charScope, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "User has a dog", got[0].Text)
	assert.Equal(t, "p1", got[0].Scope.PersonaID)

	got, err = repo.ListMemories(ctx, core.UserScope("u1"), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
	assert.Equal(t, "p2", got[1].Scope.PersonaID)

	got, err = repo.ListMemories(ctx, core.UserScope("u2"), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
