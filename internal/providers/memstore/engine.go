package memstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
)

type Options struct {
	ExtractBackend string
	ExtractModel   string
}

// Engine is the semantic memory store: the LLM extracts facts, the sqlite
// log keeps them in recency order and chromem indexes them for similarity.
type Engine struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
	log   core.MemoryLog
	gen   core.Generator
	opts  Options

	cols map[string]*chromem.Collection
	mu   sync.RWMutex
}

func NewEngine(db *chromem.DB, embed chromem.EmbeddingFunc, memLog core.MemoryLog, gen core.Generator, opts Options) *Engine {
	return &Engine{
		db:    db,
		embed: embed,
		log:   memLog,
		gen:   gen,
		opts:  opts,
		cols:  make(map[string]*chromem.Collection),
	}
}

// NewOllamaEmbedder embeds through the Ollama embeddings API.
func NewOllamaEmbedder(ollamaURL, model string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOllama(model, strings.TrimRight(ollamaURL, "/")+"/api")
}

// collection returns the per-user collection; every scope of one user
// shares it and is told apart by metadata.
func (e *Engine) collection(userID string) (*chromem.Collection, error) {
	e.mu.RLock()
	col, ok := e.cols[userID]
	e.mu.RUnlock()
	if ok {
		return col, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if col, ok := e.cols[userID]; ok {
		return col, nil
	}

	col, err := e.db.GetOrCreateCollection("user_"+userID, nil, e.embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	e.cols[userID] = col
	return col, nil
}

func (e *Engine) Add(ctx context.Context, scope core.Scope, messages []core.Message, metadata map[string]string) ([]core.MemoryRecord, error) {
	logger := log.FromCtx(ctx)

	conversation := formatConversation(messages)
	if conversation == "" {
		return nil, nil
	}

	resp, err := e.gen.Generate(ctx, core.GenerateRequest{
		Messages: []core.Message{
			core.SystemMessage(extractionSystemPrompt),
			core.UserMessage(buildExtractionPrompt(conversation)),
		},
		Backend:     e.opts.ExtractBackend,
		Model:       e.opts.ExtractModel,
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}

	facts, err := parseExtractionResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMemoryExtractionFailed, err)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	col, err := e.collection(scope.UserID)
	if err != nil {
		return nil, err
	}

	var records []core.MemoryRecord
	for _, f := range facts {
		rec := core.MemoryRecord{
			ID:        factID(scope, f.Fact),
			Scope:     scope,
			Text:      f.Fact,
			Category:  f.Category,
			CreatedAt: time.Now().UTC(),
		}

		// Index before logging: re-adding the same id overwrites, so a retry
		// after a failed log write stays consistent.
		if err := col.AddDocument(ctx, chromem.Document{
			ID:       rec.ID,
			Content:  rec.Text,
			Metadata: docMetadata(rec, metadata),
		}); err != nil {
			return records, fmt.Errorf("index memory: %w", err)
		}

		inserted, err := e.log.SaveMemory(ctx, rec, rec.ID)
		if err != nil {
			return records, fmt.Errorf("save memory: %w", err)
		}
		if !inserted {
			continue
		}
		records = append(records, rec)
		logger.Debug().Str("category", rec.Category).Str("scope", string(scope.Kind)).Msg("memory stored")
	}
	return records, nil
}

func docMetadata(rec core.MemoryRecord, extra map[string]string) map[string]string {
	md := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		md[k] = v
	}
	md["user_id"] = rec.Scope.UserID
	md["agent_id"] = rec.Scope.AgentID()
	md["category"] = rec.Category
	md["created_at"] = rec.CreatedAt.Format(time.RFC3339)
	return md
}

func (e *Engine) Search(ctx context.Context, scope core.Scope, query string, limit int) ([]core.MemoryRecord, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	col, err := e.collection(scope.UserID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size
	n := min(limit, col.Count())
	if n == 0 {
		return nil, nil
	}

	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where := map[string]string{"user_id": scope.UserID}
	if scope.Kind == core.ScopeCharacter {
		where["agent_id"] = scope.AgentID()
	}

	results, err := col.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}

	records := make([]core.MemoryRecord, 0, len(results))
	for _, r := range results {
		created, _ := time.Parse(time.RFC3339, r.Metadata["created_at"])
		records = append(records, core.MemoryRecord{
			ID:        r.ID,
			Scope:     scope,
			Text:      r.Content,
			Category:  r.Metadata["category"],
			Score:     r.Similarity,
			CreatedAt: created,
		})
	}
	return records, nil
}

func (e *Engine) GetAll(ctx context.Context, scope core.Scope, limit int) ([]core.MemoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if e.log == nil {
		return nil, errors.New("memory log not configured")
	}
	return e.log.ListMemories(ctx, scope, limit)
}
