package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/retry"
)

type stubEngine struct {
	searchRecs []core.MemoryRecord
	allRecs    []core.MemoryRecord
	err        error
	addErrs    []error

	searches int
	gets     int
	adds     int
}

func (s *stubEngine) Add(context.Context, core.Scope, []core.Message, map[string]string) ([]core.MemoryRecord, error) {
	s.adds++
	if len(s.addErrs) > 0 {
		err := s.addErrs[0]
		s.addErrs = s.addErrs[1:]
		return nil, err
	}
	return []core.MemoryRecord{{Text: "User likes tea"}}, nil
}

func (s *stubEngine) Search(context.Context, core.Scope, string, int) ([]core.MemoryRecord, error) {
	s.searches++
	return s.searchRecs, s.err
}

func (s *stubEngine) GetAll(context.Context, core.Scope, int) ([]core.MemoryRecord, error) {
	s.gets++
	return s.allRecs, s.err
}

func newGateway(engine core.MemoryEngine, attempts int) *Gateway {
	g := NewGateway(&config.MemoryConfig{Enabled: true, RetryAttempts: attempts}, engine)
	g.retrier = fastRetrier(attempts)
	return g
}

func TestGateway_Recall(t *testing.T) {
	scope := core.CharacterScope("p1", "u1")
	recs := []core.MemoryRecord{{Text: "a"}, {Text: "b"}, {Text: "c"}}

	tests := []struct {
		name         string
		engine       *stubEngine
		query        string
		limit        int
		want         int
		wantSearches int
		wantGets     int
	}{
		{name: "query searches", engine: &stubEngine{searchRecs: recs}, query: "tea", limit: 5, want: 3, wantSearches: 1},
		{name: "empty query lists recent", engine: &stubEngine{allRecs: recs}, query: "  ", limit: 5, want: 3, wantGets: 1},
		{name: "result capped to limit", engine: &stubEngine{searchRecs: recs}, query: "tea", limit: 2, want: 2, wantSearches: 1},
		{name: "engine failure is empty", engine: &stubEngine{err: errors.New("boom")}, query: "tea", limit: 5, want: 0, wantSearches: 1},
		{name: "zero limit skips engine", engine: &stubEngine{searchRecs: recs}, query: "tea", limit: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(tt.engine, 0)
			got := g.Recall(context.Background(), scope, tt.query, tt.limit)
			assert.Len(t, got, tt.want)
			assert.Equal(t, tt.wantSearches, tt.engine.searches)
			assert.Equal(t, tt.wantGets, tt.engine.gets)
		})
	}
}

func TestGateway_Disabled(t *testing.T) {
	engine := &stubEngine{searchRecs: []core.MemoryRecord{{Text: "a"}}}
	g := NewGateway(&config.MemoryConfig{Enabled: false}, engine)

	assert.False(t, g.Enabled())
	assert.Nil(t, g.Recall(context.Background(), core.UserScope("u1"), "q", 3))
	assert.NoError(t, g.Remember(context.Background(), core.UserScope("u1"), []core.Message{core.UserMessage("hi")}, nil))
	assert.Zero(t, engine.searches+engine.adds)

	nilEngine := NewGateway(&config.MemoryConfig{Enabled: true}, nil)
	assert.False(t, nilEngine.Enabled())
}

func TestGateway_Remember(t *testing.T) {
	exchange := []core.Message{core.UserMessage("I like tea"), core.AssistantMessage("Lovely")}
	scope := core.UserScope("u1")

	t.Run("transient failure retried", func(t *testing.T) {
		engine := &stubEngine{addErrs: []error{errors.New("timeout")}}
		g := newGateway(engine, 2)
		require.NoError(t, g.Remember(context.Background(), scope, exchange, nil))
		assert.Equal(t, 2, engine.adds)
	})

	t.Run("parse failure not retried", func(t *testing.T) {
		engine := &stubEngine{addErrs: []error{fmt.Errorf("%w: bad json", core.ErrMemoryExtractionFailed)}}
		g := newGateway(engine, 2)
		err := g.Remember(context.Background(), scope, exchange, nil)
		assert.ErrorIs(t, err, core.ErrMemoryExtractionFailed)
		assert.Equal(t, 1, engine.adds)
	})

	t.Run("exhausted retries wrapped", func(t *testing.T) {
		engine := &stubEngine{addErrs: []error{errors.New("a"), errors.New("b")}}
		g := newGateway(engine, 1)
		err := g.Remember(context.Background(), scope, exchange, nil)
		assert.ErrorIs(t, err, core.ErrMemoryExtractionFailed)
		assert.Equal(t, 2, engine.adds)
	})

	t.Run("empty exchange is a no-op", func(t *testing.T) {
		engine := &stubEngine{}
		g := newGateway(engine, 1)
		require.NoError(t, g.Remember(context.Background(), scope, nil, nil))
		assert.Zero(t, engine.adds)
	})
}

func TestGateway_Summary(t *testing.T) {
	engine := &stubEngine{allRecs: []core.MemoryRecord{{Text: "a"}}}
	g := newGateway(engine, 0)

	got, err := g.Summary(context.Background(), core.CharacterScope("p1", "u1"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	engine.err = errors.New("db closed")
	_, err = g.Summary(context.Background(), core.CharacterScope("p1", "u1"))
	assert.ErrorIs(t, err, core.ErrMemoryLookupFailed)
}

func fastRetrier(attempts int) *retry.Retrier {
	return retry.NewRetrier(&retry.Config{
		MaxRetries:    attempts,
		BackoffFactor: 1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
	})
}
