package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
	"github.com/sandevgo/rpgai/pkg/retry"
)

const SummaryLimit = 20

// Gateway shields the turn from the memory engine: recall degrades to no
// memories and remember is retried in the background.
type Gateway struct {
	engine  core.MemoryEngine
	enabled bool
	retrier *retry.Retrier
}

func NewGateway(cfg *config.MemoryConfig, engine core.MemoryEngine) *Gateway {
	rc := retry.NewDefaultConfig()
	rc.MaxRetries = max(cfg.RetryAttempts, 0)
	rc.InitialDelay = 500 * time.Millisecond

	return &Gateway{
		engine:  engine,
		enabled: cfg.Enabled && engine != nil,
		retrier: retry.NewRetrier(rc),
	}
}

func (g *Gateway) Enabled() bool {
	return g.enabled
}

// Recall runs a similarity search when query is set, otherwise it returns
// the newest records. It never fails.
func (g *Gateway) Recall(ctx context.Context, scope core.Scope, query string, limit int) []core.MemoryRecord {
	if !g.enabled || limit <= 0 {
		return nil
	}

	var (
		recs []core.MemoryRecord
		err  error
	)
	if strings.TrimSpace(query) != "" {
		recs, err = g.engine.Search(ctx, scope, query, limit)
	} else {
		recs, err = g.engine.GetAll(ctx, scope, limit)
	}
	if err != nil {
		log.FromCtx(ctx).Warn().
			Err(fmt.Errorf("%w: %w", core.ErrMemoryLookupFailed, err)).
			Str("scope", string(scope.Kind)).
			Msg("memory recall degraded")
		return nil
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// Remember extracts and stores memories from one exchange. Callers run it
// off the response path.
func (g *Gateway) Remember(ctx context.Context, scope core.Scope, exchange []core.Message, metadata map[string]string) error {
	if !g.enabled || len(exchange) == 0 {
		return nil
	}

	var stored int
	err := g.retrier.Do(ctx, func(ctx context.Context) error {
		recs, err := g.engine.Add(ctx, scope, exchange, metadata)
		stored += len(recs)
		if errors.Is(err, core.ErrMemoryExtractionFailed) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, core.ErrMemoryExtractionFailed) {
			err = fmt.Errorf("%w: %w", core.ErrMemoryExtractionFailed, err)
		}
		return err
	}

	log.FromCtx(ctx).Debug().
		Int("stored", stored).
		Str("scope", string(scope.Kind)).
		Msg("memories extracted")
	return nil
}

// Summary lists what the persona remembers about the user, newest first.
func (g *Gateway) Summary(ctx context.Context, scope core.Scope) ([]core.MemoryRecord, error) {
	if !g.enabled {
		return nil, nil
	}
	recs, err := g.engine.GetAll(ctx, scope, SummaryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMemoryLookupFailed, err)
	}
	return recs, nil
}
