package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/pkg/log"
)

const defaultMaxTokens = 500

// Router resolves a request to one configured backend. The backend map is
// written once in NewRouter and only read afterwards.
type Router struct {
	backends    map[string]core.Backend
	order       []string
	defaultName string
	maxTokens   int
}

func NewRouter(defaultName string, maxTokens int, backends ...core.Backend) *Router {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	r := &Router{
		backends:    make(map[string]core.Backend, len(backends)),
		defaultName: defaultName,
		maxTokens:   maxTokens,
	}
	for _, b := range backends {
		if _, dup := r.backends[b.Name()]; dup {
			continue
		}
		r.backends[b.Name()] = b
		r.order = append(r.order, b.Name())
	}
	return r
}

// Names lists configured backends in registration order.
func (r *Router) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Router) Default() string {
	return r.defaultName
}

// Resolve picks the backend for a request: the requested one, else the
// default, else the first configured. Only one level of fallback.
func (r *Router) Resolve(ctx context.Context, requested string) (core.Backend, error) {
	if len(r.order) == 0 {
		return nil, core.ErrNoBackendsAvailable
	}

	name := requested
	if name == "" {
		name = r.defaultName
	}
	if b, ok := r.backends[name]; ok {
		return b, nil
	}

	fallback := r.order[0]
	log.FromCtx(ctx).Warn().
		Str("requested", name).
		Str("fallback", fallback).
		Msg("backend not configured, falling back")
	return r.backends[fallback], nil
}

func (r *Router) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
	backend, err := r.Resolve(ctx, req.Backend)
	if err != nil {
		return nil, err
	}

	intended := req.Backend
	if intended == "" {
		intended = r.defaultName
	}
	model := req.Model
	if backend.Name() != intended {
		// A model name belongs to the backend that was asked for.
		model = ""
	}

	opts := core.GenerateOptions{
		Temperature: clampTemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Model:       model,
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = r.maxTokens
	}

	log.FromCtx(ctx).Debug().
		Str("backend", backend.Name()).
		Str("model", opts.Model).
		Int("messages", len(req.Messages)).
		Msg("generating")

	res, err := backend.Generate(ctx, req.Messages, opts)
	if err != nil {
		var genErr *core.GenerationError
		if !errors.As(err, &genErr) {
			err = core.NewGenerationError(backend.Name(), opts.Model, err)
		}
		return nil, err
	}
	return res, nil
}

func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 2:
		return 2
	default:
		return t
	}
}

// HealthCheck probes every backend concurrently. Probes never fail the call.
func (r *Router) HealthCheck(ctx context.Context) map[string]bool {
	results := make([]bool, len(r.order))

	var wg sync.WaitGroup
	for i, name := range r.order {
		wg.Add(1)
		go func(i int, b core.Backend) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					log.FromCtx(ctx).Warn().Str("backend", b.Name()).Interface("panic", rec).Msg("health check panicked")
				}
			}()
			results[i] = b.Health(ctx)
		}(i, r.backends[name])
	}
	wg.Wait()

	out := make(map[string]bool, len(r.order))
	for i, name := range r.order {
		out[name] = results[i]
	}
	return out
}

// ListModels returns available models per backend. Backends that cannot
// list are omitted.
func (r *Router) ListModels(ctx context.Context) map[string][]string {
	out := make(map[string][]string)
	for _, name := range r.order {
		lister, ok := r.backends[name].(core.ModelLister)
		if !ok {
			continue
		}
		models, err := lister.ListModels(ctx)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("backend", name).Msg("failed to list models")
			continue
		}
		out[name] = models
	}
	return out
}

func (r *Router) Close() error {
	var errs []error
	for _, name := range r.order {
		if err := r.backends[name].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
