package core

import "context"

// Backend is one text generation service. Implementations never retry.
type Backend interface {
	Name() string
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*GenerationResult, error)
	Health(ctx context.Context) bool
	Close() error
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type GenerateRequest struct {
	Messages    []Message
	Backend     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator is the routing view of the configured backends.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, useCache bool) (*AudioArtifact, error)
	// CachePath is where Synthesize stores the artifact for (text, voice).
	CachePath(text, voice string) string
	Health(ctx context.Context) bool
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
	Health(ctx context.Context) bool
}
