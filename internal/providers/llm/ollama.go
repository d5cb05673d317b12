package llm

import (
	"context"
	"net/http"
	"strconv"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
)

// Ollama talks to the native /api/chat endpoint of a local Ollama server.
type Ollama struct {
	baseProvider
}

func NewOllama(cfg config.OllamaConfig) *Ollama {
	return &Ollama{
		baseProvider: newBaseProvider(config.BackendOllama, cfg.URL, "", cfg.Model, cfg.Timeout),
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	DoneReason      string        `json:"done_reason"`
	TotalDuration   int64         `json:"total_duration"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (o *Ollama) Generate(ctx context.Context, messages []core.Message, opts core.GenerateOptions) (*core.GenerationResult, error) {
	model := o.modelFor(opts.Model)

	payload := ollamaChatRequest{
		Model:    model,
		Messages: make([]ollamaMessage, 0, len(messages)),
		Stream:   false,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/api/chat", payload, nil)
	if err != nil {
		return nil, core.NewGenerationError(o.name, model, err)
	}

	var out ollamaChatResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, core.NewGenerationError(o.name, model, err)
	}

	if out.Model != "" {
		model = out.Model
	}

	return &core.GenerationResult{
		Content: out.Message.Content,
		Backend: o.name,
		Model:   model,
		Usage: core.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		Metadata: map[string]string{
			"done_reason":    out.DoneReason,
			"total_duration": strconv.FormatInt(out.TotalDuration, 10),
		},
	}, nil
}

func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := o.doRequest(ctx, http.MethodGet, "/api/tags", nil, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *Ollama) Health(ctx context.Context) bool {
	_, err := o.ListModels(ctx)
	return err == nil
}
