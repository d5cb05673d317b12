package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sandevgo/rpgai/internal/core"
)

// OpenAICompatible covers every backend that speaks the chat completions API.
type OpenAICompatible struct {
	name   string
	model  string
	http   *http.Client
	client *openai.Client
}

type OpenAICompatibleConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if len(cfg.ExtraHeaders) > 0 {
		httpClient.Transport = &headerTransport{headers: cfg.ExtraHeaders}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = httpClient

	return &OpenAICompatible{
		name:   cfg.Name,
		model:  cfg.Model,
		http:   httpClient,
		client: openai.NewClientWithConfig(oc),
	}
}

func (o *OpenAICompatible) Name() string {
	return o.name
}

func (o *OpenAICompatible) Generate(ctx context.Context, messages []core.Message, opts core.GenerateOptions) (*core.GenerationResult, error) {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, core.NewGenerationError(o.name, model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewGenerationError(o.name, model, errors.New("empty choices"))
	}

	if resp.Model != "" {
		model = resp.Model
	}

	return &core.GenerationResult{
		Content: resp.Choices[0].Message.Content,
		Backend: o.name,
		Model:   model,
		Usage: core.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Metadata: map[string]string{
			"id":            resp.ID,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
	}, nil
}

func (o *OpenAICompatible) ListModels(ctx context.Context) ([]string, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

func (o *OpenAICompatible) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	_, err := o.ListModels(ctx)
	return err == nil
}

func (o *OpenAICompatible) Close() error {
	o.http.CloseIdleConnections()
	return nil
}
