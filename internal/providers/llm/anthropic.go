package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
)

type Anthropic struct {
	model  string
	http   *http.Client
	client anthropic.Client
}

func NewAnthropic(cfg config.AnthropicConfig, opts ...option.RequestOption) *Anthropic {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	// The router owns fallback, the SDK must not retry on its own.
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}

	return &Anthropic{
		model:  cfg.Model,
		http:   httpClient,
		client: anthropic.NewClient(append(base, opts...)...),
	}
}

func (a *Anthropic) Name() string {
	return config.BackendAnthropic
}

func (a *Anthropic) Generate(ctx context.Context, messages []core.Message, opts core.GenerateOptions) (*core.GenerationResult, error) {
	model := a.model
	if opts.Model != "" {
		model = opts.Model
	}

	system, turns := toAnthropicMessages(messages)
	if len(turns) == 0 {
		return nil, core.NewGenerationError(a.Name(), model, errors.New("no user message"))
	}

	temperature := opts.Temperature
	if temperature > 1 {
		temperature = 1
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(opts.MaxTokens),
		Messages:    turns,
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, core.NewGenerationError(a.Name(), model, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if resp.Model != "" {
		model = string(resp.Model)
	}

	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &core.GenerationResult{
		Content: sb.String(),
		Backend: a.Name(),
		Model:   model,
		Usage: core.Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
		Metadata: map[string]string{
			"id":          resp.ID,
			"stop_reason": string(resp.StopReason),
		},
	}, nil
}

// toAnthropicMessages lifts system messages into the system prompt and
// folds consecutive same-role turns, which the Messages API rejects.
func toAnthropicMessages(messages []core.Message) (string, []anthropic.MessageParam) {
	var system []string
	type turn struct {
		role core.Role
		text []string
	}
	var turns []turn

	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			system = append(system, m.Content)
		case core.RoleUser, core.RoleAssistant:
			if len(turns) == 0 && m.Role == core.RoleAssistant {
				continue
			}
			if n := len(turns); n > 0 && turns[n-1].role == m.Role {
				turns[n-1].text = append(turns[n-1].text, m.Content)
				continue
			}
			turns = append(turns, turn{role: m.Role, text: []string{m.Content}})
		}
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == core.RoleUser {
			out = append(out, anthropic.NewUserMessage(block))
		} else {
			out = append(out, anthropic.NewAssistantMessage(block))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func (a *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (a *Anthropic) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	_, err := a.ListModels(ctx)
	return err == nil
}

func (a *Anthropic) Close() error {
	a.http.CloseIdleConnections()
	return nil
}
