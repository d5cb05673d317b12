package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
)

func TestAnthropic_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Well met."}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 30, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic(config.AnthropicConfig{APIKey: "sk-ant", Model: "claude-3-5-haiku-latest"}, option.WithBaseURL(srv.URL))
	res, err := a.Generate(context.Background(), []core.Message{
		core.SystemMessage("You are a bard."),
		core.AssistantMessage("orphaned reply"),
		core.UserMessage("hello"),
		core.UserMessage("are you there?"),
	}, core.GenerateOptions{Temperature: 1.4, MaxTokens: 200})
	require.NoError(t, err)

	assert.Equal(t, "Well met.", res.Content)
	assert.Equal(t, core.Usage{PromptTokens: 30, CompletionTokens: 4, TotalTokens: 34}, res.Usage)
	assert.Equal(t, "end_turn", res.Metadata["stop_reason"])

	assert.Equal(t, float64(1), body["temperature"])
	assert.Equal(t, float64(200), body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1, "leading assistant dropped and user turns folded")
}

func TestToAnthropicMessages(t *testing.T) {
	system, turns := toAnthropicMessages([]core.Message{
		core.SystemMessage("a"),
		core.UserMessage("u1"),
		core.AssistantMessage("a1"),
		core.SystemMessage("b"),
		core.UserMessage("u2"),
	})
	assert.Equal(t, "a\n\nb", system)
	assert.Len(t, turns, 3)
}

func TestAnthropic_NoUserMessage(t *testing.T) {
	a := NewAnthropic(config.AnthropicConfig{APIKey: "k", Model: "m"})
	_, err := a.Generate(context.Background(), []core.Message{core.SystemMessage("only system")}, core.GenerateOptions{MaxTokens: 1})
	assert.ErrorIs(t, err, core.ErrGenerationFailed)
}

func TestAnthropic_HealthIsBounded(t *testing.T) {
	shortHealthTimeout(t)
	srv := stallingServer(t)

	a := NewAnthropic(config.AnthropicConfig{APIKey: "sk-ant", Timeout: time.Minute}, option.WithBaseURL(srv.URL))
	start := time.Now()
	assert.False(t, a.Health(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}
