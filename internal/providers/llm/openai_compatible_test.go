package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/config"
	"github.com/sandevgo/rpgai/internal/core"
)

func TestOpenRouter_GenerateSendsHeaders(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-or", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.test", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "rpgai", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "gen-1",
			"model": "meta-llama/llama-3.1-8b-instruct:free",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Greetings."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 2, "total_tokens": 22}
		}`))
	}))
	defer srv.Close()

	o := NewOpenRouter(config.OpenRouterConfig{
		APIKey:  "sk-or",
		Model:   "meta-llama/llama-3.1-8b-instruct:free",
		BaseURL: srv.URL + "/v1",
		Referer: "https://example.test",
		Title:   "rpgai",
		Timeout: time.Second,
	})

	res, err := o.Generate(context.Background(),
		[]core.Message{core.SystemMessage("sys"), core.UserMessage("hi")},
		core.GenerateOptions{Temperature: 0.5, MaxTokens: 64},
	)
	require.NoError(t, err)

	assert.Equal(t, "Greetings.", res.Content)
	assert.Equal(t, "openrouter", res.Backend)
	assert.Equal(t, core.Usage{PromptTokens: 20, CompletionTokens: 2, TotalTokens: 22}, res.Usage)
	assert.Equal(t, "stop", res.Metadata["finish_reason"])
	assert.Equal(t, float64(64), body["max_tokens"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenAI_ErrorCarriesBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	o := NewOpenAI(config.OpenAIConfig{APIKey: "bad", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	_, err := o.Generate(context.Background(), []core.Message{core.UserMessage("hi")}, core.GenerateOptions{MaxTokens: 10})

	assert.ErrorIs(t, err, core.ErrGenerationFailed)
	var genErr *core.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "openai", genErr.Backend)
	assert.Equal(t, "gpt-4o-mini", genErr.Model)
}

func TestOpenAICompatible_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"})
	_, err := o.Generate(context.Background(), []core.Message{core.UserMessage("hi")}, core.GenerateOptions{MaxTokens: 10})
	assert.ErrorContains(t, err, "empty choices")
}

func TestOpenAICompatible_Models(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	models, err := o.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini"}, models)
	assert.True(t, o.Health(context.Background()))
}

// stallingServer answers nothing until the client gives up.
func stallingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func shortHealthTimeout(t *testing.T) {
	t.Helper()
	prev := healthTimeout
	healthTimeout = 50 * time.Millisecond
	t.Cleanup(func() { healthTimeout = prev })
}

func TestOpenAICompatible_HealthIsBounded(t *testing.T) {
	shortHealthTimeout(t)
	srv := stallingServer(t)

	o := NewOpenAI(config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: time.Minute})
	start := time.Now()
	assert.False(t, o.Health(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}
