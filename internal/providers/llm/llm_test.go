package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() core.Request {
	return core.Request{
		System: "You are Mono.",
		History: []core.Message{
			{Role: core.RoleUser, Content: "hi"},
			{Role: core.RoleAssistant, Content: "hello"},
			{Role: core.RoleUser, Content: "how are you?"},
		},
		Message: "how are you?",
	}
}

func TestChatCompletions_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"fine, thanks"}}]}`)
	}))
	defer srv.Close()

	strategy := NewChatCompletions(Options{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-4o-mini", MaxTokens: 100, Temperature: 0.7})

	reply, err := strategy.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Equal(t, 0.95, got["top_p"])
	assert.Equal(t, 0.2, got["frequency_penalty"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "how are you?", messages[3].(map[string]any)["content"])
}

func TestChatCompletions_TextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"text":"legacy reply"}]}`)
	}))
	defer srv.Close()

	reply, err := NewChatCompletions(Options{BaseURL: srv.URL}).Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "legacy reply", reply)
}

func TestChatCompletions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":"slow down"}`,
			wantErr: `http 429: {"error":"slow down"}`,
		},
		{
			name:    "html gateway page",
			status:  http.StatusBadGateway,
			body:    "<html><body><h1>Bad Gateway</h1></body></html>",
			wantErr: "Bad Gateway",
		},
		{
			name:    "empty choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: "empty choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewChatCompletions(Options{BaseURL: srv.URL}).Complete(context.Background(), testRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NotContains(t, err.Error(), "<h1>")
		})
	}
}

func TestPromptGenerate_Complete(t *testing.T) {
	var got struct {
		Model    string         `json:"model"`
		Messages []core.Message `json:"messages"`
		Stream   bool           `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"message":{"role":"assistant","content":"all good"},"done":true}`)
	}))
	defer srv.Close()

	strategy := NewPromptGenerate(Options{BaseURL: srv.URL + "/api/chat", Model: "library/qwen2.5"})

	reply, err := strategy.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "all good", reply)

	assert.Equal(t, "qwen2.5", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, core.RoleUser, got.Messages[0].Role)

	content := got.Messages[0].Content
	assert.True(t, strings.HasPrefix(content, "You are Mono."))
	assert.Contains(t, content, "user: hi\nassistant: hello")
	assert.True(t, strings.HasSuffix(content, "User question: how are you?"))
	assert.Equal(t, 1, strings.Count(content, "how are you?"))
}

func TestNewStrategy(t *testing.T) {
	ctx := context.Background()

	s, err := NewStrategy(ctx, &config.LLMConfig{Strategy: config.StrategyChat})
	require.NoError(t, err)
	assert.Equal(t, "chat", s.Name())

	s, err = NewStrategy(ctx, &config.LLMConfig{Strategy: config.StrategyPrompt})
	require.NoError(t, err)
	assert.Equal(t, "prompt", s.Name())

	_, err = NewStrategy(ctx, &config.LLMConfig{Strategy: "telepathy"})
	assert.Error(t, err)
}

func TestErrorText_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes, so the byte limit lands inside a rune.
	body := strings.Repeat("a", maxErrorBody-1) + strings.Repeat("é", 10)

	text := errorText([]byte(body))
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasSuffix(text, "a..."))
	assert.LessOrEqual(t, len(text), maxErrorBody+len("..."))

	assert.Equal(t, "short", errorText([]byte("  short  ")))
}
