package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/prompt"
)

// ChatCompletions talks to any OpenAI-compatible /chat/completions endpoint
// and sends the system prompt plus history as structured messages.
type ChatCompletions struct {
	baseProvider
}

func NewChatCompletions(opts Options) *ChatCompletions {
	return &ChatCompletions{baseProvider: newBaseProvider(opts)}
}

func (c *ChatCompletions) Name() string {
	return "chat"
}

func (c *ChatCompletions) Complete(ctx context.Context, req core.Request) (string, error) {
	messages := prompt.BuildMessages(req.System, req.History, req.Message, 0)

	payload := map[string]any{
		"model":             c.model,
		"messages":          messages,
		"temperature":       c.temperature,
		"max_tokens":        c.maxTokens,
		"top_p":             0.95,
		"frequency_penalty": 0.2,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", payload, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return parseChatResponse(resp)
}

func parseChatResponse(resp *http.Response) (string, error) {
	data, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message *core.Message `json:"message"`
			Text    string        `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices: %s", errorText(data))
	}

	choice := result.Choices[0]
	if choice.Message != nil && choice.Message.Content != "" {
		return choice.Message.Content, nil
	}
	return choice.Text, nil
}
