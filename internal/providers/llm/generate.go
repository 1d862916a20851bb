package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/prompt"
)

const ollamaChatPath = "/api/chat"

// PromptGenerate targets Ollama-style servers. The whole conversation is
// flattened into one user message.
type PromptGenerate struct {
	baseProvider
}

func NewPromptGenerate(opts Options) *PromptGenerate {
	p := &PromptGenerate{baseProvider: newBaseProvider(opts)}
	// Accept both "http://host:11434" and "http://host:11434/api/chat".
	p.baseURL = strings.TrimSuffix(p.baseURL, ollamaChatPath)
	return p
}

func (p *PromptGenerate) Name() string {
	return "prompt"
}

func (p *PromptGenerate) Complete(ctx context.Context, req core.Request) (string, error) {
	history := req.History
	// The new message is rendered separately as the question.
	if n := len(history); n > 0 && history[n-1].Role == core.RoleUser && history[n-1].Content == req.Message {
		history = history[:n-1]
	}

	payload := map[string]any{
		"model": modelName(p.model),
		"messages": []core.Message{{
			Role:    core.RoleUser,
			Content: prompt.FlattenMessages(req.System, history, req.Message),
		}},
		"stream": false,
		"options": map[string]any{
			"temperature": p.temperature,
			"num_predict": p.maxTokens,
		},
	}

	resp, err := p.doRequest(ctx, http.MethodPost, ollamaChatPath, payload, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var result struct {
		Message *core.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if result.Message == nil {
		return "", fmt.Errorf("unexpected response: %s", errorText(data))
	}
	return result.Message.Content, nil
}

// modelName drops registry path prefixes ("library/qwen2.5" -> "qwen2.5").
func modelName(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		return model[i+1:]
	}
	return model
}
