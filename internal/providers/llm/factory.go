package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
)

// NewStrategy binds the invocation strategy once, at construction time.
func NewStrategy(ctx context.Context, cfg *config.LLMConfig) (core.Strategy, error) {
	log.FromCtx(ctx).Info().
		Str("strategy", cfg.Strategy).
		Str("model", cfg.Model).
		Str("base_url", cfg.BaseURL).
		Msg("starting llm strategy")

	opts := Options{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}

	switch cfg.Strategy {
	case config.StrategyChat:
		return NewChatCompletions(opts), nil
	case config.StrategyPrompt:
		return NewPromptGenerate(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm strategy: %s", cfg.Strategy)
	}
}
