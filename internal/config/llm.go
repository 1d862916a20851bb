package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/companion/pkg/log"
)

const (
	StrategyChat   = "chat"
	StrategyPrompt = "prompt"
)

type LLMConfig struct {
	Strategy    string        `env:"LLM_STRATEGY" envDefault:"chat"`
	BaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey      string        `env:"LLM_API_KEY" secret:"true"`
	Model       string        `env:"LLM_MODEL,notEmpty" envDefault:"gpt-4o-mini"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"2000"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"1.1"`
	Attempts    int           `env:"LLM_ATTEMPTS" envDefault:"3"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
	RetryDelay  time.Duration `env:"LLM_RETRY_DELAY" envDefault:"0s"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	return c
}

func (c LLMConfig) GetModel() string {
	return c.Model
}

func (c LLMConfig) GetStrategy() string {
	return c.Strategy
}
