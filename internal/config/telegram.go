package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/companion/pkg/log"
)

type TelegramConfig struct {
	Token   string `env:"TELEGRAM_TOKEN,required,notEmpty" secret:"true"`
	OwnerID int64  `env:"TELEGRAM_OWNER_ID,required"`
	// GroupIDs lists group chats where every member may talk to the persona.
	GroupIDs []int64 `env:"TELEGRAM_GROUP_IDS" envSeparator:","`
}

func (c *TelegramConfig) IsAllowedGroup(chatID int64) bool {
	for _, id := range c.GroupIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	c := &TelegramConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Telegram config")
	}
	return c
}
