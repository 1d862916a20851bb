package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/companion/pkg/log"
)

// BehaviorConfig controls what the persona does on its own: reaching out
// after a silence and playing back reminders.
type BehaviorConfig struct {
	AutoSend bool `env:"AUTOSEND_ENABLED" envDefault:"false"`
	// AutoSendTargets are transport:chat pairs, e.g. telegram:123456.
	AutoSendTargets  []string      `env:"AUTOSEND_TARGETS" envSeparator:","`
	AutoSendMinDelay time.Duration `env:"AUTOSEND_MIN_DELAY" envDefault:"2h"`
	AutoSendMaxDelay time.Duration `env:"AUTOSEND_MAX_DELAY" envDefault:"5h"`
	AutoSendContent  string        `env:"AUTOSEND_CONTENT"`

	// Quiet hours as HH:MM. The window may wrap past midnight.
	QuietStart string `env:"QUIET_START" envDefault:"22:00"`
	QuietEnd   string `env:"QUIET_END" envDefault:"08:00"`

	Reminders bool `env:"ENABLE_REMINDERS" envDefault:"false"`
}

func NewBehaviorConfig(ctx context.Context) *BehaviorConfig {
	c := &BehaviorConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Behavior config")
	}
	c.normalize(ctx)
	return c
}

func (c *BehaviorConfig) normalize(ctx context.Context) {
	if c.AutoSendMinDelay <= 0 {
		c.AutoSendMinDelay = 2 * time.Hour
	}
	if c.AutoSendMaxDelay < c.AutoSendMinDelay {
		log.FromCtx(ctx).Warn().
			Dur("min", c.AutoSendMinDelay).
			Dur("max", c.AutoSendMaxDelay).
			Msg("autosend max delay below min, using min")
		c.AutoSendMaxDelay = c.AutoSendMinDelay
	}
}
