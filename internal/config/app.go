package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/companion/pkg/log"
)

const (
	MinQueueTimeout = 8 * time.Second
	MaxQueueTimeout = 20 * time.Second
)

type AppConfig struct {
	RuntimePath string `env:"COMPANION_RUNTIME_PATH" envDefault:".companion"`
	Persona     string `env:"COMPANION_PERSONA" envDefault:"default"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"ENABLE_CLI" envDefault:"true"`
	EnableHTTP     bool `env:"ENABLE_HTTP" envDefault:"false"`

	// Context Management
	MaxGroups int `env:"MAX_GROUPS" envDefault:"10"`

	// Message Queue
	QueueTimeout time.Duration `env:"QUEUE_TIMEOUT" envDefault:"8s"`
	QueueWorkers int           `env:"QUEUE_WORKERS" envDefault:"4"`

	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"file"`
	DatabaseURL    string `env:"DATABASE_URL" secret:"true"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.normalize(ctx)
	return c
}

func (c *AppConfig) normalize(ctx context.Context) {
	logger := log.FromCtx(ctx)

	if !filepath.IsAbs(c.RuntimePath) {
		c.RuntimePath = GetRuntimePath()
	}

	if c.QueueTimeout < MinQueueTimeout || c.QueueTimeout > MaxQueueTimeout {
		clamped := min(max(c.QueueTimeout, MinQueueTimeout), MaxQueueTimeout)
		logger.Warn().
			Dur("configured", c.QueueTimeout).
			Dur("used", clamped).
			Msg("queue timeout out of range")
		c.QueueTimeout = clamped
	}
	if c.MaxGroups <= 0 {
		c.MaxGroups = 10
	}
	if c.QueueWorkers <= 0 {
		c.QueueWorkers = 1
	}
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetMaxGroups() int {
	return c.MaxGroups
}

func (c AppConfig) GetPersonaDir() string {
	return filepath.Join(c.RuntimePath, "avatars", c.Persona)
}

func (c AppConfig) GetPersonaPath() string {
	return filepath.Join(c.GetPersonaDir(), "avatar.md")
}

func (c AppConfig) GetBasePromptPath() string {
	return filepath.Join(c.RuntimePath, "base", "base.md")
}

func (c AppConfig) GetGroupPromptPath() string {
	return filepath.Join(c.RuntimePath, "base", "group.md")
}

func (c AppConfig) GetMemoryPromptPath() string {
	return filepath.Join(c.RuntimePath, "base", "memory.md")
}

func (c AppConfig) GetDiaryPromptPath() string {
	return filepath.Join(c.RuntimePath, "base", "diary.md")
}

func (c AppConfig) GetReminderPromptPath() string {
	return filepath.Join(c.RuntimePath, "base", "reminder.md")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "companion.db")
}

func (c AppConfig) IsTelegramSelected() bool {
	return c.EnableTelegram
}
