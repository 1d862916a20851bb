package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	runtime := t.TempDir()
	t.Setenv("COMPANION_RUNTIME_PATH", runtime)

	cfg := NewAppConfig(context.Background())

	assert.Equal(t, runtime, cfg.GetRuntimePath())
	assert.Equal(t, "default", cfg.Persona)
	assert.Equal(t, 10, cfg.GetMaxGroups())
	assert.Equal(t, 8*time.Second, cfg.QueueTimeout)
	assert.Equal(t, "file", cfg.StorageBackend)
}

func TestNewAppConfig_QueueTimeoutRange(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want time.Duration
	}{
		{name: "below_range", env: "3s", want: MinQueueTimeout},
		{name: "in_range", env: "12s", want: 12 * time.Second},
		{name: "above_range", env: "45s", want: MaxQueueTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COMPANION_RUNTIME_PATH", t.TempDir())
			t.Setenv("QUEUE_TIMEOUT", tt.env)

			cfg := NewAppConfig(context.Background())
			assert.Equal(t, tt.want, cfg.QueueTimeout)
		})
	}
}

func TestAppConfig_Paths(t *testing.T) {
	cfg := AppConfig{RuntimePath: "/srv/companion", Persona: "mono"}

	assert.Equal(t, filepath.Join("/srv/companion", "avatars", "mono", "avatar.md"), cfg.GetPersonaPath())
	assert.Equal(t, filepath.Join("/srv/companion", "base", "base.md"), cfg.GetBasePromptPath())
	assert.Equal(t, filepath.Join("/srv/companion", "base", "group.md"), cfg.GetGroupPromptPath())
	assert.Equal(t, filepath.Join("/srv/companion", "base", "memory.md"), cfg.GetMemoryPromptPath())
	assert.Equal(t, filepath.Join("/srv/companion", "base", "diary.md"), cfg.GetDiaryPromptPath())
	assert.Equal(t, filepath.Join("/srv/companion", "base", "reminder.md"), cfg.GetReminderPromptPath())
	assert.Equal(t, filepath.Join("/srv/companion", "companion.db"), cfg.GetDatabasePath())
}

func TestNewBehaviorConfig(t *testing.T) {
	t.Setenv("AUTOSEND_ENABLED", "true")
	t.Setenv("AUTOSEND_TARGETS", "telegram:42,cli:cli-local")
	t.Setenv("AUTOSEND_MIN_DELAY", "3h")
	t.Setenv("AUTOSEND_MAX_DELAY", "1h")

	cfg := NewBehaviorConfig(context.Background())
	assert.True(t, cfg.AutoSend)
	assert.Equal(t, []string{"telegram:42", "cli:cli-local"}, cfg.AutoSendTargets)
	assert.Equal(t, 3*time.Hour, cfg.AutoSendMinDelay)
	assert.Equal(t, 3*time.Hour, cfg.AutoSendMaxDelay)
	assert.Equal(t, "22:00", cfg.QuietStart)
	assert.False(t, cfg.Reminders)
}

func TestNewLLMConfig(t *testing.T) {
	t.Setenv("LLM_STRATEGY", "prompt")
	t.Setenv("LLM_MODEL", "library/qwen2.5")
	t.Setenv("LLM_ATTEMPTS", "0")

	cfg := NewLLMConfig(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, StrategyPrompt, cfg.GetStrategy())
	assert.Equal(t, "library/qwen2.5", cfg.GetModel())
	assert.Equal(t, 3, cfg.Attempts)
}
