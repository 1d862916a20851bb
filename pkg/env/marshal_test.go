package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Model   string        `env:"LLM_MODEL,notEmpty"`
	APIKey  string        `env:"LLM_API_KEY" secret:"true"`
	Timeout time.Duration `env:"LLM_TIMEOUT"`
	Temp    float64       `env:"LLM_TEMPERATURE"`
	Debug   bool          `env:"DEBUG"`
	Unset   int           `env:"UNSET"`
	hidden  string        `env:"HIDDEN"`
}

func TestMarshalEnv(t *testing.T) {
	s := &sample{Model: "gpt-4o-mini", APIKey: "sk-123", Timeout: 90 * time.Second, Temp: 1.1, Debug: true, hidden: "x"}

	got, err := MarshalEnv(s)
	require.NoError(t, err)
	assert.Equal(t, "LLM_MODEL=gpt-4o-mini\nLLM_API_KEY=sk-123\nLLM_TIMEOUT=1m30s\nLLM_TEMPERATURE=1.1\nDEBUG=true\n", got)

	masked, err := MarshalEnvMasked(s)
	require.NoError(t, err)
	assert.Contains(t, masked, "LLM_API_KEY=****\n")
	assert.NotContains(t, masked, "sk-123")
}

func TestMarshalEnv_RejectsNonPointer(t *testing.T) {
	_, err := MarshalEnv(sample{})
	assert.Error(t, err)
}

func TestMarshalEnv_Slices(t *testing.T) {
	s := &struct {
		Groups []int64 `env:"GROUP_IDS"`
		Empty  []int64 `env:"EMPTY_IDS"`
	}{Groups: []int64{-100, 42}}

	got, err := MarshalEnv(s)
	require.NoError(t, err)
	assert.Equal(t, "GROUP_IDS=-100,42\n", got)
}
