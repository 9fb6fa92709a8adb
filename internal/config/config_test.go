package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GENERATE_ATTEMPTS", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg := Load()
	assert.True(t, cfg.MockAI, "mock generation without an API key")
	assert.Equal(t, 3, cfg.GenerateAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MOCK_AI", "false")
	t.Setenv("GENERATE_ATTEMPTS", "5")
	t.Setenv("GENERATE_RETRY_DELAY", "250ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SESSION_SIZE", "not-a-number")

	cfg := Load()
	assert.False(t, cfg.MockAI)
	assert.Equal(t, 5, cfg.GenerateAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.SessionSize)
}
