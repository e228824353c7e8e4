package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_MODELS", "")
	t.Setenv("ASSIGNMENT_REMOVAL_POLICY", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, 168*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "mistral", cfg.AI.Provider)
	assert.Equal(t, defaultMistralModels, cfg.AI.Models)
	assert.Equal(t, 3, cfg.AI.Attempts)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "prune_idle", cfg.Assignment.RemovalPolicy)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("AI_MODELS", "")
	t.Setenv("AI_BACKOFF", "250ms")
	t.Setenv("AI_TIMEOUT", "not-a-duration")
	t.Setenv("CLIENT_URL", "https://app.abricot.example")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, defaultGeminiModels, cfg.AI.Models)
	assert.Equal(t, 250*time.Millisecond, cfg.AI.Backoff)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Subset(t, cfg.App.AllowedOrigins, []string{"https://app.abricot.example", "https://a.example", "https://b.example"})
	assert.NotContains(t, cfg.App.AllowedOrigins, "")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "dev.db"}
	assert.Equal(t, "dev.db", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "abricot", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=abricot sslmode=disable", pg.DSN())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b ", nil))
	assert.Equal(t, []string{"x"}, splitList("", []string{"x"}))
}
