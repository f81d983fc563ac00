package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planextract/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "openrouter", cfg.Chat.Provider)
	assert.Equal(t, 180, cfg.Chat.TimeoutSecs)
	assert.Equal(t, 4, cfg.Chat.MaxRetries)
	assert.Equal(t, 50000, cfg.Tokens.HardLimit)
	assert.Equal(t, "gemini-2.5-flash", cfg.Tokens.Model)
	assert.Equal(t, 8, cfg.Pipeline.FanoutConcurrency)
	assert.Equal(t, 4, cfg.Pipeline.AutoReadLimit)
	assert.Equal(t, config.PlanFailureAbort, cfg.Pipeline.PlanFailureMode)
	assert.Equal(t, "/tmp/llm_prompts", cfg.Pipeline.PromptLogDir)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, config.AuthModeNone, cfg.Auth.Mode)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("MODEL_ID", "anthropic/claude-sonnet-4")
	t.Setenv("VELLUM_API_KEY", "vl-key")
	t.Setenv("REDUCTO_API_KEY", "rd-key")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("TOKEN_HARD_LIMIT", "1000")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "or-key", cfg.Chat.APIKey)
	assert.Equal(t, "anthropic/claude-sonnet-4", cfg.Chat.Model)
	assert.Equal(t, "vl-key", cfg.Templates.APIKey)
	assert.Equal(t, "rd-key", cfg.OCR.APIKey)
	assert.Equal(t, "g-key", cfg.Tokens.APIKey)
	assert.Equal(t, 1000, cfg.Tokens.HardLimit)
	assert.Empty(t, cfg.MissingCredentials())
}

func TestLoad_PrefixedNameWins(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "legacy")
	t.Setenv("PLANEXTRACT_CHAT_API_KEY", "prefixed")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Chat.APIKey)
}

func TestLoad_PortFromPlatform(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Port)
}

func TestLoad_InvalidFailureMode(t *testing.T) {
	t.Setenv("PLANEXTRACT_PIPELINE_PLAN_FAILURE_MODE", "ignore")

	_, err := config.Load()
	assert.ErrorContains(t, err, "plan_failure_mode")
}

func TestLoad_JWTModeRequiresSecret(t *testing.T) {
	t.Setenv("PLANEXTRACT_AUTH_MODE", "jwt")

	_, err := config.Load()
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestChatConfig_FallbackConfig_NotConfigured(t *testing.T) {
	cfg := config.ChatConfig{
		ChatProviderConfig: config.ChatProviderConfig{Provider: "openrouter", APIKey: "k"},
	}
	assert.Nil(t, cfg.FallbackConfig())
}

func TestChatConfig_FallbackConfig_InheritsTimeouts(t *testing.T) {
	cfg := config.ChatConfig{
		ChatProviderConfig: config.ChatProviderConfig{
			Provider:    "openrouter",
			TimeoutSecs: 90,
			MaxRetries:  2,
		},
		Fallback: config.ChatProviderConfig{
			Provider: "anthropic",
			APIKey:   "sk-ant",
			Model:    "claude-sonnet-4-20250514",
		},
	}

	fb := cfg.FallbackConfig()
	require.NotNil(t, fb)
	assert.Equal(t, "anthropic", fb.Provider)
	assert.Equal(t, 90, fb.TimeoutSecs)
	assert.Equal(t, 2, fb.MaxRetries)
	// the stored fallback is untouched
	assert.Equal(t, 0, cfg.Fallback.TimeoutSecs)
}

func TestConfig_MissingCredentials(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chat.Preset = "@preset/extract"

	missing := cfg.MissingCredentials()
	assert.Contains(t, missing, "chat.api_key")
	assert.NotContains(t, missing, "chat.model")
	assert.Contains(t, missing, "templates.api_key")
	assert.Contains(t, missing, "ocr.api_key")
	assert.Contains(t, missing, "tokens.api_key")
}
