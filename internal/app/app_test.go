package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planextract/internal/app"
	"planextract/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := app.NewLogger(&config.LogConfig{Level: "WARN", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	logger, err = app.NewLogger(&config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := app.NewLogger(&config.LogConfig{Level: "loud"})
	assert.ErrorContains(t, err, "log.level")
}
