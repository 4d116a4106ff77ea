package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tournaments?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 128, cfg.SyncGenerationThreshold)
	assert.Equal(t, 3, cfg.GenerationMaxAttempts)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.AutoComplete)
	assert.False(t, cfg.R2.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SYNC_GENERATION_THRESHOLD", "64")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("AUTO_COMPLETE", "false")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 64, cfg.SyncGenerationThreshold)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.AutoComplete)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SERVER_PORT", "70000"},
		{"SERVER_PORT", "http"},
		{"LOG_LEVEL", "chatty"},
		{"GENERATION_WORKERS", "0"},
		{"SWEEP_INTERVAL", "-1m"},
		{"AUTO_COMPLETE", "maybe"},
		{"ENROLL_RATE_LIMIT", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET_KEY", "secret")
	_, err := Load()
	require.Error(t, err)
}
