package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("ROOM_CLEANUP_DELAY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 60*time.Second, cfg.RoomCleanupDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ROOM_CLEANUP_DELAY", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.RoomCleanupDelay)
}

func TestLoadRejectsMalformedCleanupDelay(t *testing.T) {
	t.Setenv("ROOM_CLEANUP_DELAY", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_CLEANUP_DELAY")
}

func TestLoadRejectsNonPositiveCleanupDelay(t *testing.T) {
	t.Setenv("ROOM_CLEANUP_DELAY", "-5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}
