package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.ProcessingTimeout)
	assert.Equal(t, 900*time.Second, cfg.ReminderTime)
	assert.Equal(t, 1200*time.Second, cfg.ExpiryTime)
	assert.Equal(t, "yolda.db", cfg.DBName)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.IsDevelopment())
}

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "test-token")
	t.Setenv("CHANNEL_ID", "-1001234567890")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("PROCESSING_TIMEOUT", "60")
	t.Setenv("ORDER_REMINDER_TIME", "2m")
	t.Setenv("ORDER_EXPIRY_TIME", "240")
	t.Setenv("PORT", "9090")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, int64(-1001234567890), cfg.ChannelID)
	assert.Equal(t, int64(42), cfg.OwnerTelegramID)
	assert.Equal(t, 60*time.Second, cfg.ProcessingTimeout)
	assert.Equal(t, 2*time.Minute, cfg.ReminderTime)
	assert.Equal(t, 240*time.Second, cfg.ExpiryTime)
	assert.Equal(t, ":9090", cfg.Port)

	require.NoError(t, cfg.ValidateConfig())
}

func TestValidateConfig(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	// Missing token and channel id
	assert.Error(t, cfg.ValidateConfig())

	cfg.Token = "tok"
	cfg.ChannelID = -100123
	require.NoError(t, cfg.ValidateConfig())

	cfg.ExpiryTime = cfg.ReminderTime
	assert.Error(t, cfg.ValidateConfig())
}
