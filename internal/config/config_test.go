package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SLOT_GRANULARITY_MINUTES", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 30, cfg.SlotGranularityMinutes)
	assert.Equal(t, 10*time.Second, cfg.SlotLockTTL)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 10, cfg.OutboxMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.OutboxRetryBackoff)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.ScheduleEventsQueueURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SLOT_GRANULARITY_MINUTES", "15")
	t.Setenv("SLOT_LOCK_TTL", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CLINIC_TIMEZONE", "Europe/Paris")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "4")
	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "postgres://user@host/db", cfg.DatabaseURL)
	assert.Equal(t, 15, cfg.SlotGranularityMinutes)
	assert.Equal(t, 3*time.Second, cfg.SlotLockTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.0001)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, 4, cfg.OutboxMaxAttempts)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SLOT_GRANULARITY_MINUTES", "thirty")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	cfg := Load()

	assert.Equal(t, 30, cfg.SlotGranularityMinutes)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := &Config{ClinicTimezone: "Mars/Olympus"}
	_, err := cfg.Location()
	assert.Error(t, err)
}
