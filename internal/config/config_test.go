package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 100, cfg.PracticeStreakLimit)
	assert.True(t, cfg.CronEnabled)
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":18000")
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CACHE_TTL", "5s")
	t.Setenv("FEE_GRACE_DAYS", "3")
	t.Setenv("PRACTICE_STREAK_LIMIT", "365")
	t.Setenv("CRON_ENABLED", "false")
	t.Setenv("APP_TIMEZONE", "Europe/Paris")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg := Load()
	assert.Equal(t, ":18000", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.DBUrl)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.FeeGraceDays)
	assert.Equal(t, 365, cfg.PracticeStreakLimit)
	assert.False(t, cfg.CronEnabled)
	assert.Equal(t, "Europe/Paris", cfg.Location().String())
	assert.True(t, cfg.GoogleEnabled())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Special"}
	assert.Equal(t, time.UTC, cfg.Location())
}
