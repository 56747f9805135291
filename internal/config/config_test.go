package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "db", cfg.SalesSource)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.InDelta(t, 1.0, cfg.DiscrepancyWarningPct, 1e-9)
	assert.InDelta(t, 5.0, cfg.DiscrepancyCriticalPct, 1e-9)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DISCREPANCY_CRITICAL_PCT", "7.5")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Empty(t, cfg.RedisURL)
	assert.InDelta(t, 7.5, cfg.DiscrepancyCriticalPct, 1e-9)
	assert.Equal(t, "smtp.example.com", cfg.SMTPHost)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
