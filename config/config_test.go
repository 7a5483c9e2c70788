package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "PORT", "DB_MAX_CONNS", "TOKEN_TTL", "APPROVAL_DEADLINE_DAYS",
		"STRICT_TRANSITIONS", "OUTBOX_RELAY_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_ATTEMPTS",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/docflow")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 7, cfg.Approval.DeadlineDays)
	assert.False(t, cfg.Approval.StrictTransitions)
	assert.Zero(t, cfg.Outbox.RelayInterval)
	assert.Equal(t, 20, cfg.Outbox.BatchSize)
	assert.Equal(t, 5, cfg.Outbox.MaxAttempts)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/docflow")
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("APPROVAL_DEADLINE_DAYS", "14")
	t.Setenv("STRICT_TRANSITIONS", "true")
	t.Setenv("OUTBOX_RELAY_INTERVAL", "500ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, 14, cfg.Approval.DeadlineDays)
	assert.True(t, cfg.Approval.StrictTransitions)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.RelayInterval)
}

func TestFromEnv_RequiredAndMalformed(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/docflow")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/docflow")
	t.Setenv("TOKEN_TTL", "forever")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "TOKEN_TTL")

	t.Setenv("TOKEN_TTL", "")
	t.Setenv("STRICT_TRANSITIONS", "sometimes")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "STRICT_TRANSITIONS")

	t.Setenv("STRICT_TRANSITIONS", "")
	t.Setenv("DB_MAX_CONNS", "-1")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "DB_MAX_CONNS")
}
