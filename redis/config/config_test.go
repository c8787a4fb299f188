package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearRedisEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"REDIS_URL", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"REDIS_WORKERS", "REDIS_RETRY_INTERVAL", "REDIS_MAX_RETRIES", "REDIS_RETENTION_DAYS",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearRedisEnv(t)

	cfg, err := NewRedisConfig()
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", cfg.GetRedisAddr())
	require.Equal(t, 0, cfg.DB)
	require.Equal(t, 10, cfg.Workers)
	require.Equal(t, 60*time.Second, cfg.RetryInterval)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 7*24*time.Hour, cfg.RetentionPeriod)
	require.Equal(t, DefaultQueuePriorities, cfg.QueuePriorities)
}

func TestRedisURL(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_URL", "redis://:secret@cache.internal:6380/3")

	cfg, err := NewRedisConfig()
	require.NoError(t, err)
	require.Equal(t, "cache.internal", cfg.Host)
	require.Equal(t, 6380, cfg.Port)
	require.Equal(t, "secret", cfg.Password)
	require.Equal(t, 3, cfg.DB)
}

func TestRedisURLWithoutPort(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_URL", "redis://cache.internal")

	cfg, err := NewRedisConfig()
	require.NoError(t, err)
	require.Equal(t, "cache.internal:6379", cfg.GetRedisAddr())
}

func TestIndividualVars(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_HOST", "10.0.0.5")
	t.Setenv("REDIS_PORT", "6390")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_WORKERS", "4")
	t.Setenv("REDIS_RETRY_INTERVAL", "30s")
	t.Setenv("REDIS_RETENTION_DAYS", "14")

	cfg, err := NewRedisConfig()
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5:6390", cfg.GetRedisAddr())
	require.Equal(t, 2, cfg.DB)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 30*time.Second, cfg.RetryInterval)
	require.Equal(t, 14*24*time.Hour, cfg.RetentionPeriod)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "REDIS_PORT", value: "70000"},
		{name: "port not a number", key: "REDIS_PORT", value: "x"},
		{name: "db out of range", key: "REDIS_DB", value: "16"},
		{name: "workers zero", key: "REDIS_WORKERS", value: "0"},
		{name: "bad retry interval", key: "REDIS_RETRY_INTERVAL", value: "soon"},
		{name: "retention out of range", key: "REDIS_RETENTION_DAYS", value: "400"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearRedisEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := NewRedisConfig()
			require.Error(t, err)
		})
	}
}

func TestIPv6AddrBracketed(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("REDIS_HOST", "::1")

	cfg, err := NewRedisConfig()
	require.NoError(t, err)
	require.Equal(t, "[::1]:6379", cfg.GetRedisAddr())
}
