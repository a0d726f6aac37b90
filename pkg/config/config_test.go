package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharesphere/sharesphere/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SHARESPHERE_POSTGRES_URL", "postgres://localhost/sharesphere")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Minute, cfg.Authz.SnapshotTTL)
	assert.Equal(t, 4096, cfg.Authz.UserLockCacheSize)
	assert.Equal(t, "@every 10m", cfg.Authz.BanSweepSchedule)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.OIDCEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SHARESPHERE_POSTGRES_URL", "postgres://localhost/sharesphere")
	t.Setenv("SHARESPHERE_PORT", "9999")
	t.Setenv("SHARESPHERE_LOG_LEVEL", "debug")
	t.Setenv("SHARESPHERE_SNAPSHOT_TTL", "1m")
	t.Setenv("SHARESPHERE_USER_LOCK_CACHE_SIZE", "128")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, time.Minute, cfg.Authz.SnapshotTTL)
	assert.Equal(t, 128, cfg.Authz.UserLockCacheSize)
}

func TestLoadConfigMissingPostgresURL(t *testing.T) {
	t.Setenv("SHARESPHERE_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")
}

func TestValidateSamePorts(t *testing.T) {
	t.Setenv("SHARESPHERE_POSTGRES_URL", "postgres://localhost/sharesphere")
	t.Setenv("SHARESPHERE_PORT", "8080")
	t.Setenv("SHARESPHERE_HEALTH_PORT", "8080")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestValidatePartialOIDC(t *testing.T) {
	t.Setenv("SHARESPHERE_POSTGRES_URL", "postgres://localhost/sharesphere")
	t.Setenv("SHARESPHERE_OIDC_ISSUER", "https://issuer.example.com")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OIDC")
}

func TestOIDCEnabled(t *testing.T) {
	t.Setenv("SHARESPHERE_POSTGRES_URL", "postgres://localhost/sharesphere")
	t.Setenv("SHARESPHERE_OIDC_ISSUER", "https://issuer.example.com")
	t.Setenv("SHARESPHERE_OIDC_CLIENT_ID", "sharesphere")
	t.Setenv("SHARESPHERE_OIDC_CLIENT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.OIDCEnabled())
}
