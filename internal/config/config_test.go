package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/recrutech-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "recrutech-auth", c.GetIssuer())
	require.Equal(t, "recrutech-api", c.GetAudience())
	require.Equal(t, 15*time.Minute, c.GetAccessTokenExpiry())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenExpiry())
	require.True(t, c.GetRateLimitEnabled())
	require.Equal(t, 10, c.GetRateLimit())
	require.Equal(t, 60*time.Second, c.GetRateLimitRefreshPeriod())
	require.Equal(t, 30*time.Second, c.GetRateLimitTimeout())
	require.Equal(t, config.BackendMemory, c.GetLedgerBackend())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("RATE_LIMIT_LIMIT", "3")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c := config.New()
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 5*time.Minute, c.GetAccessTokenExpiry())
	require.Equal(t, 3, c.GetRateLimit())
	require.False(t, c.GetRateLimitEnabled())
	require.Equal(t, config.BackendPostgres, c.GetLedgerBackend())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.Len(t, c.GetAllowedOrigins(), 2)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_REFRESH_TTL", "soon")
	t.Setenv("RATE_LIMIT_LIMIT", "ten")

	c := config.New()
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenExpiry())
	require.Equal(t, 10, c.GetRateLimit())
}
