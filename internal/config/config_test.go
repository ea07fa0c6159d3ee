package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/xlsx-validator-shell/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("MAX_REFRESH_FAILURES", "")

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, 6*time.Second, c.GetRefreshInterval())
	require.Equal(t, 70, c.GetMinValidity())
	require.Equal(t, "login-required", c.GetOnLoad())
	require.Zero(t, c.GetMaxRefreshFailures())
}

func TestNegativeMaxRefreshFailuresDisablesThreshold(t *testing.T) {
	t.Setenv("MAX_REFRESH_FAILURES", "-2")

	c, err := config.New()
	require.NoError(t, err)
	require.Zero(t, c.GetMaxRefreshFailures())
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "prod")
	t.Setenv("MAX_REFRESH_FAILURES", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, 3, c.GetMaxRefreshFailures())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.Equal(t, "https://a.example.com, https://b.example.com", c.GetAllowedOrigins().String())
}

func TestNewRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_REFRESH_FAILURES", "many")

	_, err := config.New()
	require.Error(t, err)
}
