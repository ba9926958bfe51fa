package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOQR_QR_SALT", "config-test-salt-0123456789abcdef")
	t.Setenv("GOQR_JWT_SECRET", "config-test-jwt-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOQR_USERS", "alice:correct-horse,bob:battery-staple")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "device-login", cfg.QR.DefaultRoute)
	assert.Equal(t, "/qr/confirm", cfg.QR.Routes["device-login"])
	assert.Equal(t, 120*time.Second, cfg.QR.TTL)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, map[string]string{"alice": "correct-horse", "bob": "battery-staple"}, cfg.Users)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GOQR_QR_TTL=45s\nGOQR_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("GOQR_QR_TTL")
		_ = os.Unsetenv("GOQR_LOG_LEVEL")
	})

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.QR.TTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("GOQR_QR_SALT", "config-test-salt-0123456789abcdef")

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownDefaultRoute(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOQR_QR_DEFAULT_ROUTE", "nope")

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "nope")
}
