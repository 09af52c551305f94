package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEDTRACK_SECURITY_JWT_SECRET", "")

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "medtrack.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, filepath.Join(dir, "badger"), cfg.Storage.BadgerPath)
	assert.Equal(t, "@hourly", cfg.Storage.GCSchedule)
	assert.Equal(t, 30*time.Second, cfg.Tracker.NotificationInterval)
	assert.Equal(t, 5*time.Minute, cfg.Snooze())
	assert.Equal(t, 5, cfg.Tracker.UpcomingLimit)
	assert.True(t, cfg.Tracker.EnforceWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL())
	assert.NotEmpty(t, cfg.Security.JWTSecret)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medtrack.yaml")
	yaml := `
server:
  port: 9000
tracker:
  timezone: Europe/Berlin
  snooze_minutes: 10
  notification_interval: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("MEDTRACK_SERVER_PORT", "9100")
	t.Setenv("MEDTRACK_SECURITY_JWT_SECRET", "s3cret")

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
	assert.Equal(t, 10*time.Minute, cfg.Snooze())
	assert.Equal(t, time.Minute, cfg.Tracker.NotificationInterval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero interval", func(c *Config) { c.Tracker.NotificationInterval = 0 }},
		{"zero snooze", func(c *Config) { c.Tracker.SnoozeMinutes = 0 }},
		{"zero upcoming limit", func(c *Config) { c.Tracker.UpcomingLimit = 0 }},
		{"zero token ttl", func(c *Config) { c.Security.TokenTTLHours = 0 }},
		{"zero auth burst", func(c *Config) { c.Security.AuthBurst = 0 }},
		{"unknown timezone", func(c *Config) { c.Tracker.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfigInvalid))
		})
	}

	cfg := Default(t.TempDir())
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Security.JWTSecret, 64)
}
