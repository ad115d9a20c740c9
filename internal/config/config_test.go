package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, filepath.Join("/tmp/state", "evcal"), cfg.DataDir)
	assert.True(t, cfg.Reminders.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Reminders.Lead())
	assert.Equal(t, "@every 1m", cfg.Reminders.Scan)
	assert.Nil(t, cfg.BasicAuth)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
week_start: Monday
data_dir: /var/lib/evcal
reminders:
  enabled: true
  lead_minutes: 30
csv:
  export_ids: true
basic_auth:
  username: ""
  password: ""
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, time.Monday, cfg.WeekStartDay())
	assert.Equal(t, "/var/lib/evcal", cfg.DataDir)
	assert.Equal(t, 5, cfg.Reminders.LeadMinutes)
	assert.Equal(t, "@every 1m", cfg.Reminders.Scan)
	assert.True(t, cfg.CSV.ExportIDs)
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	t.Setenv("EVCAL_LISTEN", "0.0.0.0:7000")
	t.Setenv("EVCAL_TIMEZONE", "Asia/Seoul")
	t.Setenv("EVCAL_REMINDERS_ENABLED", "false")
	t.Setenv("EVCAL_REMINDERS_LEAD_MINUTES", "2")
	t.Setenv("EVCAL_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("EVCAL_BASIC_AUTH_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.False(t, cfg.Reminders.Enabled)
	assert.Equal(t, 2, cfg.Reminders.LeadMinutes)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, "secret", cfg.BasicAuth.Password)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg.Timezone = "Nowhere/Special"
	loc, err = cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}
