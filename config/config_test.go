package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "gorm", cfg.Backend.Kind)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 4*time.Second, cfg.Sync.SessionPoll)
	assert.Equal(t, 15, cfg.Day.TravelBufferMin)
	assert.Equal(t, 35, cfg.Day.DefaultEstMinutes)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
backend:
  kind: rest
  url: https://example.supabase.co
sync:
  enabled: true
  interval_seconds: 5
  workers: 2
day:
  timezone: America/Denver
  travel_buffer_min: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("AXIS_BACKEND_KEY", "anon-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "rest", cfg.Backend.Kind)
	assert.Equal(t, "https://example.supabase.co", cfg.Backend.URL)
	assert.Equal(t, "anon-key", cfg.Backend.Key)
	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 2, cfg.Sync.Workers)
	assert.Equal(t, 20, cfg.Day.TravelBufferMin)
	assert.Equal(t, "America/Denver", cfg.Day.Location().String())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDayConfig_LocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, DayConfig{Timezone: "Nowhere/Invalid"}.Location())
}
