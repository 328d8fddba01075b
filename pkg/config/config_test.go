package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "sunday", cfg.Calendar.WeekStart)
	assert.Equal(t, 48.0, cfg.Calendar.HourHeight)
	assert.Equal(t, 24, cfg.Calendar.DayEndHour)
	assert.True(t, cfg.Calendar.FallbackAllowed)
	assert.Equal(t, "redis", cfg.Calendar.SessionStore)
	assert.Equal(t, 30*time.Second, cfg.Calendar.DragTimeout)
	assert.Equal(t, "@every 10s", cfg.Calendar.ReaperSchedule)
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	path := writeConfig(t, `
server:
  port: 9000
database:
  driver: sqlite
  path: /tmp/calendar.db
calendar:
  week_start: monday
  hour_height: 60
  day_start_hour: 6
  day_end_hour: 20
  session_store: memory
  session_ttl: 2h
  mock_seed: 42
`)
	t.Setenv("CALENDAR_DEMO_MODE", "true")
	t.Setenv("CALENDAR_DRAG_TIMEOUT", "45s")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_USE_COMPRESSION", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/calendar.db", cfg.Database.DSN())
	assert.Equal(t, "monday", cfg.Calendar.WeekStart)
	assert.Equal(t, 60.0, cfg.Calendar.HourHeight)
	assert.Equal(t, 6, cfg.Calendar.DayStartHour)
	assert.Equal(t, 20, cfg.Calendar.DayEndHour)
	assert.Equal(t, "memory", cfg.Calendar.SessionStore)
	assert.Equal(t, 2*time.Hour, cfg.Calendar.SessionTTL)
	assert.Equal(t, uint64(42), cfg.Calendar.MockSeed)
	assert.True(t, cfg.Calendar.DemoMode)
	assert.Equal(t, 45*time.Second, cfg.Calendar.DragTimeout)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.True(t, cfg.Redis.UseCompression)
}

func TestLoadConfig_ConfigFileEnv(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	_, err := LoadConfig(writeConfig(t, "server: [\n"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "cal", SSLMode: "disable", Timezone: "UTC"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cal sslmode=disable TimeZone=UTC", c.DSN())
}
