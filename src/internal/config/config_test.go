package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
app:
  name: loadhub-test
server:
  port: "9090"
database:
  url: mongodb://db:27017
  dbname: loadhub_test
security:
  access-secret: a
  refresh-secret: r
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimalYAML))

	cfg := Load()

	assert.Equal(t, "loadhub-test", cfg.App.Name)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Database.Engine)
	assert.Equal(t, "loads", cfg.Database.Collections.Loads)
	assert.Equal(t, "sessions", cfg.Database.Collections.Sessions)
	assert.Equal(t, 15, cfg.Security.AccessTTLMinutes)
	assert.Equal(t, 168, cfg.Security.RefreshTTLHours)
	assert.Equal(t, 15, cfg.Lifecycle.SweepIntervalMinutes)
	assert.Equal(t, 30, cfg.Lifecycle.AcceptanceTimeoutMinutes)
	assert.Equal(t, 10, cfg.RateLimit.Auth.Max)
	assert.Equal(t, 5, cfg.RateLimit.LoadAccept.Max)
	assert.Equal(t, 10, cfg.RateLimit.DriverStatus.Max)
	assert.Equal(t, 60, cfg.RateLimit.DriverStatus.WindowSeconds)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimalYAML))
	t.Setenv("MONGODB_URL", "mongodb://override:27017")
	t.Setenv("DB_ENGINE", "memory")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JWT_ACCESS_SECRET", "env-access")
	t.Setenv("JWT_REFRESH_SECRET", "env-refresh")
	t.Setenv("SERVER_PORT", "7070")

	cfg := Load()

	assert.Equal(t, "mongodb://override:27017", cfg.Database.Url)
	assert.Equal(t, "memory", cfg.Database.Engine)
	assert.Equal(t, 3, cfg.Redis.Db)
	assert.Equal(t, "env-access", cfg.Security.AccessSecret)
	assert.Equal(t, "env-refresh", cfg.Security.RefreshSecret)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadIgnoresMalformedRedisDB(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimalYAML+"redis:\n  db: 2\n"))
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, 2, cfg.Redis.Db)
}

func TestLoadPanicsOnMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))

	assert.Panics(t, func() { Load() })
}
