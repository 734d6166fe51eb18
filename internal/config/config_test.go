package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit_river/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Sync.StoryPages)
	assert.Equal(t, 1, cfg.Sync.SourcePages)
	assert.Equal(t, domain.FrontPage, cfg.Sync.DefaultSource)
	assert.Equal(t, 25, cfg.Web.StoriesPerPage)
	assert.Equal(t, 15*time.Second, cfg.Discovery.Timeout)
	assert.Equal(t, 1, cfg.Reddit.Retry.MaxAttempts)
	assert.True(t, cfg.Discovery.IsEnabled())
	assert.False(t, cfg.RabbitMQ.Enabled())
}

func TestLoad_ExpandsEnvAndResolvesRulesFile(t *testing.T) {
	t.Setenv("RIVER_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
database:
  driver: postgres
  host: localhost
  user: river
  password: ${RIVER_DB_PASSWORD}
  dbname: river
discovery:
  enabled: false
  rules_file: autodisc.conf
sync:
  story_pages: 3
lock_dir: /var/lock/river
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "password=s3cret")
	assert.Contains(t, cfg.Database.DSN(), "port=5432")
	assert.False(t, cfg.Discovery.IsEnabled())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "autodisc.conf"), cfg.Discovery.RulesFile)
	assert.Equal(t, 3, cfg.Sync.StoryPages)
	assert.Equal(t, "/var/lock/river/update_stories.lock", cfg.LockPath("update_stories"))
}

func TestLoad_UnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: oracle\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestDatabaseConfig_SQLiteDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "sqlite", Path: "/tmp/river.db"}
	assert.Equal(t, "/tmp/river.db", d.DSN())
}
