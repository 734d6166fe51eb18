package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit_river/internal/config"
	"reddit_river/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nlog_format: text\n"), 0o644))

	cfg, logger, err := Bootstrap(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestBootstrap_MissingFile(t *testing.T) {
	_, _, err := Bootstrap(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenStore_SQLite(t *testing.T) {
	db, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, discardLogger())
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sources"))
	assert.Equal(t, 1, n)
}

func TestNewRedditSource_InvalidURL(t *testing.T) {
	_, err := NewRedditSource(config.RedditConfig{BaseURL: "::"}, discardLogger())
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestNewDiscoverer(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "autodisc.conf")
	require.NoError(t, os.WriteFile(rules, []byte("PRINT_LINK \"mobile\"\nIGNORE_URL example\\.com\n"), 0o644))

	d, err := NewDiscoverer(config.DiscoveryConfig{RulesFile: rules}, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, d)

	res := d.Discover(context.Background(), "http://example.com/story")
	assert.False(t, res.Found)

	_, err = NewDiscoverer(config.DiscoveryConfig{RulesFile: filepath.Join(dir, "missing.conf")}, discardLogger())
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestNewPublisher_Disabled(t *testing.T) {
	pub, closeFn, err := NewPublisher(config.RabbitMQConfig{}, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, pub)
	closeFn()
}
