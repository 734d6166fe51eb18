package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit_river/internal/domain"
	"reddit_river/internal/lock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_RunsJobWithRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update_stories.lock")
	var gotID string

	r := New("update_stories", path, func(ctx context.Context, runID string) (*domain.RunStats, error) {
		gotID = runID

		_, err := lock.Acquire(path)
		assert.ErrorIs(t, err, domain.ErrAlreadyRunning)

		return &domain.RunStats{RunID: runID, New: 2, Updated: 3}, nil
	}, testLogger())

	stats, err := r.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total())
	_, err = uuid.Parse(gotID)
	assert.NoError(t, err)

	l, err := lock.Acquire(path)
	require.NoError(t, err, "lock must be released after the run")
	l.Release()
}

func TestRunner_AlreadyRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update_stories.lock")
	held, err := lock.Acquire(path)
	require.NoError(t, err)
	defer held.Release()

	called := false
	r := New("update_stories", path, func(ctx context.Context, runID string) (*domain.RunStats, error) {
		called = true
		return &domain.RunStats{}, nil
	}, testLogger())

	stats, err := r.Sync(context.Background())

	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
	assert.Nil(t, stats)
	assert.False(t, called)
}

func TestRunner_JobErrorReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update_sources.lock")
	boom := errors.New("boom")

	r := New("update_sources", path, func(ctx context.Context, runID string) (*domain.RunStats, error) {
		return nil, boom
	}, testLogger())

	_, err := r.Sync(context.Background())
	assert.ErrorIs(t, err, boom)

	l, err := lock.Acquire(path)
	require.NoError(t, err)
	l.Release()
}

func TestRunner_JobPanicReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.lock")

	r := New("job", path, func(ctx context.Context, runID string) (*domain.RunStats, error) {
		panic("unexpected")
	}, testLogger())

	assert.Panics(t, func() { _, _ = r.Sync(context.Background()) })

	l, err := lock.Acquire(path)
	require.NoError(t, err)
	l.Release()
}

func TestRunner_LockFileError(t *testing.T) {
	r := New("job", filepath.Join(t.TempDir(), "nope", "job.lock"), func(ctx context.Context, runID string) (*domain.RunStats, error) {
		t.Fatal("job must not run")
		return nil, nil
	}, testLogger())

	_, err := r.Sync(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAlreadyRunning)
}
