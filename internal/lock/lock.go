// Package lock provides the per-job mutual exclusion of sync runs.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"reddit_river/internal/domain"
)

// FileLock is an exclusive advisory lock on a file. The kernel drops it when
// the process exits, whatever the exit path.
type FileLock struct {
	file *os.File
	path string
}

// Acquire takes the lock at path without blocking. If another holder has it
// the error wraps domain.ErrAlreadyRunning.
func Acquire(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s is locked", domain.ErrAlreadyRunning, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	// The pid is informational only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &FileLock{file: f, path: path}, nil
}

func (l *FileLock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself is left in place.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
