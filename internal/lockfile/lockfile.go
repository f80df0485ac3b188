// Package lockfile guards the SQLite state directory against a second
// process opening the same database. The lock is a flock on a marker file,
// so the kernel drops it even when the process dies without cleanup.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the marker file created inside the state directory.
const LockFileName = "regbot.lock"

// ErrAlreadyLocked reports that another process holds the state directory.
var ErrAlreadyLocked = errors.New("state directory is locked by another process")

// Lock is a held state-directory lock. Release is safe to call twice.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive non-blocking flock on the state directory's
// marker file and records the owning pid in it.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	path := filepath.Join(stateDir, LockFileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if pid := holderPID(path); pid > 0 {
			return nil, fmt.Errorf("%w: %s held by pid %d", ErrAlreadyLocked, path, pid)
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, path)
	}

	// The pid is informational only; the flock is what enforces exclusivity.
	if _, err := fmt.Fprintf(file, "pid=%d\n", os.Getpid()); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}

	slog.Debug("Lockfile.AcquireLock: lock acquired", "path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Release drops the flock and removes the marker file.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lockfile.Release: unlock failed", "error", err, "path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Warn("Lockfile.Release: close failed", "error", err, "path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lockfile.Release: remove failed", "error", err, "path", l.path)
	}
	l.file = nil
	slog.Debug("Lockfile.Release: lock released", "path", l.path)
	return nil
}

// holderPID reads the pid recorded by the current holder, or 0.
func holderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	content := strings.TrimSpace(string(data))
	if rest, ok := strings.CutPrefix(content, "pid="); ok {
		if pid, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			return pid
		}
	}
	return 0
}
