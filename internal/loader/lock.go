package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created inside the data directory.
const LockFileName = ".load.lock"

// DirLock serializes loads into one data directory across processes.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for dir. The lock file is <dir>/.load.lock.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, LockFileName)
	return &DirLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the lock is held.
func (l *DirLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without blocking. It reports false when
// another process holds it.
func (l *DirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// IsLocked reports whether this DirLock holds the lock.
func (l *DirLock) IsLocked() bool {
	return l.locked
}
