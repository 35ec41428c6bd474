package storage

import (
	"sync"

	"github.com/gofrs/flock"
)

// FileLock combines an in-process mutex with an OS advisory lock so that
// both goroutines and sibling processes serialize on the same file.
type FileLock struct {
	mu sync.Mutex
	fl *flock.Flock
}

// NewFileLock creates a lock guarding path. The advisory lock lives in a
// sidecar ".lock" file next to the target.
func NewFileLock(path string) *FileLock {
	return &FileLock{fl: flock.New(path + ".lock")}
}

// Lock acquires the lock, blocking until available.
func (l *FileLock) Lock() error {
	l.mu.Lock()
	if err := l.fl.Lock(); err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	ok, err := l.fl.TryLock()
	if err != nil || !ok {
		l.mu.Unlock()
		return false
	}
	return true
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	err := l.fl.Unlock()
	l.mu.Unlock()
	return err
}
