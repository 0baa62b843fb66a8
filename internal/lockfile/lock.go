// Package lockfile implements the evidence cache's optional cooperative
// per-key lock. It guards <root>/<key>/ mutation with an advisory
// OS file lock on a sidecar <root>/<key>.lock file, so two concurrent
// cache consults for the same key serialize instead of interleaving writes.
//
// Built on flock wrappers narrowed to a per-cache-key lock with a
// bounded blocking acquire, rather than a single process-wide lock.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrBusy is returned when the lock could not be acquired before the
// caller's deadline elapsed.
var ErrBusy = errors.New("lockfile: busy, timed out waiting for lock")

// CacheLock guards one evidence-cache key directory.
type CacheLock struct {
	path string
	file *os.File
}

// New returns a CacheLock bound to the sidecar file at path. The file is
// created alongside (never inside) the key directory it protects, so
// acquiring or releasing the lock never perturbs the key directory's
// contents or the manifest's fingerprint.
func New(path string) *CacheLock {
	return &CacheLock{path: path}
}

// Acquire blocks until the lock is held, the context is done, or timeout
// elapses, whichever comes first. timeout <= 0 means "try once, fail
// immediately if busy."
func (l *CacheLock) Acquire(ctx context.Context, timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304 -- path is the cache root's own sidecar file
	if err != nil {
		return fmt.Errorf("lockfile: open %s: %w", l.path, err)
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		err := flockExclusiveNonBlocking(f)
		if err == nil {
			l.file = f
			return nil
		}
		if !errors.Is(err, ErrBusy) {
			_ = f.Close()
			return fmt.Errorf("lockfile: acquire %s: %w", l.path, err)
		}
		if timeout <= 0 {
			_ = f.Close()
			return ErrBusy
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return ErrBusy
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Release unlocks and closes the sidecar file. Safe to call on an
// unacquired lock (no-op).
func (l *CacheLock) Release() error {
	if l.file == nil {
		return nil
	}
	err := flockUnlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
