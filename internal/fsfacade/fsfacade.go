// Package fsfacade abstracts the file operations the pipeline needs
// (read/atomic write/exists/mkdir/remove/list) behind an interface so tests can
// substitute an in-memory implementation, and so every writer in the
// module goes through one write-then-rename helper.
package fsfacade

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the file-system facade every stage depends on instead of the os
// package directly.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, data []byte, perm fs.FileMode) error
	Exists(path string) (bool, error)
	MkdirAll(path string, perm fs.FileMode) error
	Remove(path string) error
	RemoveAll(path string) error
	ReadDir(path string) ([]fs.DirEntry, error)
}

// OS is the default FS, backed by the real filesystem.
type OS struct{}

// ReadFile reads the full contents of path.
func (OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304 -- path is caller-resolved, not request-controlled
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so a crash mid-write leaves either the
// old file or the new one, never a partial file.
func (OS) WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	return WriteFileAtomic(path, data, perm)
}

// Exists reports whether path exists (as a file or directory).
func (OS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates path and any missing parents.
func (OS) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes a single file or empty directory.
func (OS) Remove(path string) error {
	return os.Remove(path)
}

// RemoveAll removes path and everything under it.
func (OS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// ReadDir lists the entries of a directory.
func (OS) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// WriteFileAtomic is the package-level temp-then-rename primitive, usable
// without constructing an OS facade; OS.WriteFileAtomic delegates to it.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsfacade: create parent dir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("fsfacade: create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("fsfacade: write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsfacade: close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("fsfacade: chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsfacade: rename temp file into %s: %w", path, err)
	}
	cleanup = false
	return nil
}

// DiscardTempFile removes a temp file without renaming it, so a cancelled
// write never leaves a half-renamed file behind.
func DiscardTempFile(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
