package fsfacade

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MemFS is an in-memory FS for tests that exercise the cache, emitter, or
// bootstrap stages without touching disk.
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true},
	}
}

// Seed pre-populates a file, for setting up ingest fixtures.
func (m *MemFS) Seed(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = append([]byte(nil), data...)
	m.markDirs(filepath.Dir(path))
}

func (m *MemFS) markDirs(dir string) {
	dir = filepath.Clean(dir)
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		m.dirs[dir] = true
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

// ReadFile returns the file's content or an os.ErrNotExist-wrapped error.
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &os.PathError{Op: "read", Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFileAtomic stores data under path. Because this implementation is
// in-memory there is no crash window to protect against, but the method
// exists so callers exercise the same interface as the real filesystem.
func (m *MemFS) WriteFileAtomic(path string, data []byte, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = append([]byte(nil), data...)
	m.markDirs(filepath.Dir(path))
	return nil
}

// Exists reports whether path is a known file or directory.
func (m *MemFS) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := filepath.Clean(path)
	if _, ok := m.files[p]; ok {
		return true, nil
	}
	return m.dirs[p], nil
}

// MkdirAll records path (and parents) as existing directories.
func (m *MemFS) MkdirAll(path string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markDirs(path)
	m.dirs[filepath.Clean(path)] = true
	return nil
}

// Remove deletes a single file entry.
func (m *MemFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := filepath.Clean(path)
	if _, ok := m.files[p]; !ok {
		if !m.dirs[p] {
			return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
		}
		delete(m.dirs, p)
		return nil
	}
	delete(m.files, p)
	return nil
}

// RemoveAll deletes path and every file/dir nested under it.
func (m *MemFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := filepath.Clean(path)
	for f := range m.files {
		if f == prefix || isUnder(f, prefix) {
			delete(m.files, f)
		}
	}
	for d := range m.dirs {
		if d == prefix || isUnder(d, prefix) {
			delete(m.dirs, d)
		}
	}
	return nil
}

func isUnder(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasDotDotPrefix(rel)
}

func filepathHasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

type memDirEntry struct {
	name  string
	isDir bool
}

func (e memDirEntry) Name() string { return e.name }
func (e memDirEntry) IsDir() bool  { return e.isDir }

func (e memDirEntry) Type() fs.FileMode {
	if e.isDir {
		return fs.ModeDir
	}
	return 0
}

func (e memDirEntry) Info() (fs.FileInfo, error) { return memFileInfo{e}, nil }

type memFileInfo struct{ e memDirEntry }

func (i memFileInfo) Name() string       { return i.e.name }
func (i memFileInfo) Size() int64        { return 0 }
func (i memFileInfo) Mode() fs.FileMode  { return i.e.Type() }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return i.e.isDir }
func (i memFileInfo) Sys() any           { return nil }

var (
	_ fs.DirEntry = memDirEntry{}
	_ fs.FileInfo = memFileInfo{}
)

// ReadDir lists the immediate children of path.
func (m *MemFS) ReadDir(path string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := filepath.Clean(path)
	seen := map[string]bool{}
	var entries []fs.DirEntry
	add := func(full string, isDir bool) {
		rel, err := filepath.Rel(prefix, full)
		if err != nil || rel == "." || filepathHasDotDotPrefix(rel) {
			return
		}
		name := rel
		if idx := indexOfSeparator(rel); idx >= 0 {
			name = rel[:idx]
			isDir = true
		}
		if seen[name] {
			return
		}
		seen[name] = true
		entries = append(entries, memDirEntry{name: name, isDir: isDir})
	}
	for f := range m.files {
		add(f, false)
	}
	for d := range m.dirs {
		if d == prefix {
			continue
		}
		add(d, true)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func indexOfSeparator(p string) int {
	for i, r := range p {
		if r == filepath.Separator || r == '/' {
			return i
		}
	}
	return -1
}

var _ FS = (*MemFS)(nil)
var _ FS = OS{}
