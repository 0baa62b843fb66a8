package oplog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesLeveledNDJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.log")
	l := New(Options{Path: path, MinLevel: LevelInfo})
	l.Info("bootstrap started", map[string]any{"counts.modules": 3})
	l.Warn("profile probe downgraded", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "info" || lines[0]["message"] != "bootstrap started" {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.log")
	l := New(Options{Path: path, MinLevel: LevelWarn})
	l.Debug("should be dropped", nil)
	l.Info("should also be dropped", nil)
	l.Error("should be kept", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %+v", len(lines), lines)
	}
	if lines[0]["level"] != "error" {
		t.Fatalf("expected error-level line, got %+v", lines[0])
	}
}

func TestWithCacheKeyStampsSubsequentEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.log")
	l := New(Options{Path: path, MinLevel: LevelInfo}).WithCacheKey("deadbeef")
	l.Info("cache consulted", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 || lines[0]["cacheKey"] != "deadbeef" {
		t.Fatalf("expected cacheKey stamped, got %+v", lines)
	}
}
