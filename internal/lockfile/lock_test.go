package lockfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123.lock")
	l := New(path)
	if err := l.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestSecondAcquireTimesOutWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123.lock")
	first := New(path)
	if err := first.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release()

	second := New(path)
	err := second.Acquire(context.Background(), 50*time.Millisecond)
	if err != ErrBusy {
		t.Fatalf("expected ErrBusy while lock is held, got %v", err)
	}
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123.lock")
	first := New(path)
	if err := first.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	second := New(path)
	if err := second.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("second acquire after release: %v", err)
	}
	_ = second.Release()
}
