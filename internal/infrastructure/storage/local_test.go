package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalSaveOpenRemove(t *testing.T) {
	store, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	stored, err := store.Save(ctx, "app-1", "../../Transcript.PDF", strings.NewReader("test"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if stored.SizeBytes != 4 {
		t.Fatalf("Save() size = %d", stored.SizeBytes)
	}
	if stored.SHA256 != "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08" {
		t.Fatalf("Save() sha256 = %s", stored.SHA256)
	}
	if filepath.Dir(stored.Path) != filepath.Join(store.Root(), "app-1") || filepath.Ext(stored.Path) != ".pdf" {
		t.Fatalf("Save() path = %s", stored.Path)
	}

	rc, err := store.Open(ctx, stored.Path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || string(body) != "test" {
		t.Fatalf("Open() body = %q err=%v", body, err)
	}

	if err := store.Remove(ctx, stored.Path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(stored.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Stat() after remove error = %v", err)
	}
}

func TestLocalRefusesPathsOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	outside := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := store.Open(context.Background(), outside); !errors.Is(err, ErrOutsideRoot) {
		t.Fatalf("Open(outside) error = %v", err)
	}
	if err := store.Remove(context.Background(), filepath.Join(store.Root(), "..", "secret.txt")); !errors.Is(err, ErrOutsideRoot) {
		t.Fatalf("Remove(outside) error = %v", err)
	}
}
