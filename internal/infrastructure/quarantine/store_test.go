package quarantine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
)

type memoryRecords struct {
	mu     sync.Mutex
	byDoc  map[string]document.QuarantineRecord
	byPath map[string]document.QuarantineRecord
	fail   error
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{
		byDoc:  make(map[string]document.QuarantineRecord),
		byPath: make(map[string]document.QuarantineRecord),
	}
}

func (m *memoryRecords) Create(_ context.Context, rec document.QuarantineRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.byDoc[rec.DocumentID] = rec
	m.byPath[rec.OriginalPath] = rec
	return nil
}

func (m *memoryRecords) GetByDocument(_ context.Context, id string) (document.QuarantineRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byDoc[id]
	return rec, ok, nil
}

func (m *memoryRecords) GetByOriginalPath(_ context.Context, path string) (document.QuarantineRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byPath[path]
	return rec, ok, nil
}

func writeUpload(t *testing.T, dir string, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR"), 0o640); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func TestQuarantineIsolatesOriginalPath(t *testing.T) {
	root := t.TempDir()
	records := newMemoryRecords()
	store, err := NewStore(filepath.Join(root, "quarantine"), records)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	path := writeUpload(t, root, "essay.docx")
	doc := document.Document{ID: "doc-1", StoragePath: path}

	rec, err := store.Quarantine(ctx, doc, document.ScanResult{ThreatName: "Eicar-Test-Signature"})
	if err != nil {
		t.Fatalf("Quarantine() error = %v", err)
	}

	if _, err := os.Open(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open(original) error = %v", err)
	}
	info, err := os.Stat(rec.QuarantinePath)
	if err != nil {
		t.Fatalf("Stat(quarantine) error = %v", err)
	}
	if info.Mode().Perm() != 0o400 {
		t.Fatalf("quarantine perms = %v", info.Mode().Perm())
	}

	quarantined, err := store.IsQuarantined(ctx, path)
	if err != nil || !quarantined {
		t.Fatalf("IsQuarantined() = %v err=%v", quarantined, err)
	}

	again, err := store.Quarantine(ctx, doc, document.ScanResult{ThreatName: "Eicar-Test-Signature"})
	if err != nil {
		t.Fatalf("Quarantine(again) error = %v", err)
	}
	if again.ID != rec.ID {
		t.Fatalf("Quarantine(again) id = %s, want %s", again.ID, rec.ID)
	}
}

func TestQuarantineCrossDeviceFallback(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(filepath.Join(root, "quarantine"), newMemoryRecords())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}

	path := writeUpload(t, root, "transcript.pdf")
	rec, err := store.Quarantine(context.Background(), document.Document{ID: "doc-1", StoragePath: path}, document.ScanResult{ThreatName: "Trojan.Generic"})
	if err != nil {
		t.Fatalf("Quarantine() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Stat(original) error = %v", err)
	}
	if _, err := os.Stat(rec.QuarantinePath); err != nil {
		t.Fatalf("Stat(quarantine) error = %v", err)
	}
}

func TestQuarantineFailuresArePermanent(t *testing.T) {
	root := t.TempDir()
	records := newMemoryRecords()
	store, err := NewStore(filepath.Join(root, "quarantine"), records)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	_, err = store.Quarantine(ctx, document.Document{ID: "doc-1", StoragePath: filepath.Join(root, "missing.pdf")}, document.ScanResult{})
	if !errors.Is(err, document.ErrQuarantineFailure) || !errs.IsPermanent(err) {
		t.Fatalf("Quarantine(missing) error = %v", err)
	}

	records.fail = errors.New("disk full")
	path := writeUpload(t, root, "essay.pdf")
	_, err = store.Quarantine(ctx, document.Document{ID: "doc-2", StoragePath: path}, document.ScanResult{})
	if !errors.Is(err, document.ErrQuarantineFailure) {
		t.Fatalf("Quarantine(record failure) error = %v", err)
	}
	// The file is isolated even though the record could not be written.
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Stat(original) error = %v", err)
	}
}
