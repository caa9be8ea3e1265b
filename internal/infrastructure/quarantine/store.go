package quarantine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

// Store moves infected files out of the upload tree into a read-only
// directory and records where they went. Every failure is reported as a
// permanent document.ErrQuarantineFailure.
type Store struct {
	dir     string
	records ports.QuarantineRepository
	now     func() time.Time
	rename  func(string, string) error
}

var _ ports.QuarantineStore = (*Store)(nil)

func NewStore(dir string, records ports.QuarantineRepository) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("quarantine directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errs.Wrap(err, "resolve quarantine directory")
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, errs.Wrap(err, "create quarantine directory")
	}
	return &Store{dir: abs, records: records, now: time.Now, rename: os.Rename}, nil
}

func (s *Store) Quarantine(ctx context.Context, doc document.Document, result document.ScanResult) (document.QuarantineRecord, error) {
	if ctx == nil {
		return document.QuarantineRecord{}, errors.New("context is required")
	}
	if s.records == nil {
		return document.QuarantineRecord{}, failure(errors.New("quarantine repository is required"))
	}

	existing, found, err := s.records.GetByDocument(ctx, doc.ID)
	if err != nil {
		return document.QuarantineRecord{}, failure(err)
	}
	if found {
		return existing, nil
	}

	original := filepath.Clean(doc.StoragePath)
	id := uuid.NewString()
	dest := filepath.Join(s.dir, id)

	if err := s.move(original, dest); err != nil {
		return document.QuarantineRecord{}, failure(err)
	}
	if err := os.Chmod(dest, 0o400); err != nil {
		return document.QuarantineRecord{}, failure(errs.Wrap(err, "restrict quarantined file"))
	}
	if _, err := os.Lstat(original); !errors.Is(err, os.ErrNotExist) {
		return document.QuarantineRecord{}, failure(fmt.Errorf("original path %s still reachable (lstat: %v)", original, err))
	}

	record := document.QuarantineRecord{
		ID:             id,
		DocumentID:     doc.ID,
		OriginalPath:   original,
		QuarantinePath: dest,
		ThreatName:     result.ThreatName,
		QuarantinedAt:  s.now().UTC(),
	}
	if err := s.records.Create(ctx, record); err != nil {
		return document.QuarantineRecord{}, failure(err)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "infrastructure.quarantine")), "file quarantined",
		slog.String("document_id", doc.ID),
		slog.String("quarantine_id", id),
	)
	return record, nil
}

func (s *Store) IsQuarantined(ctx context.Context, path string) (bool, error) {
	if s.records == nil {
		return false, errors.New("quarantine repository is required")
	}
	_, found, err := s.records.GetByOriginalPath(ctx, filepath.Clean(path))
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *Store) move(src string, dest string) error {
	err := s.rename(src, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return errs.Wrap(err, "move file into quarantine")
	}
	return copyAndRemove(src, dest)
}

// copyAndRemove is the cross-device path: the copy is synced before the
// original is removed.
func copyAndRemove(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.Wrap(err, "open file for quarantine copy")
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return errs.Wrap(err, "create quarantine copy")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return errs.Wrap(err, "copy file into quarantine")
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return errs.Wrap(err, "sync quarantine copy")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return errs.Wrap(err, "close quarantine copy")
	}
	if err := os.Remove(src); err != nil {
		return errs.Wrap(err, "remove original after quarantine copy")
	}
	return nil
}

func failure(err error) error {
	return errs.Permanent(fmt.Errorf("%w: %v", document.ErrQuarantineFailure, err))
}
