package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

var ErrOutsideRoot = errors.New("path is outside the upload directory")

// Local keeps uploads under root/<application id>/<uuid><ext>. Stored names
// never reuse the uploader's file name.
type Local struct {
	root string
}

var _ ports.FileStorage = (*Local)(nil)

func NewLocal(root string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("upload directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(err, "resolve upload directory")
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, errs.Wrap(err, "create upload directory")
	}
	return &Local{root: abs}, nil
}

func (l *Local) Root() string {
	return l.root
}

func (l *Local) Save(ctx context.Context, applicationID string, fileName string, content io.Reader) (ports.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "check context")
	}
	segment := filepath.Base(strings.TrimSpace(applicationID))
	if segment == "" || segment == "." || segment == ".." {
		return ports.StoredFile{}, errors.New("application id is required")
	}

	dir := filepath.Join(l.root, segment)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "create application upload directory")
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	path := filepath.Join(dir, uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return ports.StoredFile{}, errs.Wrap(err, "create upload file")
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), content)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return ports.StoredFile{}, errs.Wrap(err, "write upload file")
	}

	return ports.StoredFile{
		Path:      path,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	clean, err := l.within(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(clean)
	if err != nil {
		return nil, errs.Wrap(err, "open upload file")
	}
	return f, nil
}

func (l *Local) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	clean, err := l.within(path)
	if err != nil {
		return err
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Wrap(err, "remove upload file")
	}
	return nil
}

func (l *Local) within(path string) (string, error) {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(l.root, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return clean, nil
}
