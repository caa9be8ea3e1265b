package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

var (
	ErrFileMissing = errors.New("file to scan does not exist")
	// ErrNoVerdict means the backend answered but could not classify the file.
	ErrNoVerdict = errors.New("scanner returned no verdict")
)

const defaultTimeout = 2 * time.Minute

// Engine bounds a backend with a timeout and normalises its failures to
// document.ErrScanTimeout or document.ErrScannerUnavailable. It never turns
// an error into a clean result.
type Engine struct {
	backend ports.Scanner
	timeout time.Duration
	now     func() time.Time
}

var _ ports.Scanner = (*Engine)(nil)

func NewEngine(backend ports.Scanner, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{backend: backend, timeout: timeout, now: time.Now}
}

func (e *Engine) Name() string {
	if e.backend == nil {
		return "none"
	}
	return e.backend.Name()
}

func (e *Engine) Scan(ctx context.Context, filePath string, declaredName string) (document.ScanResult, error) {
	if e.backend == nil {
		return document.ScanResult{}, fmt.Errorf("%w: no backend configured", document.ErrScannerUnavailable)
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document.ScanResult{}, errs.Permanent(fmt.Errorf("%w: %s", ErrFileMissing, filePath))
		}
		return document.ScanResult{}, errs.Wrap(err, "stat file to scan")
	}

	scanCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := e.now()
	result, err := e.backend.Scan(scanCtx, filePath, declaredName)
	if err != nil {
		return document.ScanResult{}, classify(scanCtx, e.backend.Name(), err)
	}

	result.Backend = e.backend.Name()
	result.Duration = e.now().Sub(started)
	result.ScannedAt = started.UTC()
	if !result.Clean && result.ThreatName == "" {
		result.ThreatName = "unnamed-threat"
	}
	return result, nil
}

func classify(ctx context.Context, backend string, err error) error {
	switch {
	case errors.Is(err, document.ErrScanTimeout), errors.Is(err, document.ErrScannerUnavailable):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", document.ErrScanTimeout, backend, err)
	case isConnectionError(err):
		return fmt.Errorf("%w: %s: %v", document.ErrScannerUnavailable, backend, err)
	default:
		return err
	}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
